// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ovanesb/drupal-devops-copilot/services/editor/canvas"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/run"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/schema"
)

// =============================================================================
// View
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Bye.\n"
	}
	if !m.ready {
		return "Loading...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	paneWidth := m.width/3 - 2
	if paneWidth < 16 {
		paneWidth = 16
	}
	palette := paneStyle.Width(paneWidth).Render(m.renderPalette())
	graphPane := paneStyle.Width(paneWidth).Render(m.renderCanvas())
	detail := paneStyle.Width(paneWidth).Render(m.renderDetail())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, palette, graphPane, detail))

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	name := m.cfg.WorkflowName
	if m.cfg.FilePath != "" {
		name = fmt.Sprintf("%s (%s)", name, m.cfg.FilePath)
	}
	mode := ""
	if m.cfg.DryRun {
		mode = dimStyle.Render("  dry-run")
	}
	return titleStyle.Render("pipeline editor") + "  " +
		dimStyle.Render(name) + mode + "  " +
		focusStyle.Render("["+focusName(m.focus)+"]")
}

func (m Model) renderPalette() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Palette"))
	b.WriteString("\n")
	for i, t := range schema.All() {
		marker := "  "
		line := string(t)
		if i == m.paletteIdx && m.focus == canvas.FocusPalette {
			marker = "> "
			line = selectedStyle.Render(line)
		}
		b.WriteString(marker + line + "\n")
	}
	return b.String()
}

func (m Model) renderCanvas() string {
	snap := m.store.Snapshot()

	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Stages (%d)", len(snap.Nodes))))
	b.WriteString("\n")
	if len(snap.Nodes) == 0 {
		b.WriteString(dimStyle.Render("empty; add stages from the palette") + "\n")
	}
	for i, n := range snap.Nodes {
		marker := "  "
		line := fmt.Sprintf("%-12s %s", n.Type, n.Label())
		if m.store.Selected(n.ID) {
			line += " *"
		}
		if n.ID == m.connectSrc {
			line += " ~"
		}
		if i == m.cursor && m.focus == canvas.FocusCanvas {
			marker = "> "
			line = selectedStyle.Render(line)
		}
		b.WriteString(marker + line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Edges (%d)", len(snap.Edges))))
	b.WriteString("\n")
	for _, e := range snap.Edges {
		b.WriteString(fmt.Sprintf("  %s -> %s\n", shortID(e.Source), shortID(e.Target)))
	}
	return b.String()
}

func (m Model) renderDetail() string {
	if m.form != nil {
		return sectionStyle.Render("Inspector") + "\n" + m.form.View()
	}
	if m.open != nil && !m.open.Known {
		return m.renderDiagnostic()
	}
	return sectionStyle.Render("Run") + "\n" + m.runView.View()
}

// renderDiagnostic shows the read-only panel for an unrecognized stage
// type.
func (m Model) renderDiagnostic() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Inspector"))
	b.WriteString("\n")
	b.WriteString(errStyle.Render(fmt.Sprintf("unknown stage type %q", m.open.RawType)))
	b.WriteString("\n\nrecognized types:\n")
	for _, t := range m.open.Recognized {
		b.WriteString("  " + string(t) + "\n")
	}
	return b.String()
}

func (m Model) renderJob() string {
	if m.job == nil {
		if m.running {
			return dimStyle.Render("submitting...")
		}
		return dimStyle.Render("press r to run the workflow")
	}

	view := m.job.Snapshot()
	var b strings.Builder
	b.WriteString(fmt.Sprintf("job %s  %s\n", shortID(view.ID), statusBadge(view.Status)))
	for _, step := range view.Steps {
		state := "..."
		if step.Finished {
			state = fmt.Sprintf("rc=%d", step.RC)
		}
		b.WriteString(fmt.Sprintf("  %-10s %s\n", step.Label, state))
	}
	if view.MRURL != "" {
		b.WriteString("mr: " + view.MRURL + "\n")
	}
	if view.Err != "" {
		b.WriteString(errStyle.Render(view.Err) + "\n")
	}
	if view.Transcript != "" {
		b.WriteString("\n" + view.Transcript + "\n")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	var b strings.Builder
	for _, s := range m.status {
		b.WriteString(dimStyle.Render(s) + "\n")
	}
	b.WriteString(helpStyle.Render("tab focus · enter add/edit · c connect · d delete · arrows move · s save · r run · q quit"))
	return b.String()
}

func statusBadge(s run.Status) string {
	switch s {
	case run.StatusSuccess:
		return okBadge.Render("success")
	case run.StatusError:
		return errBadge.Render("error")
	case run.StatusRunning:
		return runBadge.Render("running")
	default:
		return dimStyle.Render(string(s))
	}
}

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	focusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	paneStyle = lipgloss.NewStyle().
			Padding(0, 1)

	okBadge = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Background(lipgloss.Color("22")).
		Padding(0, 1)

	errBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Background(lipgloss.Color("52")).
			Padding(0, 1)

	runBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Background(lipgloss.Color("58")).
			Padding(0, 1)
)
