// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tui is the terminal front end of the pipeline editor.
//
// # Description
//
// This package implements the interactive graph editor using bubbletea.
// Three regions share the screen: a palette of stage types, the canvas
// listing the graph's nodes and edges, and a detail panel that is either
// the inspector form for the selected node or the live run transcript.
// All graph mutations funnel through the canvas adapter and inspector so
// the store stays the single source of truth.
//
// # Thread Safety
//
// The model is single-threaded inside the bubbletea event loop. The run
// goroutine communicates only through messages; the Job it mutates guards
// itself with a mutex.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/ovanesb/drupal-devops-copilot/services/editor/canvas"
	"github.com/ovanesb/drupal-devops-copilot/services/editor/inspector"
	"github.com/ovanesb/drupal-devops-copilot/services/editor/notify"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/plan"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/run"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/schema"
)

// =============================================================================
// Messages
// =============================================================================

// ReloadMsg asks the editor to re-read its workflow file. The file watcher
// sends it through Program.Send when the document changes on disk.
type ReloadMsg struct{}

// jobStartedMsg carries the Job once the server accepted the submission.
type jobStartedMsg struct {
	job *run.Job
}

// jobEventMsg is one decoded stream event; it only triggers a repaint,
// since the Job already absorbed the event.
type jobEventMsg struct {
	ev run.Event
}

// jobDoneMsg signals the run goroutine has exited.
type jobDoneMsg struct {
	job *run.Job
	err error
}

// =============================================================================
// Config
// =============================================================================

// Config configures the editor session.
type Config struct {
	// ServerURL is the pipeline server base URL.
	ServerURL string

	// WorkflowName names the document; shown in the header and stamped
	// into saved files.
	WorkflowName string

	// FilePath is the JSON document backing this session. Empty means an
	// unsaved scratch session.
	FilePath string

	// DryRun skips the deploy and QA stages when running.
	DryRun bool

	// GridStep is how far arrow keys move a node, in canvas units.
	GridStep float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServerURL:    "http://127.0.0.1:8055",
		WorkflowName: "untitled",
		GridStep:     20,
	}
}

// =============================================================================
// Model
// =============================================================================

// Model is the bubbletea model for the pipeline editor.
type Model struct {
	cfg Config

	// Graph state and its gatekeepers
	store   *graph.Store
	adapter *canvas.Adapter
	insp    *inspector.Inspector
	notes   *notify.Queue

	// Execution
	client  *run.Client
	job     *run.Job
	events  chan tea.Msg
	stop    chan struct{}
	running bool

	// Navigation state
	focus      canvas.Focus
	paletteIdx int
	cursor     int
	connectSrc string

	// Inspector form state
	open     *inspector.Form
	form     *huh.Form
	bindings []*fieldBinding

	// Run transcript viewport
	runView viewport.Model

	// Footer notifications, most recent last
	status []string

	// Terminal dimensions
	width  int
	height int

	ready    bool
	quitting bool
}

// NewModel creates an editor model over a fresh session store.
//
// # Inputs
//
//   - cfg: Session configuration; zero fields fall back to defaults.
//
// # Outputs
//
//   - Model: Ready-to-use model for tea.NewProgram.
func NewModel(cfg Config) Model {
	defaults := DefaultConfig()
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaults.ServerURL
	}
	if cfg.WorkflowName == "" {
		cfg.WorkflowName = defaults.WorkflowName
	}
	if cfg.GridStep <= 0 {
		cfg.GridStep = defaults.GridStep
	}

	store := graph.NewStore()
	notes := notify.NewQueue()

	m := Model{
		cfg:     cfg,
		store:   store,
		adapter: canvas.NewAdapter(store, notes),
		insp:    inspector.New(store),
		notes:   notes,
		client:  run.NewClient(cfg.ServerURL, nil),
		focus:   canvas.FocusPalette,
	}
	if cfg.FilePath != "" {
		m.loadFile()
	}
	return m.drain()
}

// Store exposes the session store so callers can pre-load a document
// before starting the program.
func (m Model) Store() *graph.Store {
	return m.store
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// =============================================================================
// Update
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 4
		paneHeight := m.height - headerHeight - footerHeight
		paneWidth := m.width / 3

		if !m.ready {
			m.runView = viewport.New(paneWidth, paneHeight)
			m.ready = true
		} else {
			m.runView.Width = paneWidth
			m.runView.Height = paneHeight
		}
		m.refreshRunView()
		return m.drain(), nil

	case ReloadMsg:
		if m.cfg.FilePath == "" {
			return m, nil
		}
		m.loadFile()
		m.cursor = 0
		m.connectSrc = ""
		return m.drain(), nil

	case jobStartedMsg:
		m.job = msg.job
		m.refreshRunView()
		return m.drain(), listen(m.events)

	case jobEventMsg:
		m.refreshRunView()
		m.runView.GotoBottom()
		return m.drain(), listen(m.events)

	case jobDoneMsg:
		m.running = false
		m.stop = nil
		if msg.job != nil {
			m.job = msg.job
		}
		switch {
		case msg.err != nil:
			m.notes.Pushf(notify.LevelError, "run failed: %v", msg.err)
		case m.job != nil && m.job.CurrentStatus() == run.StatusError:
			m.notes.Pushf(notify.LevelError, "run failed: %s", m.job.Snapshot().Err)
		default:
			m.notes.Push(notify.LevelInfo, "run finished")
		}
		m.refreshRunView()
		return m.drain(), nil

	case tea.KeyMsg:
		if m.form != nil {
			return m.updateForm(msg)
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.runView, cmd = m.runView.Update(msg)
	return m, cmd
}

// handleKey processes keys outside form-editing mode.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		if m.stop != nil {
			close(m.stop)
			m.stop = nil
		}
		return m, tea.Quit

	case "tab":
		m.focus = nextFocus(m.focus)
		return m.drain(), nil

	case "esc":
		m.connectSrc = ""
		m.adapter.ClickBackground()
		return m.drain(), nil

	case "s":
		m.saveFile()
		return m.drain(), nil

	case "r":
		return m.startRun()
	}

	switch m.focus {
	case canvas.FocusPalette:
		return m.handlePaletteKey(msg)
	case canvas.FocusCanvas:
		return m.handleCanvasKey(msg)
	case canvas.FocusInspector:
		if msg.String() == "enter" {
			return m.openInspector()
		}
	}
	return m, nil
}

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	types := schema.All()
	switch msg.String() {
	case "j", "down":
		if m.paletteIdx < len(types)-1 {
			m.paletteIdx++
		}
	case "k", "up":
		if m.paletteIdx > 0 {
			m.paletteIdx--
		}
	case "enter":
		// Stagger drop positions so new nodes don't stack.
		n := float64(m.store.Len())
		node, err := m.adapter.DropNode(80+n*m.cfg.GridStep, 80+n*m.cfg.GridStep, string(types[m.paletteIdx]))
		if err != nil {
			m.notes.Pushf(notify.LevelError, "drop failed: %v", err)
			break
		}
		m.cursor = m.store.Len() - 1
		m.notes.Pushf(notify.LevelInfo, "added %s", node.Label())
	}
	return m.drain(), nil
}

func (m Model) handleCanvasKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.store.Snapshot()
	if m.cursor >= len(snap.Nodes) {
		m.cursor = len(snap.Nodes) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	switch msg.String() {
	case "j", "down":
		if m.cursor < len(snap.Nodes)-1 {
			m.cursor++
			m.adapter.ClickNode(snap.Nodes[m.cursor].ID)
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.adapter.ClickNode(snap.Nodes[m.cursor].ID)
		}
	case "left", "right", "shift+up", "shift+down":
		m.nudge(snap, msg.String())
	case "enter":
		return m.openInspector()
	case "c":
		m.connect(snap)
	case "d", "delete", "backspace":
		if len(snap.Nodes) > 0 {
			m.adapter.ClickNode(snap.Nodes[m.cursor].ID)
			nodes, edges := m.adapter.KeyDelete(m.focus)
			if len(nodes) > 0 {
				m.notes.Pushf(notify.LevelInfo, "removed %d node(s), %d edge(s)", len(nodes), len(edges))
			}
			if m.cursor >= m.store.Len() {
				m.cursor = m.store.Len() - 1
			}
		}
	}
	return m.drain(), nil
}

// nudge moves the cursor node one grid step. The TUI viewport is the
// identity transform, so canvas and screen coordinates coincide.
func (m *Model) nudge(snap graph.Snapshot, key string) {
	if len(snap.Nodes) == 0 {
		return
	}
	node := snap.Nodes[m.cursor]
	x, y := node.Position.X, node.Position.Y
	switch key {
	case "left":
		x -= m.cfg.GridStep
	case "right":
		x += m.cfg.GridStep
	case "shift+up":
		y -= m.cfg.GridStep
	case "shift+down":
		y += m.cfg.GridStep
	}
	if err := m.adapter.MoveNode(node.ID, x, y); err != nil {
		m.notes.Pushf(notify.LevelError, "move failed: %v", err)
	}
}

// connect implements the two-press connect gesture: first press marks the
// source, second press draws the edge to the cursor node.
func (m *Model) connect(snap graph.Snapshot) {
	if len(snap.Nodes) == 0 {
		return
	}
	target := snap.Nodes[m.cursor].ID
	if m.connectSrc == "" {
		m.connectSrc = target
		m.notes.Pushf(notify.LevelInfo, "connecting from %s; pick a target and press c", shortID(target))
		return
	}
	src := m.connectSrc
	m.connectSrc = ""
	if _, err := m.adapter.ConnectGesture(src, target); err != nil {
		return // the adapter already queued the notification
	}
	m.notes.Pushf(notify.LevelInfo, "connected %s -> %s", shortID(src), shortID(target))
}

// =============================================================================
// Inspector
// =============================================================================

func (m Model) openInspector() (tea.Model, tea.Cmd) {
	snap := m.store.Snapshot()
	if len(snap.Nodes) == 0 || m.cursor >= len(snap.Nodes) {
		return m.drain(), nil
	}

	f, err := m.insp.Open(snap.Nodes[m.cursor].ID)
	if err != nil {
		m.notes.Pushf(notify.LevelError, "inspector: %v", err)
		return m.drain(), nil
	}
	m.open = f
	m.focus = canvas.FocusInspector

	if !f.Known {
		// Unknown type: diagnostic only, no editable form.
		m.form = nil
		m.bindings = nil
		m.notes.Pushf(notify.LevelWarn, "type %q is not recognized", f.RawType)
		return m.drain(), nil
	}

	m.bindings = buildBindings(f)
	m.form = newFieldForm(f, m.bindings)
	return m.drain(), m.form.Init()
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.closeForm()
		m.notes.Push(notify.LevelInfo, "edit cancelled")
		return m.drain(), nil
	}

	next, cmd := m.form.Update(msg)
	if f, ok := next.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.submitForm()
	case huh.StateAborted:
		m.closeForm()
		m.notes.Push(notify.LevelInfo, "edit cancelled")
		return m.drain(), nil
	}
	return m, cmd
}

// submitForm coerces widget state back into the inspector form and
// commits. Validation failure reopens the form with per-field messages.
func (m Model) submitForm() (tea.Model, tea.Cmd) {
	f := m.open
	if err := applyBindings(f, m.bindings); err != nil {
		m.notes.Pushf(notify.LevelError, "invalid value: %v", err)
		m.bindings = buildBindings(f)
		m.form = newFieldForm(f, m.bindings)
		return m.drain(), m.form.Init()
	}

	node, err := m.insp.Submit(f)
	if err != nil {
		var fieldErrs schema.FieldErrors
		if errors.As(err, &fieldErrs) {
			m.notes.Pushf(notify.LevelError, "validation failed: %s", fieldErrs.Error())
			m.bindings = buildBindings(f)
			m.form = newFieldForm(f, m.bindings)
			return m.drain(), m.form.Init()
		}
		m.notes.Pushf(notify.LevelError, "commit failed: %v", err)
		m.closeForm()
		return m.drain(), nil
	}

	m.notes.Pushf(notify.LevelInfo, "updated %s", node.Label())
	m.closeForm()
	return m.drain(), nil
}

func (m *Model) closeForm() {
	m.form = nil
	m.bindings = nil
	m.open = nil
	m.focus = canvas.FocusCanvas
}

// =============================================================================
// Run
// =============================================================================

func (m Model) startRun() (tea.Model, tea.Cmd) {
	if m.running {
		m.notes.Push(notify.LevelWarn, "a run is already in progress")
		return m.drain(), nil
	}

	wf := m.store.Workflow(m.cfg.WorkflowName)
	if err := plan.Validate(wf); err != nil {
		m.notes.Pushf(notify.LevelError, "not runnable: %v", err)
		return m.drain(), nil
	}
	if _, err := plan.Linearize(wf); err != nil {
		m.notes.Pushf(notify.LevelError, "not runnable: %v", err)
		return m.drain(), nil
	}

	ch := make(chan tea.Msg, 64)
	stop := make(chan struct{})
	m.events = ch
	m.stop = stop
	m.running = true
	m.job = nil
	m.notes.Push(notify.LevelInfo, "submitting workflow")

	client := m.client
	dryRun := m.cfg.DryRun
	go func() {
		defer close(ch)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		jobID, err := client.Submit(ctx, wf, dryRun)
		if err != nil {
			send(ch, stop, jobDoneMsg{err: err})
			return
		}
		job := run.NewJob(jobID)
		if !send(ch, stop, jobStartedMsg{job: job}) {
			return
		}
		streamErr := client.Stream(ctx, jobID, job, func(ev run.Event) {
			send(ch, stop, jobEventMsg{ev: ev})
		})
		send(ch, stop, jobDoneMsg{job: job, err: streamErr})
	}()

	return m.drain(), listen(ch)
}

// send delivers one message to the event loop. Once stop is closed nobody
// reads from ch anymore, so the send is abandoned instead of blocking the
// run goroutine; a false return tells the caller to give up on the run.
func send(ch chan<- tea.Msg, stop <-chan struct{}, msg tea.Msg) bool {
	select {
	case ch <- msg:
		return true
	case <-stop:
		return false
	}
}

// listen relays the next message from the run goroutine into the event
// loop. Re-armed after every received message until the channel closes.
func listen(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) refreshRunView() {
	if !m.ready {
		return
	}
	m.runView.SetContent(m.renderJob())
}

// =============================================================================
// Persistence
// =============================================================================

func (m *Model) loadFile() {
	raw, err := os.ReadFile(m.cfg.FilePath)
	if err != nil {
		m.notes.Pushf(notify.LevelError, "load %s: %v", m.cfg.FilePath, err)
		return
	}
	var wf graph.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		m.notes.Pushf(notify.LevelError, "load %s: %v", m.cfg.FilePath, err)
		return
	}
	if err := m.store.Load(wf); err != nil {
		m.notes.Pushf(notify.LevelError, "load %s: %v", m.cfg.FilePath, err)
		return
	}
	if wf.Name != "" {
		m.cfg.WorkflowName = wf.Name
	}
	m.notes.Pushf(notify.LevelInfo, "loaded %s (%d stages)", m.cfg.FilePath, m.store.Len())
}

func (m *Model) saveFile() {
	if m.cfg.FilePath == "" {
		m.notes.Push(notify.LevelWarn, "no file path set; start the editor with a document to save")
		return
	}
	wf := m.store.Workflow(m.cfg.WorkflowName)
	raw, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		m.notes.Pushf(notify.LevelError, "save failed: %v", err)
		return
	}
	if err := os.WriteFile(m.cfg.FilePath, append(raw, '\n'), 0o644); err != nil {
		m.notes.Pushf(notify.LevelError, "save failed: %v", err)
		return
	}
	m.notes.Pushf(notify.LevelInfo, "saved %s", m.cfg.FilePath)
}

// =============================================================================
// Helpers
// =============================================================================

func nextFocus(f canvas.Focus) canvas.Focus {
	switch f {
	case canvas.FocusPalette:
		return canvas.FocusCanvas
	case canvas.FocusCanvas:
		return canvas.FocusInspector
	default:
		return canvas.FocusPalette
	}
}

func focusName(f canvas.Focus) string {
	switch f {
	case canvas.FocusPalette:
		return "palette"
	case canvas.FocusCanvas:
		return "canvas"
	default:
		return "inspector"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// drain moves queued notifications into the footer buffer, keeping the
// most recent few.
func (m Model) drain() Model {
	for _, n := range m.notes.Drain() {
		m.status = append(m.status, fmt.Sprintf("[%s] %s", n.Level, n.Message))
	}
	const keep = 3
	if len(m.status) > keep {
		m.status = m.status[len(m.status)-keep:]
	}
	return m
}
