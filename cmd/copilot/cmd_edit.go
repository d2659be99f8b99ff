// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ovanesb/drupal-devops-copilot/pkg/logging"
	"github.com/ovanesb/drupal-devops-copilot/services/editor/tui"
	"github.com/ovanesb/drupal-devops-copilot/services/editor/watch"
)

// runEditCommand starts the interactive editor, optionally backed by a
// workflow file that is reloaded when it changes on disk.
func runEditCommand(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("the editor needs an interactive terminal; use 'copilot run' for scripting")
	}

	// The TUI owns the screen; route log output to a file instead.
	logs := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  "~/.copilot/logs",
		Service: "editor",
		JSON:    true,
		Quiet:   true,
	})
	defer logs.Close()
	slog.SetDefault(logs.Slog())

	cfg := tui.DefaultConfig()
	cfg.ServerURL = serverURL
	cfg.DryRun = dryRun
	if workflowName != "" {
		cfg.WorkflowName = workflowName
	}
	if len(args) == 1 {
		cfg.FilePath = args[0]
	}

	program := tea.NewProgram(tui.NewModel(cfg), tea.WithAltScreen())

	if cfg.FilePath != "" && watchFile {
		watcher, err := watch.New(cfg.FilePath, func() {
			program.Send(tui.ReloadMsg{})
		}, nil)
		if err != nil {
			return fmt.Errorf("watch %s: %w", cfg.FilePath, err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("watch %s: %w", cfg.FilePath, err)
		}
		defer watcher.Stop()
	}

	_, err := program.Run()
	return err
}
