// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	serverURL    string
	workflowName string
	dryRun       bool
	watchFile    bool
	workflowID   int
	outputPath   string

	rootCmd = &cobra.Command{
		Use:   "copilot",
		Short: "A cli to edit and run Drupal release pipelines",
		Long: `Copilot edits pipeline workflow graphs in the terminal, validates
				them, and submits them to the pipeline server for execution.`,
	}

	// --- Editor ---
	editCmd = &cobra.Command{
		Use:   "edit [workflow.json]",
		Short: "Open the interactive pipeline editor",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEditCommand, // Defined in cmd_edit.go
	}

	// --- Execution ---
	runCmd = &cobra.Command{
		Use:   "run [workflow.json]",
		Short: "Validate a workflow and stream its execution",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunCommand, // Defined in cmd_run.go
	}

	validateCmd = &cobra.Command{
		Use:   "validate [workflow.json]",
		Short: "Validate a workflow and print its execution order",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidateCommand, // Defined in cmd_run.go
	}

	// --- Server documents ---
	workflowCmd = &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflow documents stored on the server",
	}
	workflowPushCmd = &cobra.Command{
		Use:   "push [workflow.json]",
		Short: "Upload a workflow document to the server",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkflowPush, // Defined in cmd_workflow.go
	}
	workflowPullCmd = &cobra.Command{
		Use:   "pull",
		Short: "Download a workflow document from the server",
		RunE:  runWorkflowPull, // Defined in cmd_workflow.go
	}

	profileCmd = &cobra.Command{
		Use:   "profile",
		Short: "Manage connection profiles stored on the server",
	}
	profileListCmd = &cobra.Command{
		Use:   "list",
		Short: "List connection profiles",
		RunE:  runProfileList, // Defined in cmd_workflow.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(),
		"Pipeline server base URL (also COPILOT_SERVER_URL)")

	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVar(&workflowName, "name", "", "Workflow name (default: taken from the file)")
	editCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Skip deploy and QA stages when running from the editor")
	editCmd.Flags().BoolVar(&watchFile, "watch", true, "Reload the editor when the file changes on disk")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Skip deploy and QA stages")

	rootCmd.AddCommand(validateCmd)

	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowPushCmd)
	workflowPushCmd.Flags().IntVar(&workflowID, "id", 1, "Server-side workflow id")
	workflowCmd.AddCommand(workflowPullCmd)
	workflowPullCmd.Flags().IntVar(&workflowID, "id", 1, "Server-side workflow id")
	workflowPullCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to file instead of stdout")

	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
}
