// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/plan"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/run"
)

// loadWorkflow reads and decodes a workflow document.
func loadWorkflow(path string) (graph.Workflow, error) {
	var wf graph.Workflow
	raw, err := os.ReadFile(path)
	if err != nil {
		return wf, err
	}
	if err := json.Unmarshal(raw, &wf); err != nil {
		return wf, fmt.Errorf("parse %s: %w", path, err)
	}
	return wf, nil
}

// gate validates a workflow and returns its execution order.
func gate(wf graph.Workflow) ([]graph.Node, error) {
	if err := plan.Validate(wf); err != nil {
		return nil, err
	}
	return plan.Linearize(wf)
}

// runValidateCommand checks a workflow file and prints the stage order it
// would execute in.
func runValidateCommand(cmd *cobra.Command, args []string) error {
	wf, err := loadWorkflow(args[0])
	if err != nil {
		return err
	}

	order, err := gate(wf)
	if err != nil {
		return err
	}

	fmt.Printf("%s: ok, %d stage(s)\n", args[0], len(order))
	for i, node := range order {
		fmt.Printf("  %2d. %-12s %s\n", i+1, node.Type, node.Label())
	}
	return nil
}

// runRunCommand validates a workflow, submits it, and streams the job
// transcript to stdout until the run settles.
func runRunCommand(cmd *cobra.Command, args []string) error {
	wf, err := loadWorkflow(args[0])
	if err != nil {
		return err
	}
	if _, err := gate(wf); err != nil {
		return err
	}

	client := run.NewClient(serverURL, nil)
	job, err := client.Run(context.Background(), wf, dryRun, func(ev run.Event) {
		switch ev.Kind {
		case run.EventStep:
			fmt.Printf("==> %s: %s\n", ev.Label, ev.Cmd)
		case run.EventLog:
			fmt.Println(ev.Line)
		case run.EventDone:
			fmt.Printf("<== %s: rc=%d\n", ev.Label, ev.RC)
		}
	})
	if err != nil {
		return err
	}

	view := job.Snapshot()
	if view.MRURL != "" {
		fmt.Printf("merge request: %s\n", view.MRURL)
	}
	if view.Status != run.StatusSuccess {
		return fmt.Errorf("job %s failed: %s", view.ID, view.Err)
	}
	fmt.Printf("job %s succeeded\n", view.ID)
	return nil
}
