// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovanesb/drupal-devops-copilot/services/server/datatypes"
)

func defaultServerURL() string {
	if v := os.Getenv("COPILOT_SERVER_URL"); v != "" {
		return v
	}
	return "http://127.0.0.1:8055"
}

var apiClient = &http.Client{Timeout: 30 * time.Second}

// apiCall performs one JSON request against the pipeline server and
// decodes the response into out (skipped when out is nil).
func apiCall(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	url := strings.TrimRight(serverURL, "/") + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// runWorkflowPush uploads a workflow document under the given id.
func runWorkflowPush(cmd *cobra.Command, args []string) error {
	wf, err := loadWorkflow(args[0])
	if err != nil {
		return err
	}

	doc := datatypes.WorkflowDoc{Name: wf.Name, Nodes: wf.Nodes, Edges: wf.Edges}
	var stored datatypes.StoredWorkflow
	if err := apiCall(http.MethodPost, fmt.Sprintf("/api/workflows/%d", workflowID), doc, &stored); err != nil {
		return err
	}

	fmt.Printf("pushed workflow %d (%q, %d stages)\n", stored.ID, stored.Name, len(stored.Nodes))
	return nil
}

// runWorkflowPull downloads a workflow document and writes it to stdout
// or the --output file.
func runWorkflowPull(cmd *cobra.Command, args []string) error {
	var stored datatypes.StoredWorkflow
	if err := apiCall(http.MethodGet, fmt.Sprintf("/api/workflows/%d", workflowID), nil, &stored); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(raw)
		return err
	}
	if err := os.WriteFile(outputPath, raw, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outputPath)
	return nil
}

// runProfileList prints the server's connection profiles.
func runProfileList(cmd *cobra.Command, args []string) error {
	var profiles []datatypes.Profile
	if err := apiCall(http.MethodGet, "/api/profiles", nil, &profiles); err != nil {
		return err
	}

	if len(profiles) == 0 {
		fmt.Println("no profiles")
		return nil
	}
	for _, p := range profiles {
		line := fmt.Sprintf("%3d  %-8s %s", p.ID, p.Kind, p.Name)
		if p.BaseURL != "" {
			line += "  " + p.BaseURL
		}
		fmt.Println(line)
	}
	return nil
}
