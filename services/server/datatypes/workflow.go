// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the request/response documents of the copilot
// API service.
//
// # Description
//
// Workflow and profile documents are what the editor persists and what the
// execution surface consumes. The node/edge shapes come from
// services/pipeline/graph so the wire format is identical on both sides of
// the HTTP boundary.
package datatypes

import (
	"time"

	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
)

// WorkflowDoc is the client-supplied workflow body for POST/PUT
// /api/workflows/{id}. The id lives in the path, never in the body.
type WorkflowDoc struct {
	Name  string       `json:"name"`
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// StoredWorkflow is a persisted workflow with server-assigned metadata.
type StoredWorkflow struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	Nodes     []graph.Node `json:"nodes"`
	Edges     []graph.Edge `json:"edges"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
}

// RunRequest is the body of POST /api/run.
type RunRequest struct {
	Workflow graph.Workflow `json:"workflow" binding:"required"`
	DryRun   bool           `json:"dry_run"`
}

// RunResponse is the reply of POST /api/run.
type RunResponse struct {
	JobID string `json:"job_id"`
}
