// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleWorkflow = `{
  "version": "1",
  "name": "release",
  "nodes": [
    {"id": "a", "type": "JiraTrigger", "position": {"x": 0, "y": 0}, "label": "CCS-1"},
    {"id": "b", "type": "CreateMR", "position": {"x": 200, "y": 0}, "label": "mr"}
  ],
  "edges": [
    {"id": "e1", "source": "a", "target": "b"}
  ]
}`

func writeSample(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wf.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWorkflow_DecodesDocument(t *testing.T) {
	wf, err := loadWorkflow(writeSample(t, sampleWorkflow))
	require.NoError(t, err)
	assert.Equal(t, "release", wf.Name)
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, "CCS-1", wf.Nodes[0].Label())
}

func TestLoadWorkflow_RejectsBadJSON(t *testing.T) {
	_, err := loadWorkflow(writeSample(t, "{not json"))
	assert.Error(t, err)
}

func TestGate_OrdersStages(t *testing.T) {
	wf, err := loadWorkflow(writeSample(t, sampleWorkflow))
	require.NoError(t, err)

	order, err := gate(wf)
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, "a", order[0].ID)
	assert.Equal(t, "b", order[1].ID)
}

func TestGate_RejectsEmptyWorkflow(t *testing.T) {
	wf, err := loadWorkflow(writeSample(t, `{"version":"1","name":"x","nodes":[],"edges":[]}`))
	require.NoError(t, err)

	_, err = gate(wf)
	assert.Error(t, err)
}

func TestAPICall_DecodesAndReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/profiles":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":1,"name":"prod-jira","kind":"jira"}]`))
		default:
			http.Error(w, `{"error":"Workflow not found"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	old := serverURL
	serverURL = srv.URL
	defer func() { serverURL = old }()

	var out []map[string]any
	require.NoError(t, apiCall(http.MethodGet, "/api/profiles", nil, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "prod-jira", out[0]["name"])

	err := apiCall(http.MethodGet, "/api/workflows/9", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
