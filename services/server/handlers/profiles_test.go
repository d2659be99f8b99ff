// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovanesb/drupal-devops-copilot/services/server/datatypes"
)

func TestProfiles_CRUDRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/profiles", map[string]any{
		"name": "prod jira", "kind": "jira", "base_url": "https://jira.example.com", "username": "bot",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created datatypes.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, "jira", created.Kind)

	rec = env.do(t, http.MethodGet, "/api/profiles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []datatypes.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "prod jira", list[0].Name)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/profiles?id=%d", created.ID), map[string]any{
		"name": "staging jira", "kind": "jira",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated datatypes.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "staging jira", updated.Name)
	assert.NotNil(t, updated.UpdatedAt)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/profiles?id=%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/profiles", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestProfiles_ValidationRejectsUnknownKind(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/profiles", map[string]any{
		"name": "x", "kind": "svn",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/profiles", map[string]any{"kind": "jira"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "name is required")
}

func TestProfiles_MissingID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/profiles", map[string]any{"name": "x", "kind": "generic"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/profiles", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/profiles?id=42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/profiles?id=42", map[string]any{"name": "x", "kind": "generic"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
