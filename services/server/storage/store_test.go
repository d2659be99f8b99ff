// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
	"github.com/ovanesb/drupal-devops-copilot/services/server/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleDoc(name string) datatypes.WorkflowDoc {
	return datatypes.WorkflowDoc{
		Name: name,
		Nodes: []graph.Node{
			{ID: "n1", Type: "JiraTrigger", Data: map[string]any{"label": "CCS-42", "projectKey": "CCS"}},
			{ID: "n2", Type: "Deploy", Data: map[string]any{"label": "Deploy", "environment": "stg"}},
		},
		Edges: []graph.Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	}
}

// ============================================================================
// Workflows
// ============================================================================

func TestStore_WorkflowRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveWorkflow(ctx, 1, sampleDoc("release"))
	require.NoError(t, err)
	assert.Equal(t, 1, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.Nil(t, saved.UpdatedAt)

	got, err := s.GetWorkflow(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "release", got.Name)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "CCS-42", got.Nodes[0].Label())
	require.Len(t, got.Edges, 1)
	assert.Equal(t, "e1", got.Edges[0].ID)
}

func TestStore_GetWorkflowMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetWorkflow(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveWorkflowUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveWorkflow(ctx, 1, sampleDoc("v1"))
	require.NoError(t, err)

	second, err := s.SaveWorkflow(ctx, 1, sampleDoc("v2"))
	require.NoError(t, err)

	assert.Equal(t, "v2", second.Name)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	require.NotNil(t, second.UpdatedAt)

	got, err := s.GetWorkflow(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
}

func TestStore_UpdateWorkflowRequiresExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateWorkflow(ctx, 7, sampleDoc("nope"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.SaveWorkflow(ctx, 7, sampleDoc("v1"))
	require.NoError(t, err)

	updated, err := s.UpdateWorkflow(ctx, 7, sampleDoc("v2"))
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Name)
	require.NotNil(t, updated.UpdatedAt)
}

// ============================================================================
// Profiles
// ============================================================================

func TestStore_ProfileCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateProfile(ctx, datatypes.ProfileDoc{Name: "prod jira", Kind: "jira", BaseURL: "https://jira.example.com"})
	require.NoError(t, err)
	b, err := s.CreateProfile(ctx, datatypes.ProfileDoc{Name: "gitlab", Kind: "gitlab"})
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)

	list, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	updated, err := s.UpdateProfile(ctx, a.ID, datatypes.ProfileDoc{Name: "staging jira", Kind: "jira"})
	require.NoError(t, err)
	assert.Equal(t, "staging jira", updated.Name)
	assert.Equal(t, a.CreatedAt, updated.CreatedAt)
	require.NotNil(t, updated.UpdatedAt)

	require.NoError(t, s.DeleteProfile(ctx, b.ID))
	list, err = s.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestStore_ProfileMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateProfile(ctx, 42, datatypes.ProfileDoc{Name: "x", Kind: "generic"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteProfile(ctx, 42), ErrNotFound)
}

func TestStore_ListProfilesEmpty(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListProfiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_ProfileIDsSurviveReopenOfStore(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s1, err := NewStore(db)
	require.NoError(t, err)
	p1, err := s1.CreateProfile(context.Background(), datatypes.ProfileDoc{Name: "a", Kind: "jira"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })
	p2, err := s2.CreateProfile(context.Background(), datatypes.ProfileDoc{Name: "b", Kind: "gitlab"})
	require.NoError(t, err)

	assert.Greater(t, p2.ID, p1.ID)
}
