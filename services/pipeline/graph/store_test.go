// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode(id, typ, label string) Node {
	return Node{
		ID:   id,
		Type: typ,
		Data: map[string]any{"label": label},
	}
}

// ============================================================================
// AddNode
// ============================================================================

func TestStore_AddNode(t *testing.T) {
	s := NewStore()

	n, err := s.AddNode(testNode("a", "JiraTrigger", "Intake"))
	require.NoError(t, err)
	assert.Equal(t, "a", n.ID)

	got, ok := s.Node("a")
	require.True(t, ok)
	assert.Equal(t, "Intake", got.Label())
}

func TestStore_AddNode_MintsID(t *testing.T) {
	s := NewStore()
	n, err := s.AddNode(Node{Type: "QA"})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
}

func TestStore_AddNode_DuplicateIsNoOp(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(testNode("a", "QA", "first"))
	require.NoError(t, err)

	_, err = s.AddNode(testNode("a", "Deploy", "second"))
	require.ErrorIs(t, err, ErrDuplicateNode)

	got, ok := s.Node("a")
	require.True(t, ok)
	assert.Equal(t, "first", got.Label())
	assert.Equal(t, 1, s.Len())
}

// ============================================================================
// UpdateNodeData
// ============================================================================

func TestStore_UpdateNodeData_PartialMerge(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(Node{
		ID:   "a",
		Type: "CIWait",
		Data: map[string]any{"label": "Wait", "timeoutSec": 900, "pollSec": 10},
	})
	require.NoError(t, err)

	updated, err := s.UpdateNodeData("a", map[string]any{"timeoutSec": 120})
	require.NoError(t, err)

	// Present fields overwrite, absent fields are preserved.
	assert.Equal(t, 120, updated.Data["timeoutSec"])
	assert.Equal(t, 10, updated.Data["pollSec"])
	assert.Equal(t, "Wait", updated.Label())
}

func TestStore_UpdateNodeData_LabelUnderData(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(testNode("a", "QA", "old"))
	require.NoError(t, err)

	updated, err := s.UpdateNodeData("a", map[string]any{"label": "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Data["label"])
	assert.Equal(t, "new", updated.Label())
}

func TestStore_UpdateNodeData_MissingNode(t *testing.T) {
	s := NewStore()
	_, err := s.UpdateNodeData("ghost", map[string]any{"label": "x"})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// ============================================================================
// Connect
// ============================================================================

func TestStore_Connect_Idempotent(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(testNode("a", "JiraTrigger", "A"))
	require.NoError(t, err)
	_, err = s.AddNode(testNode("b", "Deploy", "B"))
	require.NoError(t, err)

	first, err := s.Connect("a", "b")
	require.NoError(t, err)
	second, err := s.Connect("a", "b")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, s.Snapshot().Edges, 1)

	// Reverse direction is a distinct edge.
	_, err = s.Connect("b", "a")
	require.NoError(t, err)
	assert.Len(t, s.Snapshot().Edges, 2)
}

func TestStore_Connect_Rejections(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(testNode("a", "QA", "A"))
	require.NoError(t, err)

	_, err = s.Connect("a", "a")
	assert.ErrorIs(t, err, ErrSelfEdge)

	_, err = s.Connect("a", "ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = s.Connect("ghost", "a")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// ============================================================================
// RemoveSelected
// ============================================================================

func TestStore_RemoveSelected_CascadesEdges(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.AddNode(testNode(id, "QA", id))
		require.NoError(t, err)
	}
	_, err := s.Connect("a", "b")
	require.NoError(t, err)
	_, err = s.Connect("b", "c")
	require.NoError(t, err)

	s.Select("b")
	removedNodes, removedEdges := s.RemoveSelected()
	assert.Len(t, removedNodes, 1)
	assert.Len(t, removedEdges, 2)

	snap := s.Snapshot()
	assert.Len(t, snap.Nodes, 2)
	assert.Empty(t, snap.Edges)

	// No edge references a removed node id.
	for _, e := range snap.Edges {
		_, ok := s.Node(e.Source)
		assert.True(t, ok)
		_, ok = s.Node(e.Target)
		assert.True(t, ok)
	}
}

func TestStore_RemoveSelected_EmptySelection(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(testNode("a", "QA", "A"))
	require.NoError(t, err)

	nodes, edges := s.RemoveSelected()
	assert.Nil(t, nodes)
	assert.Nil(t, edges)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Select_ReplacesPrevious(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(testNode("a", "QA", "A"))
	require.NoError(t, err)
	_, err = s.AddNode(testNode("b", "QA", "B"))
	require.NoError(t, err)

	s.Select("a")
	s.Select("b")
	assert.False(t, s.Selected("a"))
	assert.True(t, s.Selected("b"))
}

// ============================================================================
// Snapshot isolation
// ============================================================================

func TestStore_SnapshotIsImmutable(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(testNode("a", "QA", "A"))
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Nodes[0].Data["label"] = "mutated"

	got, ok := s.Node("a")
	require.True(t, ok)
	assert.Equal(t, "A", got.Label())
}

func TestStore_ReturnedNodeIsDetached(t *testing.T) {
	s := NewStore()
	added, err := s.AddNode(testNode("a", "QA", "A"))
	require.NoError(t, err)
	added.Data["label"] = "mutated"

	got, _ := s.Node("a")
	assert.Equal(t, "A", got.Label())
}

// ============================================================================
// Load / Workflow round-trip
// ============================================================================

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(Node{
		ID:       "a",
		Type:     "JiraTrigger",
		Position: Position{X: 10, Y: 20},
		Data:     map[string]any{"label": "CCS-7", "projectKey": "CCS"},
	})
	require.NoError(t, err)
	_, err = s.AddNode(testNode("b", "Deploy", "Ship it"))
	require.NoError(t, err)
	_, err = s.Connect("a", "b")
	require.NoError(t, err)

	doc := s.Workflow("release")
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded Workflow
	require.NoError(t, json.Unmarshal(raw, &decoded))

	reloaded := NewStore()
	require.NoError(t, reloaded.Load(decoded))
	out := reloaded.Workflow("release")

	// Positions survive via the float64 JSON round-trip; data values decode
	// as generic JSON types, so compare the re-marshaled documents.
	rawOut, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(rawOut))
}

func TestStore_Load_DropsDanglingEdges(t *testing.T) {
	s := NewStore()
	err := s.Load(Workflow{
		Version: WorkflowVersion,
		Name:    "corrupt",
		Nodes:   []Node{testNode("a", "QA", "A")},
		Edges: []Edge{
			{ID: "e1", Source: "a", Target: "ghost"},
			{ID: "e2", Source: "a", Target: "a"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot().Edges)
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	_, err := s.AddNode(testNode("a", "QA", "A"))
	require.NoError(t, err)
	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Snapshot().Edges)
}

// ============================================================================
// Node document shape
// ============================================================================

func TestNode_WireDocumentMirrorsLabel(t *testing.T) {
	n := Node{
		ID:   "a",
		Type: "CreateMR",
		Data: map[string]any{
			"label":   "Open MR",
			"profile": map[string]any{"id": 3, "kind": "gitlab", "name": "ci-bot"},
		},
	}
	raw, err := json.Marshal(n)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "Open MR", doc["label"])
	profile, ok := doc["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gitlab", profile["kind"])
}

func TestNode_UnmarshalNormalizesTopLevelLabel(t *testing.T) {
	raw := []byte(`{"id":"a","type":"QA","position":{"x":0,"y":0},"label":"Check"}`)
	var n Node
	require.NoError(t, json.Unmarshal(raw, &n))
	assert.Equal(t, "Check", n.Data["label"])
}

func TestNode_ProfileRefIsWeak(t *testing.T) {
	// A node referencing a profile that no longer exists stays intact;
	// resolution failure is deferred to execution time.
	n := Node{ID: "a", Type: "Deploy", Data: map[string]any{
		"label":   "Ship",
		"profile": map[string]any{"id": 42},
	}}
	ref := n.Profile()
	require.NotNil(t, ref)
	assert.Equal(t, 42, ref.ID)
	assert.Empty(t, ref.Kind)
}
