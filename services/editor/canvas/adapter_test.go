// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovanesb/drupal-devops-copilot/services/editor/notify"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
)

func newAdapter(t *testing.T) (*Adapter, *graph.Store, *notify.Queue) {
	t.Helper()
	store := graph.NewStore()
	queue := notify.NewQueue()
	return NewAdapter(store, queue), store, queue
}

func TestViewport_ToCanvas(t *testing.T) {
	v := Viewport{OffsetX: 100, OffsetY: 50, Zoom: 2}
	pos := v.ToCanvas(300, 250)
	assert.Equal(t, graph.Position{X: 100, Y: 100}, pos)

	// Zero zoom falls back to 1:1.
	v = Viewport{OffsetX: 10, OffsetY: 10}
	pos = v.ToCanvas(30, 40)
	assert.Equal(t, graph.Position{X: 20, Y: 30}, pos)
}

func TestAdapter_DropNodeSeedsDefaults(t *testing.T) {
	a, store, _ := newAdapter(t)
	a.SetViewport(Viewport{OffsetX: 100, OffsetY: 0, Zoom: 1})

	node, err := a.DropNode(400, 120, "ci_wait")
	require.NoError(t, err)

	assert.NotEmpty(t, node.ID)
	assert.Equal(t, graph.Position{X: 300, Y: 120}, node.Position)
	assert.Equal(t, float64(900), toFloat(node.Data["timeoutSec"]))
	assert.Equal(t, float64(10), toFloat(node.Data["pollSec"]))
	assert.Equal(t, "CIWait", node.Label())
	assert.Equal(t, 1, store.Len())
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}

func TestAdapter_DropUnknownTypeStillCreates(t *testing.T) {
	a, store, _ := newAdapter(t)

	node, err := a.DropNode(0, 0, "Mystery")
	require.NoError(t, err)
	assert.Equal(t, "Mystery", node.Type)
	assert.Equal(t, "Mystery", node.Label())
	assert.Equal(t, 1, store.Len())
}

func TestAdapter_MoveNode(t *testing.T) {
	a, store, _ := newAdapter(t)
	node, err := a.DropNode(0, 0, "Deploy")
	require.NoError(t, err)

	require.NoError(t, a.MoveNode(node.ID, 50, 60))
	moved, ok := store.Node(node.ID)
	require.True(t, ok)
	assert.Equal(t, graph.Position{X: 50, Y: 60}, moved.Position)

	assert.Error(t, a.MoveNode("ghost", 1, 1))
}

func TestAdapter_ConnectGestureIdempotent(t *testing.T) {
	a, _, queue := newAdapter(t)
	n1, _ := a.DropNode(0, 0, "JiraTrigger")
	n2, _ := a.DropNode(100, 0, "CreateMR")

	e1, err := a.ConnectGesture(n1.ID, n2.ID)
	require.NoError(t, err)
	e2, err := a.ConnectGesture(n1.ID, n2.ID)
	require.NoError(t, err)
	assert.Equal(t, e1.ID, e2.ID)

	// Self-loop is rejected and surfaces as a notification.
	_, err = a.ConnectGesture(n1.ID, n1.ID)
	assert.Error(t, err)
	assert.Equal(t, 1, queue.Len())
}

func TestAdapter_KeyDeleteRespectsFocus(t *testing.T) {
	a, store, _ := newAdapter(t)
	n1, _ := a.DropNode(0, 0, "JiraTrigger")
	n2, _ := a.DropNode(100, 0, "Deploy")
	_, err := a.ConnectGesture(n1.ID, n2.ID)
	require.NoError(t, err)

	a.ClickNode(n1.ID)

	// Typing in the inspector must not delete canvas nodes.
	nodes, edges := a.KeyDelete(FocusInspector)
	assert.Nil(t, nodes)
	assert.Nil(t, edges)
	assert.Equal(t, 2, store.Len())

	nodes, edges = a.KeyDelete(FocusCanvas)
	require.Len(t, nodes, 1)
	assert.Equal(t, n1.ID, nodes[0].ID)
	require.Len(t, edges, 1)
	assert.Equal(t, 1, store.Len())

	// Cascade left no dangling edges behind.
	snap := store.Snapshot()
	assert.Empty(t, snap.Edges)
}

func TestAdapter_ClickBackgroundClearsSelection(t *testing.T) {
	a, store, _ := newAdapter(t)
	n, _ := a.DropNode(0, 0, "QA")

	a.ClickNode(n.ID)
	assert.True(t, store.Selected(n.ID))

	a.ClickBackground()
	assert.False(t, store.Selected(n.ID))
}
