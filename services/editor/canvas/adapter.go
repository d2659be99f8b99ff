// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package canvas translates editing-surface gestures into graph store
// operations.
//
// # Description
//
// The rendering surface never mutates graph state itself: every gesture
// (drop from palette, drag, click, connect, delete key) funnels through
// the Adapter into the store, and the surface repaints from a fresh store
// snapshot. Data flows one way.
package canvas

import (
	"fmt"

	"github.com/ovanesb/drupal-devops-copilot/services/editor/notify"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/schema"
)

// Focus identifies which editor region owns keyboard input.
type Focus int

const (
	FocusCanvas Focus = iota
	FocusInspector
	FocusPalette
)

// Viewport is the current pan/zoom transform of the canvas.
type Viewport struct {
	OffsetX float64
	OffsetY float64
	Zoom    float64
}

// ToCanvas converts screen coordinates to canvas-space coordinates. A zero
// or negative zoom is treated as 1:1.
func (v Viewport) ToCanvas(screenX, screenY float64) graph.Position {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return graph.Position{
		X: (screenX - v.OffsetX) / zoom,
		Y: (screenY - v.OffsetY) / zoom,
	}
}

// Adapter funnels gestures into store operations.
//
// Not safe for concurrent use; owned by the editor event loop.
type Adapter struct {
	store *graph.Store
	notes *notify.Queue
	view  Viewport
}

// NewAdapter creates an Adapter over the session's store. notes may be nil
// when no notification surface exists (headless use).
func NewAdapter(store *graph.Store, notes *notify.Queue) *Adapter {
	return &Adapter{
		store: store,
		notes: notes,
		view:  Viewport{Zoom: 1},
	}
}

// SetViewport updates the pan/zoom transform used for coordinate
// conversion.
func (a *Adapter) SetViewport(v Viewport) {
	a.view = v
}

// Viewport returns the current transform.
func (a *Adapter) Viewport() Viewport {
	return a.view
}

func (a *Adapter) pushErr(format string, args ...any) {
	if a.notes != nil {
		a.notes.Pushf(notify.LevelError, format, args...)
	}
}

// DropNode handles drag-from-palette: creates a node of rawType at the
// dropped screen position, seeded with the registry defaults for its type.
//
// An unrecognized rawType still produces a node (it renders as an inert
// diagnostic, the graph stays editable) but gets no defaults.
func (a *Adapter) DropNode(screenX, screenY float64, rawType string) (graph.Node, error) {
	data := map[string]any{"label": rawType}
	if t, ok := schema.Normalize(rawType); ok {
		data = schema.Defaults(t)
		data["label"] = string(t)
	}

	node, err := a.store.AddNode(graph.Node{
		Type:     rawType,
		Position: a.view.ToCanvas(screenX, screenY),
		Data:     data,
	})
	if err != nil {
		a.pushErr("could not add node: %v", err)
		return graph.Node{}, fmt.Errorf("drop node: %w", err)
	}
	return node, nil
}

// MoveNode handles a drag: converts the released screen position and
// updates the node's canvas position.
func (a *Adapter) MoveNode(id string, screenX, screenY float64) error {
	if err := a.store.MoveNode(id, a.view.ToCanvas(screenX, screenY)); err != nil {
		return fmt.Errorf("move node: %w", err)
	}
	return nil
}

// ClickNode selects a single node. The inspector derives its subject from
// this selection against the live store, never a stale copy.
func (a *Adapter) ClickNode(id string) {
	a.store.Select(id)
}

// ClickBackground clears the selection.
func (a *Adapter) ClickBackground() {
	a.store.ClearSelection()
}

// ConnectGesture handles a user-drawn edge between two node handles.
// Connecting the same pair again returns the existing edge.
func (a *Adapter) ConnectGesture(source, target string) (graph.Edge, error) {
	edge, err := a.store.Connect(source, target)
	if err != nil {
		a.pushErr("could not connect: %v", err)
		return graph.Edge{}, fmt.Errorf("connect gesture: %w", err)
	}
	return edge, nil
}

// KeyDelete handles Backspace/Delete. The removal applies only while focus
// is on the canvas region, so text-field deletion is never hijacked.
func (a *Adapter) KeyDelete(focus Focus) ([]graph.Node, []graph.Edge) {
	if focus != FocusCanvas {
		return nil, nil
	}
	return a.store.RemoveSelected()
}
