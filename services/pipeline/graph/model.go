// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph holds the authoritative pipeline graph: the Node, Edge and
// Workflow model plus the Store every component edits through.
//
// # Description
//
// The graph is the single source of truth for the editor. The rendering
// surface, the inspector and the persistence layer all observe or mutate it
// only through Store operations; none of them holds a second authoritative
// copy of node or edge state.
//
// # Thread Safety
//
// The Store is confined to the editor session's event loop and is NOT safe
// for concurrent use. Snapshots returned by the Store are deep copies and
// may cross goroutines freely.
package graph

import (
	"encoding/json"
)

// WorkflowVersion is the document version this package reads and writes.
const WorkflowVersion = "v1"

// Position is a 2D coordinate in canvas space. Presentation only; it has
// no execution semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ProfileRef is a non-owning reference to a Profile. Deleting the Profile
// it names must not corrupt the node holding the reference; resolution
// failure is deferred to execution time.
type ProfileRef struct {
	ID   int    `json:"id"`
	Kind string `json:"kind,omitempty"`
	Name string `json:"name,omitempty"`
}

// Node is one pipeline stage.
//
// Type is kept as authored; it is normalized to a canonical tag at
// validation and execution boundaries, so a document with an unrecognized
// type still loads and renders as a diagnostic placeholder.
//
// Data carries the type-specific configuration plus the universal "label"
// and optional "profile" reference. The label always lives under
// Data["label"]; the wire document mirrors it top-level for consumers.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data,omitempty"`
}

// nodeDoc is the wire shape of a Node: label and profile are denormalized
// projections of Data["label"] and Data["profile"].
type nodeDoc struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Label    string         `json:"label,omitempty"`
	Profile  *ProfileRef    `json:"profile,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// MarshalJSON emits the wire document: Data stays authoritative, with
// label and profile mirrored top-level.
func (n Node) MarshalJSON() ([]byte, error) {
	doc := nodeDoc{
		ID:       n.ID,
		Type:     n.Type,
		Position: n.Position,
		Label:    n.Label(),
		Profile:  n.Profile(),
		Data:     n.Data,
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the wire document, normalizing a top-level label or
// profile back under Data so the in-memory form has one authority.
func (n *Node) UnmarshalJSON(raw []byte) error {
	var doc nodeDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	n.ID = doc.ID
	n.Type = doc.Type
	n.Position = doc.Position
	n.Data = doc.Data
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	if doc.Label != "" {
		if _, ok := n.Data["label"]; !ok {
			n.Data["label"] = doc.Label
		}
	}
	if doc.Profile != nil {
		if _, ok := n.Data["profile"]; !ok {
			n.Data["profile"] = map[string]any{
				"id":   doc.Profile.ID,
				"kind": doc.Profile.Kind,
				"name": doc.Profile.Name,
			}
		}
	}
	return nil
}

// Label returns the node's display label from its data payload.
func (n Node) Label() string {
	if n.Data == nil {
		return ""
	}
	label, _ := n.Data["label"].(string)
	return label
}

// Profile returns the node's profile reference, nil when unset.
func (n Node) Profile() *ProfileRef {
	if n.Data == nil {
		return nil
	}
	ref, ok := n.Data["profile"].(map[string]any)
	if !ok {
		return nil
	}
	out := &ProfileRef{}
	switch id := ref["id"].(type) {
	case int:
		out.ID = id
	case float64:
		out.ID = int(id)
	}
	out.Kind, _ = ref["kind"].(string)
	out.Name, _ = ref["name"].(string)
	return out
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Data = cloneData(n.Data)
	return out
}

// Edge is a directed dependency between two nodes. Source and Target must
// name existing nodes and differ from each other; at most one edge exists
// per (Source, Target) pair.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Workflow is a versioned, named graph, persisted as one JSON document.
type Workflow struct {
	Version string `json:"version"`
	Name    string `json:"name"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Clone returns a deep copy of the workflow.
func (w Workflow) Clone() Workflow {
	out := w
	out.Nodes = make([]Node, len(w.Nodes))
	for i, n := range w.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.Edges = append([]Edge(nil), w.Edges...)
	return out
}

// cloneData deep-copies a node data payload. Payloads are JSON-shaped:
// maps, slices and scalars only.
func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return cloneData(tv)
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
