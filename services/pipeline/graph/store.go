// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Store errors. Callers branch with errors.Is.
var (
	// ErrDuplicateNode reports an AddNode with an id already present.
	ErrDuplicateNode = errors.New("node id already exists")

	// ErrNodeNotFound reports an operation naming a missing node id.
	ErrNodeNotFound = errors.New("node not found")

	// ErrSelfEdge reports a connect attempt from a node to itself.
	ErrSelfEdge = errors.New("edge source and target must differ")
)

// Snapshot is an immutable deep copy of the graph at one point in time.
// Consumers (renderer, persistence, job submission) diff and react to
// snapshots without re-deriving structure from the live Store.
type Snapshot struct {
	Nodes []Node
	Edges []Edge
}

// Store is the sole authoritative holder of the pipeline graph.
//
// # Description
//
// Every other component observes or mutates the graph only through this
// type's operations. The Store also owns the selection set, since removal
// semantics ("remove everything selected, cascade edges") are a graph
// invariant rather than a presentation detail.
//
// # Lifecycle
//
// One Store exists per editor session. Reset clears it on explicit user
// action; otherwise it lives until the session ends. In-memory state does
// not survive a restart unless explicitly saved.
//
// # Thread Safety
//
// Not safe for concurrent use; mutations are serialized by the editor's
// event loop.
type Store struct {
	nodes    []Node
	edges    []Edge
	index    map[string]int // node id -> position in nodes
	selected map[string]bool
}

// NewStore creates an empty graph store.
func NewStore() *Store {
	return &Store{
		index:    map[string]int{},
		selected: map[string]bool{},
	}
}

// AddNode inserts a node into the graph.
//
// A missing id is minted; a duplicate id is rejected as a no-op with
// ErrDuplicateNode. The node's label is normalized to live under
// Data["label"]. Returns a copy of the stored node.
func (s *Store) AddNode(n Node) (Node, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if _, exists := s.index[n.ID]; exists {
		return Node{}, fmt.Errorf("add node %q: %w", n.ID, ErrDuplicateNode)
	}
	stored := n.Clone()
	if stored.Data == nil {
		stored.Data = map[string]any{}
	}
	s.nodes = append(s.nodes, stored)
	s.index[stored.ID] = len(s.nodes) - 1
	return stored.Clone(), nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i].Clone(), true
}

// UpdateNodeData merges a partial data payload into a node.
//
// Partial-merge semantics: fields present in partial overwrite, fields
// absent are preserved. A "label" key lands under Data["label"] like any
// other field, keeping the label's single authority. Returns a copy of
// the updated node.
func (s *Store) UpdateNodeData(id string, partial map[string]any) (Node, error) {
	i, ok := s.index[id]
	if !ok {
		return Node{}, fmt.Errorf("update node %q: %w", id, ErrNodeNotFound)
	}
	node := &s.nodes[i]
	if node.Data == nil {
		node.Data = map[string]any{}
	}
	for k, v := range partial {
		node.Data[k] = cloneValue(v)
	}
	return node.Clone(), nil
}

// MoveNode updates a node's canvas position.
func (s *Store) MoveNode(id string, pos Position) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("move node %q: %w", id, ErrNodeNotFound)
	}
	s.nodes[i].Position = pos
	return nil
}

// Connect adds a directed edge between two existing nodes.
//
// Idempotent per (source, target): a duplicate connect attempt returns the
// existing edge rather than creating another. Self-loops and references to
// missing nodes are rejected.
func (s *Store) Connect(source, target string) (Edge, error) {
	if source == target {
		return Edge{}, fmt.Errorf("connect %q->%q: %w", source, target, ErrSelfEdge)
	}
	if _, ok := s.index[source]; !ok {
		return Edge{}, fmt.Errorf("connect source %q: %w", source, ErrNodeNotFound)
	}
	if _, ok := s.index[target]; !ok {
		return Edge{}, fmt.Errorf("connect target %q: %w", target, ErrNodeNotFound)
	}
	for _, e := range s.edges {
		if e.Source == source && e.Target == target {
			return e, nil
		}
	}
	edge := Edge{ID: uuid.NewString(), Source: source, Target: target}
	s.edges = append(s.edges, edge)
	return edge, nil
}

// Select marks the given nodes as the current selection, replacing any
// previous one. Unknown ids are ignored.
func (s *Store) Select(ids ...string) {
	s.selected = map[string]bool{}
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			s.selected[id] = true
		}
	}
}

// ClearSelection empties the selection set.
func (s *Store) ClearSelection() {
	s.selected = map[string]bool{}
}

// Selected reports whether a node is in the current selection.
func (s *Store) Selected(id string) bool {
	return s.selected[id]
}

// RemoveSelected atomically removes all selected nodes and every edge
// with a removed endpoint. Cascading edge cleanup is mandatory: a dangling
// edge referencing a removed node would violate a graph invariant.
//
// Returns the removed nodes and edges.
func (s *Store) RemoveSelected() ([]Node, []Edge) {
	if len(s.selected) == 0 {
		return nil, nil
	}

	var removedNodes []Node
	kept := s.nodes[:0]
	for _, n := range s.nodes {
		if s.selected[n.ID] {
			removedNodes = append(removedNodes, n)
		} else {
			kept = append(kept, n)
		}
	}
	s.nodes = kept

	var removedEdges []Edge
	keptEdges := s.edges[:0]
	for _, e := range s.edges {
		if s.selected[e.Source] || s.selected[e.Target] {
			removedEdges = append(removedEdges, e)
		} else {
			keptEdges = append(keptEdges, e)
		}
	}
	s.edges = keptEdges

	s.selected = map[string]bool{}
	s.reindex()
	return removedNodes, removedEdges
}

// Reset clears the graph to empty. Explicit user action only.
func (s *Store) Reset() {
	s.nodes = nil
	s.edges = nil
	s.index = map[string]int{}
	s.selected = map[string]bool{}
}

// Load replaces the graph with the given workflow's nodes and edges.
//
// Edges referencing missing nodes are dropped rather than loaded, so a
// hand-edited or corrupted document can't smuggle a dangling edge past
// the Store invariants. The selection is cleared.
func (s *Store) Load(wf Workflow) error {
	s.Reset()
	for _, n := range wf.Nodes {
		if _, err := s.AddNode(n); err != nil {
			return fmt.Errorf("load workflow %q: %w", wf.Name, err)
		}
	}
	seen := map[[2]string]bool{}
	for _, e := range wf.Edges {
		if _, ok := s.index[e.Source]; !ok {
			continue
		}
		if _, ok := s.index[e.Target]; !ok {
			continue
		}
		if e.Source == e.Target {
			continue
		}
		pair := [2]string{e.Source, e.Target}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.edges = append(s.edges, e)
	}
	return nil
}

// Snapshot returns an immutable deep copy of the current graph.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Nodes: make([]Node, len(s.nodes)),
		Edges: append([]Edge(nil), s.edges...),
	}
	for i, n := range s.nodes {
		snap.Nodes[i] = n.Clone()
	}
	return snap
}

// Workflow exports the graph as a versioned document with the given name.
func (s *Store) Workflow(name string) Workflow {
	snap := s.Snapshot()
	return Workflow{
		Version: WorkflowVersion,
		Name:    name,
		Nodes:   snap.Nodes,
		Edges:   snap.Edges,
	}
}

// Len returns the node count.
func (s *Store) Len() int {
	return len(s.nodes)
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.nodes))
	for i, n := range s.nodes {
		s.index[n.ID] = i
	}
}
