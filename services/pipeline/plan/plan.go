// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package plan gates execution of a workflow and linearizes it into an
// execution order.
//
// # Description
//
// Before a workflow may be submitted for execution, every node must pass
// its type's schema validation and the graph must be structurally sound:
// non-empty, no dangling edges, no cycles. Validation reports the first
// offending node or edge and never lets a partially valid plan through.
//
// Linearization is a topological sort of the edge relation (dependency =
// edge direction) using Kahn's algorithm. Ties resolve in node insertion
// order, so the same graph always yields the same plan. A cyclic graph is
// an error, never an arbitrary order.
package plan

import (
	"errors"
	"fmt"

	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/schema"
)

// ErrCycle reports that the workflow's edges form a cycle.
var ErrCycle = errors.New("workflow contains a dependency cycle")

// ErrEmptyWorkflow reports a run attempt on a graph with no nodes.
var ErrEmptyWorkflow = errors.New("workflow has no stages")

// ValidationError names the first offending node or edge found while
// gating a workflow for execution.
type ValidationError struct {
	// NodeID is set when a node failed validation.
	NodeID string

	// EdgeID is set when an edge failed structural checks.
	EdgeID string

	// Fields carries per-field messages for schema failures.
	Fields schema.FieldErrors

	// Reason is the human-readable summary.
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.NodeID != "":
		return fmt.Sprintf("node %s: %s", e.NodeID, e.Reason)
	case e.EdgeID != "":
		return fmt.Sprintf("edge %s: %s", e.EdgeID, e.Reason)
	default:
		return e.Reason
	}
}

// Validate gates a workflow for execution.
//
// # Description
//
// Checks, in order: the graph is non-empty; every edge's endpoints resolve
// to existing nodes (re-checked here since file-loaded workflows bypass
// the Store); every node's type normalizes to a canonical tag and its data
// passes that tag's schema. The first failure aborts with a
// *ValidationError; nothing is ever partially accepted.
//
// Cycle detection happens in Linearize; callers gating a run should treat
// its ErrCycle the same way as a validation failure.
func Validate(wf graph.Workflow) error {
	if len(wf.Nodes) == 0 {
		return &ValidationError{Reason: ErrEmptyWorkflow.Error()}
	}

	ids := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		ids[n.ID] = true
	}

	for _, e := range wf.Edges {
		if !ids[e.Source] {
			return &ValidationError{EdgeID: e.ID, Reason: fmt.Sprintf("source %q does not exist", e.Source)}
		}
		if !ids[e.Target] {
			return &ValidationError{EdgeID: e.ID, Reason: fmt.Sprintf("target %q does not exist", e.Target)}
		}
		if e.Source == e.Target {
			return &ValidationError{EdgeID: e.ID, Reason: "source and target are the same node"}
		}
	}

	for _, n := range wf.Nodes {
		typ, ok := schema.Normalize(n.Type)
		if !ok {
			return &ValidationError{NodeID: n.ID, Reason: fmt.Sprintf("unrecognized type %q", n.Type)}
		}
		if _, ferrs := schema.Validate(typ, n.Data); ferrs != nil {
			return &ValidationError{
				NodeID: n.ID,
				Fields: ferrs,
				Reason: fmt.Sprintf("invalid %s configuration: %s", typ, ferrs.Error()),
			}
		}
	}

	return nil
}

// Linearize orders the workflow's nodes into an execution plan.
//
// # Description
//
// Kahn's algorithm over the edge relation. The initial frontier and each
// successor list follow node insertion order, so linearization is
// deterministic for a given document. When not every node can be ordered,
// the edges form a cycle and ErrCycle is returned.
//
// # Outputs
//
//   - []graph.Node: Nodes in execution order.
//   - error: ErrCycle (wrapped) when the graph is cyclic.
func Linearize(wf graph.Workflow) ([]graph.Node, error) {
	indegree := make(map[string]int, len(wf.Nodes))
	successors := make(map[string][]string, len(wf.Nodes))
	byID := make(map[string]graph.Node, len(wf.Nodes))

	for _, n := range wf.Nodes {
		indegree[n.ID] = 0
		byID[n.ID] = n
	}
	for _, e := range wf.Edges {
		successors[e.Source] = append(successors[e.Source], e.Target)
		indegree[e.Target]++
	}

	var queue []string
	for _, n := range wf.Nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	ordered := make([]graph.Node, 0, len(wf.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byID[id])

		for _, succ := range successors[id] {
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(ordered) != len(wf.Nodes) {
		return nil, fmt.Errorf("linearize %q: %w", wf.Name, ErrCycle)
	}
	return ordered, nil
}
