// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package inspector binds the selected node's configuration to an editable
// form.
//
// # Description
//
// A Form is initialized from the node's current data merged over the
// registry defaults, edited field by field, and committed only after the
// registry validates the whole payload. Validation failure keeps the form
// open with per-field errors and commits nothing; the store is untouched.
package inspector

import (
	"errors"
	"fmt"

	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/schema"
)

// ErrNoSubject reports an Open or Submit against a node id that is not in
// the store (deleted since selection, or never existed).
var ErrNoSubject = errors.New("no such node")

// Form is the editable state for one selected node.
//
// When Known is false the subject's type did not normalize; the form is a
// read-only diagnostic carrying the raw type string and the recognized
// tags, and Submit refuses to commit.
type Form struct {
	NodeID     string
	Type       schema.Type
	Known      bool
	RawType    string
	Values     map[string]any
	Errors     schema.FieldErrors
	Recognized []schema.Type
}

// Set stages one field value. Staged values are only persisted by a
// successful Submit.
func (f *Form) Set(field string, value any) {
	if f.Values == nil {
		f.Values = make(map[string]any)
	}
	f.Values[field] = value
}

// Inspector builds and commits forms against the live store.
type Inspector struct {
	store *graph.Store
}

// New creates an Inspector over the session's store.
func New(store *graph.Store) *Inspector {
	return &Inspector{store: store}
}

// Open builds a form for the node, re-reading it from the current store
// state so edits act on live data even if the graph changed since
// selection.
//
// Field values are the node's data merged over the registry defaults, so
// missing optional fields show their effective values rather than blanks.
func (i *Inspector) Open(id string) (*Form, error) {
	node, ok := i.store.Node(id)
	if !ok {
		return nil, fmt.Errorf("open inspector for %s: %w", id, ErrNoSubject)
	}

	t, known := schema.Normalize(node.Type)
	if !known {
		return &Form{
			NodeID:     id,
			Known:      false,
			RawType:    node.Type,
			Recognized: schema.All(),
		}, nil
	}

	values := schema.Defaults(t)
	for k, v := range node.Data {
		values[k] = v
	}

	return &Form{
		NodeID:  id,
		Type:    t,
		Known:   true,
		RawType: node.Type,
		Values:  values,
	}, nil
}

// Submit validates the staged values and, on success, commits them as a
// partial update to the live node. On validation failure the form keeps
// its per-field errors and nothing is committed.
func (i *Inspector) Submit(f *Form) (graph.Node, error) {
	if !f.Known {
		return graph.Node{}, fmt.Errorf("node type %q is not recognized", f.RawType)
	}
	if _, ok := i.store.Node(f.NodeID); !ok {
		return graph.Node{}, fmt.Errorf("submit inspector form: %w", ErrNoSubject)
	}

	_, fieldErrs := schema.Validate(f.Type, f.Values)
	if len(fieldErrs) > 0 {
		f.Errors = fieldErrs
		return graph.Node{}, fieldErrs
	}
	f.Errors = nil

	node, err := i.store.UpdateNodeData(f.NodeID, f.Values)
	if err != nil {
		return graph.Node{}, fmt.Errorf("submit inspector form: %w", err)
	}
	return node, nil
}
