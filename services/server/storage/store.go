// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ovanesb/drupal-devops-copilot/services/server/datatypes"
)

// ErrNotFound reports a lookup for a workflow or profile id that does not
// exist.
var ErrNotFound = errors.New("not found")

// profileSeqKey holds the profile id sequence. The "!" prefix keeps it out
// of the "profile:" document scan range.
var profileSeqKey = []byte("!seq:profile")

// Store provides workflow and profile CRUD over a BadgerDB instance.
//
// # Description
//
// Workflows are keyed by caller-chosen integer ids (the editor pins its
// document to a fixed id); profiles get server-assigned ids from a Badger
// sequence. Values are the JSON documents from the datatypes package, so
// what goes over the wire is exactly what sits on disk.
//
// # Thread Safety
//
// Safe for concurrent use; Badger transactions provide isolation.
type Store struct {
	db  *DB
	seq *badger.Sequence
}

// NewStore creates a Store over an opened database. Call Close to release
// the id sequence before closing the database.
func NewStore(db *DB) (*Store, error) {
	seq, err := db.GetSequence(profileSeqKey, 16)
	if err != nil {
		return nil, fmt.Errorf("allocate profile id sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the profile id sequence. The database itself remains open.
func (s *Store) Close() error {
	return s.seq.Release()
}

func workflowKey(id int) []byte {
	return []byte(fmt.Sprintf("workflow:%010d", id))
}

func profileKey(id int) []byte {
	return []byte(fmt.Sprintf("profile:%010d", id))
}

// ============================================================================
// Workflows
// ============================================================================

// GetWorkflow fetches a workflow by id. Returns ErrNotFound if absent.
func (s *Store) GetWorkflow(ctx context.Context, id int) (datatypes.StoredWorkflow, error) {
	var wf datatypes.StoredWorkflow
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(workflowKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &wf)
		})
	})
	if err != nil {
		return datatypes.StoredWorkflow{}, fmt.Errorf("get workflow %d: %w", id, err)
	}
	return wf, nil
}

// SaveWorkflow creates or replaces the workflow at id. The created_at of
// an existing document is preserved; replacement stamps updated_at.
func (s *Store) SaveWorkflow(ctx context.Context, id int, doc datatypes.WorkflowDoc) (datatypes.StoredWorkflow, error) {
	wf := datatypes.StoredWorkflow{
		ID:    id,
		Name:  doc.Name,
		Nodes: doc.Nodes,
		Edges: doc.Edges,
	}
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		now := time.Now().UTC()
		item, err := txn.Get(workflowKey(id))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			wf.CreatedAt = now
		case err != nil:
			return err
		default:
			var prev datatypes.StoredWorkflow
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &prev)
			}); err != nil {
				return err
			}
			wf.CreatedAt = prev.CreatedAt
			wf.UpdatedAt = &now
		}
		raw, err := json.Marshal(wf)
		if err != nil {
			return err
		}
		return txn.Set(workflowKey(id), raw)
	})
	if err != nil {
		return datatypes.StoredWorkflow{}, fmt.Errorf("save workflow %d: %w", id, err)
	}
	return wf, nil
}

// UpdateWorkflow replaces an existing workflow. Unlike SaveWorkflow it
// returns ErrNotFound for an id that was never created.
func (s *Store) UpdateWorkflow(ctx context.Context, id int, doc datatypes.WorkflowDoc) (datatypes.StoredWorkflow, error) {
	var wf datatypes.StoredWorkflow
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(workflowKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var prev datatypes.StoredWorkflow
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &prev)
		}); err != nil {
			return err
		}
		now := time.Now().UTC()
		wf = datatypes.StoredWorkflow{
			ID:        id,
			Name:      doc.Name,
			Nodes:     doc.Nodes,
			Edges:     doc.Edges,
			CreatedAt: prev.CreatedAt,
			UpdatedAt: &now,
		}
		raw, err := json.Marshal(wf)
		if err != nil {
			return err
		}
		return txn.Set(workflowKey(id), raw)
	})
	if err != nil {
		return datatypes.StoredWorkflow{}, fmt.Errorf("update workflow %d: %w", id, err)
	}
	return wf, nil
}

// ============================================================================
// Profiles
// ============================================================================

// CreateProfile stores a new profile under the next sequence id.
func (s *Store) CreateProfile(ctx context.Context, doc datatypes.ProfileDoc) (datatypes.Profile, error) {
	next, err := s.seq.Next()
	if err != nil {
		return datatypes.Profile{}, fmt.Errorf("create profile: next id: %w", err)
	}
	p := datatypes.Profile{
		ID:        int(next) + 1, // sequence starts at 0, ids at 1
		Name:      doc.Name,
		Kind:      doc.Kind,
		BaseURL:   doc.BaseURL,
		Username:  doc.Username,
		CreatedAt: time.Now().UTC(),
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		raw, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set(profileKey(p.ID), raw)
	})
	if err != nil {
		return datatypes.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns all profiles in ascending id order.
func (s *Store) ListProfiles(ctx context.Context) ([]datatypes.Profile, error) {
	profiles := []datatypes.Profile{}
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("profile:")
		it := txn.NewIterator(opts)
		defer it.Close()

		// Zero-padded keys make key order equal id order.
		for it.Rewind(); it.Valid(); it.Next() {
			var p datatypes.Profile
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			profiles = append(profiles, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// UpdateProfile replaces an existing profile. Returns ErrNotFound for an
// unknown id.
func (s *Store) UpdateProfile(ctx context.Context, id int, doc datatypes.ProfileDoc) (datatypes.Profile, error) {
	var p datatypes.Profile
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var prev datatypes.Profile
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &prev)
		}); err != nil {
			return err
		}
		now := time.Now().UTC()
		p = datatypes.Profile{
			ID:        id,
			Name:      doc.Name,
			Kind:      doc.Kind,
			BaseURL:   doc.BaseURL,
			Username:  doc.Username,
			CreatedAt: prev.CreatedAt,
			UpdatedAt: &now,
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set(profileKey(id), raw)
	})
	if err != nil {
		return datatypes.Profile{}, fmt.Errorf("update profile %d: %w", id, err)
	}
	return p, nil
}

// DeleteProfile removes a profile. Returns ErrNotFound for an unknown id.
// Nodes referencing the profile are untouched; the reference is non-owning
// and resolution failure is deferred to execution time.
func (s *Store) DeleteProfile(ctx context.Context, id int) error {
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(profileKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return txn.Delete(profileKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete profile %d: %w", id, err)
	}
	return nil
}
