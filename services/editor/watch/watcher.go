// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package watch reloads file-backed workflow documents on change.
//
// # Description
//
// The editor can be pointed at a workflow JSON file; this watcher observes
// the file's directory (editors typically replace files via rename, which
// drops a watch placed on the file itself) and invokes the reload handler
// after a debounce window, so a burst of writes triggers one reload.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
package watch

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler is called once per debounced change burst.
type Handler func()

// Options configures the Watcher.
type Options struct {
	// Debounce is how long to wait for more changes before triggering.
	// Default: 200ms.
	Debounce time.Duration

	// BufferSize is the size of the internal change channel.
	// Default: 64.
	BufferSize int
}

// DefaultOptions returns the defaults used when opts is nil.
func DefaultOptions() Options {
	return Options{
		Debounce:   200 * time.Millisecond,
		BufferSize: 64,
	}
}

// Watcher watches one workflow file for changes with debouncing.
type Watcher struct {
	path     string
	dir      string
	base     string
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration

	changes  chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// New creates a watcher for the given file. Call Start to begin watching
// and Stop to release the inotify handle.
func New(path string, handler Handler, opts *Options) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("handler must not be nil")
	}
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     abs,
		dir:      filepath.Dir(abs),
		base:     filepath.Base(abs),
		watcher:  fsw,
		handler:  handler,
		debounce: opts.Debounce,
		changes:  make(chan struct{}, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Safe to call once; subsequent calls are no-ops.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.processEvents()
	go w.debounceLoop()
	return nil
}

// Stop stops the watcher and releases the underlying handle.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// processEvents filters directory events down to the watched file.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.changes <- struct{}{}:
			default:
				// Buffer full; a reload is already pending.
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// debounceLoop collapses change bursts into single handler calls.
func (w *Watcher) debounceLoop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.changes:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			w.handler()
		}
	}
}
