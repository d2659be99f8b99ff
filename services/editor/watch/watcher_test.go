// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, debounce time.Duration) (string, *Watcher, *atomic.Int64) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"wf"}`), 0o644))

	var fires atomic.Int64
	w, err := New(path, func() { fires.Add(1) }, &Options{
		Debounce:   debounce,
		BufferSize: 8,
	})
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	return path, w, &fires
}

func waitForFires(t *testing.T, fires *atomic.Int64, want int64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if fires.Load() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least %d handler calls, got %d", want, fires.Load())
}

func TestWatcher_FiresOnWrite(t *testing.T) {
	path, w, fires := newTestWatcher(t, 50*time.Millisecond)
	require.NoError(t, w.Start())
	assert.True(t, w.IsWatching())

	require.NoError(t, os.WriteFile(path, []byte(`{"name":"changed"}`), 0o644))
	waitForFires(t, fires, 1)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	path, w, fires := newTestWatcher(t, 150*time.Millisecond)
	require.NoError(t, w.Start())

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"name":"burst"}`), 0o644))
		time.Sleep(10 * time.Millisecond)
	}
	waitForFires(t, fires, 1)

	// The burst fell inside one debounce window.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(1), fires.Load())
}

func TestWatcher_FiresOnRenameReplace(t *testing.T) {
	path, w, fires := newTestWatcher(t, 50*time.Millisecond)
	require.NoError(t, w.Start())

	// Editors save via temp-file-then-rename.
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(`{"name":"replaced"}`), 0o644))
	require.NoError(t, os.Rename(tmp, path))
	waitForFires(t, fires, 1)
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	path, w, fires := newTestWatcher(t, 50*time.Millisecond)
	require.NoError(t, w.Start())

	other := filepath.Join(filepath.Dir(path), "other.json")
	require.NoError(t, os.WriteFile(other, []byte(`{}`), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(0), fires.Load())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	_, w, _ := newTestWatcher(t, 50*time.Millisecond)
	require.NoError(t, w.Start())

	w.Stop()
	w.Stop()
	assert.False(t, w.IsWatching())
}

func TestWatcher_RejectsNilHandler(t *testing.T) {
	_, err := New("whatever.json", nil, nil)
	assert.Error(t, err)
}
