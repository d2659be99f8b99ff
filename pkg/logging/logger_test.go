// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestLevel_ToSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelDebug.toSlogLevel())
	assert.Equal(t, slog.LevelError, LevelError.toSlogLevel())
	assert.Equal(t, slog.LevelInfo, Level(42).toSlogLevel())
}

func TestNew_FileLoggingWritesJSON(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "editor",
		Quiet:   true,
	})
	logger.Info("workflow saved", "workflow_id", 7)
	require.NoError(t, logger.Close())

	name := "editor_" + time.Now().Format("2006-01-02") + ".log"
	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.SplitN(string(raw), "\n", 2)[0]), &entry))
	assert.Equal(t, "workflow saved", entry["msg"])
	assert.Equal(t, "editor", entry["service"])
	assert.Equal(t, float64(7), entry["workflow_id"])
}

func TestNew_LevelFiltersFileOutput(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "server",
		Quiet:   true,
	})
	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Close())

	name := "server_" + time.Now().Format("2006-01-02") + ".log"
	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dropped")
	assert.Contains(t, string(raw), "kept")
}

func TestLogger_WithCarriesAttributes(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{LogDir: dir, Service: "server", Quiet: true})
	child := logger.With("job_id", "abc123")
	child.Info("stream opened")

	// Child loggers don't own the file handle.
	require.NoError(t, child.Close())
	require.NoError(t, logger.Close())

	name := "server_" + time.Now().Format("2006-01-02") + ".log"
	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "abc123")
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Service: "cli", Quiet: true})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

func TestDefault_ReturnsUsableLogger(t *testing.T) {
	logger := Default()
	defer logger.Close()
	require.NotNil(t, logger.Slog())
	logger.Debug("below default level, discarded")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".copilot"), expandPath("~/.copilot"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}

func TestMultiHandler_FansOut(t *testing.T) {
	dir := t.TempDir()
	f1, err := os.Create(filepath.Join(dir, "a.log"))
	require.NoError(t, err)
	f2, err := os.Create(filepath.Join(dir, "b.log"))
	require.NoError(t, err)
	defer f1.Close()
	defer f2.Close()

	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(f1, nil),
		slog.NewJSONHandler(f2, nil),
	}}
	logger := slog.New(h)
	logger.Info("fan out")

	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	for _, path := range []string{f1.Name(), f2.Name()} {
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "fan out")
	}
}
