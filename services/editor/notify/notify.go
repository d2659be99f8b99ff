// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package notify is the editor's fire-and-forget notification queue.
//
// Instead of blocking modal alerts, components push results here and the
// UI drains the queue on its next paint. Tests assert on drained content
// rather than on dialogs.
package notify

import (
	"fmt"
	"time"
)

// Level classifies a notification for rendering.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// String returns the level's display name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is one dismissable user-visible message.
type Notification struct {
	Level   Level
	Message string
	Time    time.Time
}

// Queue collects notifications in arrival order until the UI drains them.
//
// Not safe for concurrent use; it lives on the editor event loop like the
// graph store.
type Queue struct {
	items []Notification
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a notification.
func (q *Queue) Push(level Level, msg string) {
	q.items = append(q.items, Notification{Level: level, Message: msg, Time: time.Now()})
}

// Pushf appends a formatted notification.
func (q *Queue) Pushf(level Level, format string, args ...any) {
	q.Push(level, fmt.Sprintf(format, args...))
}

// Drain returns all pending notifications in arrival order and empties the
// queue.
func (q *Queue) Drain() []Notification {
	out := q.items
	q.items = nil
	return out
}

// Len reports the number of pending notifications.
func (q *Queue) Len() int {
	return len(q.items)
}
