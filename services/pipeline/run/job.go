// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package run submits a validated workflow for execution and reconstructs
// job progress from the server's event stream.
//
// # Description
//
// A Job is one execution attempt of a linearized workflow snapshot. It is
// created fresh per Run action and mutated solely by stream events applied
// strictly in arrival order; the editor never touches it. Once a terminal
// event (`complete` or `error`) is observed the Job is immutable.
//
// The transcript is defined as the exact concatenation of `log` event
// payloads in arrival order; nothing is reordered, deduplicated or
// coalesced.
//
// # Thread Safety
//
// Job guards its state with a mutex: the stream goroutine applies events
// while the UI reads snapshots.
package run

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	// StatusIdle is the zero state before submission.
	StatusIdle Status = "idle"

	// StatusRunning is set at submission and held until a terminal event.
	StatusRunning Status = "running"

	// StatusSuccess is reached only by a `complete` event with no prior
	// failure.
	StatusSuccess Status = "success"

	// StatusError is terminal: an `error` event, a non-zero stage return
	// code, stream corruption, or a dropped connection.
	StatusError Status = "error"
)

// Event kinds, in the vocabulary the server emits.
const (
	EventStep     = "step"
	EventLog      = "log"
	EventDone     = "done"
	EventError    = "error"
	EventComplete = "complete"
)

// Event is one decoded stream event.
type Event struct {
	Kind  string
	Label string
	Cmd   string
	Line  string
	Msg   string
	RC    int
	JobID string
}

// Step is one stage of the job as observed on the stream.
type Step struct {
	Label    string
	Cmd      string
	RC       int
	Finished bool
}

// ErrJobFinished reports an event arriving after a terminal event was
// already observed. The protocol doesn't specify this; it is treated as
// stream corruption rather than silently accepted.
var ErrJobFinished = errors.New("job already reached a terminal state")

// mrURLPattern finds GitLab merge request URLs in stage output.
var mrURLPattern = regexp.MustCompile(`https?://[^ \n\r\t>]+/-/merge_requests/\d+`)

// failureMarkers are log fragments that indicate stage failure when no
// structured return code was observed (heuristic fallback only).
var failureMarkers = []string{
	"Traceback (most recent call last)",
	"failed (rc=",
}

// Job is one execution attempt of a workflow snapshot.
type Job struct {
	mu sync.Mutex

	id         string
	status     Status
	steps      []Step
	lines      []string
	errMsg     string
	mrURL      string
	markerSeen bool
}

// NewJob creates a Job in the running state for the given server job id.
func NewJob(id string) *Job {
	return &Job{id: id, status: StatusRunning}
}

// Apply folds one stream event into the job state.
//
// # Description
//
// Events must be applied in exactly the order they arrived. Terminal
// handling is strict: any event after `complete`/`error`, and a
// `complete` arriving while a stage is still open (no `done` yet), are
// treated as corruption and fail the job instead of being accepted.
//
// # Outputs
//
//   - error: ErrJobFinished for events after a terminal state, nil
//     otherwise. A nil error does not imply the job is still running.
func (j *Job) Apply(ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusSuccess || j.status == StatusError {
		return fmt.Errorf("apply %s event: %w", ev.Kind, ErrJobFinished)
	}

	switch ev.Kind {
	case EventStep:
		j.steps = append(j.steps, Step{Label: ev.Label, Cmd: ev.Cmd})

	case EventLog:
		j.lines = append(j.lines, ev.Line)
		for _, marker := range failureMarkers {
			if strings.Contains(ev.Line, marker) {
				j.markerSeen = true
				break
			}
		}
		if j.mrURL == "" {
			if url := mrURLPattern.FindString(ev.Line); url != "" {
				j.mrURL = url
			}
		}

	case EventDone:
		step := j.openStep(ev.Label)
		if step != nil {
			step.RC = ev.RC
			step.Finished = true
		}
		if ev.RC != 0 {
			j.fail(fmt.Sprintf("stage %q failed (rc=%d)", ev.Label, ev.RC))
		}

	case EventError:
		msg := ev.Msg
		if msg == "" {
			msg = "job failed"
		}
		j.fail(msg)

	case EventComplete:
		if open := j.firstOpen(); open != nil {
			j.fail(fmt.Sprintf("complete arrived while stage %q was still open", open.Label))
			return nil
		}
		if len(j.steps) == 0 && j.markerSeen {
			// No structured status at all; fall back to log heuristics.
			j.fail("failure markers present in output")
			return nil
		}
		j.status = StatusSuccess

	default:
		j.fail(fmt.Sprintf("unknown event kind %q", ev.Kind))
	}

	return nil
}

// Fail moves the job to the error state for a transport-level failure
// (malformed payload, dropped connection). No-op after a terminal state.
func (j *Job) Fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusSuccess || j.status == StatusError {
		return
	}
	j.fail(msg)
}

// fail sets the terminal error state. Caller holds the mutex.
func (j *Job) fail(msg string) {
	j.status = StatusError
	if j.errMsg == "" {
		j.errMsg = msg
	}
}

// openStep returns the most recent unfinished step matching label, or the
// most recent unfinished step when none matches. The server brackets every
// stage with step/done; matching by label tolerates interleaving.
func (j *Job) openStep(label string) *Step {
	for i := len(j.steps) - 1; i >= 0; i-- {
		if !j.steps[i].Finished && j.steps[i].Label == label {
			return &j.steps[i]
		}
	}
	for i := len(j.steps) - 1; i >= 0; i-- {
		if !j.steps[i].Finished {
			return &j.steps[i]
		}
	}
	return nil
}

// firstOpen returns the earliest unfinished step, nil when all finished.
func (j *Job) firstOpen() *Step {
	for i := range j.steps {
		if !j.steps[i].Finished {
			return &j.steps[i]
		}
	}
	return nil
}

// View is a read-only snapshot of a Job.
type View struct {
	ID         string
	Status     Status
	Steps      []Step
	Transcript string
	Err        string
	MRURL      string
}

// Snapshot returns a copy of the job state safe to use from any goroutine.
func (j *Job) Snapshot() View {
	j.mu.Lock()
	defer j.mu.Unlock()
	return View{
		ID:         j.id,
		Status:     j.status,
		Steps:      append([]Step(nil), j.steps...),
		Transcript: strings.Join(j.lines, "\n"),
		Err:        j.errMsg,
		MRURL:      j.mrURL,
	}
}

// CurrentStatus returns the job's current status.
func (j *Job) CurrentStatus() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}
