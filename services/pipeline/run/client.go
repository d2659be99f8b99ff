// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package run

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
)

// ErrJobNotFound reports a stream request for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// Client submits workflows to the execution surface and consumes the
// per-job event stream.
//
// # Description
//
// Submit is a single request/response exchange returning a job id; Stream
// then opens one long-lived connection for that job and applies events to
// a Job in strict arrival order. Closing the stream (context cancellation)
// stops local observation only; the protocol offers no server-side cancel,
// a gap accepted as scope.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Client for the given server base URL,
// e.g. "http://localhost:8055".
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No overall timeout: the stream connection is long-lived. A stalled
		// stream shows no further progress rather than being cut off.
		http:   &http.Client{},
		logger: logger,
	}
}

// submitRequest is the body of POST /api/run.
type submitRequest struct {
	Workflow graph.Workflow `json:"workflow"`
	DryRun   bool           `json:"dry_run"`
}

// submitResponse is the reply of POST /api/run.
type submitResponse struct {
	JobID string `json:"job_id"`
}

// Submit posts a workflow for execution and returns the server's job id.
//
// The caller is expected to have gated the workflow through plan.Validate
// and plan.Linearize already; Submit does not re-validate.
func (c *Client) Submit(ctx context.Context, wf graph.Workflow, dryRun bool) (string, error) {
	body, err := json.Marshal(submitRequest{Workflow: wf, DryRun: dryRun})
	if err != nil {
		return "", fmt.Errorf("submit workflow: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/run", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("submit workflow: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit workflow: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("submit workflow: server returned %s", resp.Status)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("submit workflow: decode response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("submit workflow: server returned no job id")
	}

	c.logger.Info("workflow submitted", "job_id", out.JobID, "dry_run", dryRun)
	return out.JobID, nil
}

// Stream consumes the event stream for a job, applying every event to job
// in arrival order.
//
// # Description
//
// Blocks until a terminal event is observed, the stream drops, or ctx is
// cancelled. A malformed frame or a dropped connection before a terminal
// event fails the job; the editor stays usable and a new run may be
// started. onEvent, when non-nil, is invoked after each applied event
// (the TUI uses it to repaint).
//
// # Outputs
//
//   - error: Non-nil for transport failures and stream corruption. A nil
//     return means a terminal event was observed; inspect the job for the
//     outcome.
func (c *Client) Stream(ctx context.Context, jobID string, job *Job, onEvent func(Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream/"+jobID, nil)
	if err != nil {
		return fmt.Errorf("stream job %s: %w", jobID, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		job.Fail("stream connection failed")
		return fmt.Errorf("stream job %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		job.Fail("job not found")
		return fmt.Errorf("stream job %s: %w", jobID, ErrJobNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		job.Fail("stream rejected: " + resp.Status)
		return fmt.Errorf("stream job %s: server returned %s", jobID, resp.Status)
	}

	if err := c.consume(resp.Body, job, onEvent); err != nil {
		return fmt.Errorf("stream job %s: %w", jobID, err)
	}
	return nil
}

// consume reads SSE frames and applies them until a terminal event or the
// stream ends.
func (c *Client) consume(body io.Reader, job *Job, onEvent func(Event)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data []string

	dispatch := func() error {
		if eventName == "" && len(data) == 0 {
			return nil
		}
		ev, err := decodeEvent(eventName, strings.Join(data, "\n"))
		eventName = ""
		data = nil
		if err != nil {
			job.Fail("malformed stream payload")
			return err
		}
		if err := job.Apply(ev); err != nil {
			return err
		}
		if onEvent != nil {
			onEvent(ev)
		}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
			if s := job.CurrentStatus(); s == StatusSuccess || s == StatusError {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// Keepalive comment; ignored.
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil {
		job.Fail("stream read failed")
		return err
	}

	// EOF without a terminal event: the connection dropped mid-job.
	if err := dispatch(); err != nil {
		return err
	}
	if s := job.CurrentStatus(); s != StatusSuccess && s != StatusError {
		job.Fail("stream ended before a terminal event")
		return errors.New("stream ended before a terminal event")
	}
	return nil
}

// decodeEvent parses one SSE frame into an Event.
func decodeEvent(name, payload string) (Event, error) {
	var fields struct {
		Label string `json:"label"`
		Cmd   string `json:"cmd"`
		Line  string `json:"line"`
		Msg   string `json:"msg"`
		RC    *int   `json:"rc"`
		JobID string `json:"job_id"`
	}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &fields); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", name, err)
		}
	}

	ev := Event{
		Kind:  name,
		Label: fields.Label,
		Cmd:   fields.Cmd,
		Line:  fields.Line,
		Msg:   fields.Msg,
		JobID: fields.JobID,
	}
	if fields.RC != nil {
		ev.RC = *fields.RC
	} else if name == EventDone {
		return Event{}, fmt.Errorf("done event without rc")
	}
	return ev, nil
}

// Run is the whole submit-and-follow flow: submit the workflow, create the
// Job, and stream it to completion.
//
// Convenience for CLI callers; the TUI drives Submit and Stream itself so
// it can repaint between events.
func (c *Client) Run(ctx context.Context, wf graph.Workflow, dryRun bool, onEvent func(Event)) (*Job, error) {
	jobID, err := c.Submit(ctx, wf, dryRun)
	if err != nil {
		return nil, err
	}
	job := NewJob(jobID)

	start := time.Now()
	err = c.Stream(ctx, jobID, job, onEvent)
	c.logger.Info("stream closed",
		"job_id", jobID,
		"status", string(job.CurrentStatus()),
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	return job, err
}
