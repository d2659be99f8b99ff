// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package execute runs submitted workflows as jobs.
//
// # Description
//
// A job is one worker goroutine driving the copilot stage commands for a
// linearized workflow snapshot: copilot-workflow resolves the JIRA issue
// into a branch and MR, copilot-ai-review-merge reviews (and optionally
// merges/deploys), copilot-qa-ec2 runs the QA stage. The worker writes SSE
// frames through an unbounded per-job relay; the stream handler is the
// single consumer. Closing the client connection stops observation only:
// the worker keeps running, the protocol has no server-side cancel, and a
// slow or absent consumer never backpressures the running stage command.
package execute

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/graph"
	"github.com/ovanesb/drupal-devops-copilot/services/pipeline/schema"
	"github.com/ovanesb/drupal-devops-copilot/services/server/datatypes"
)

// Frame is one queued SSE frame: `event: {Event}\ndata: {json(Data)}\n\n`.
type Frame struct {
	Event string
	Data  any
}

// frameBuffer sizes the channels on either side of the relay. It is a
// latency buffer only; when it fills, the relay spills into its in-memory
// queue rather than blocking the worker.
const frameBuffer = 64

// Manager owns the running jobs and their frame queues.
//
// # Thread Safety
//
// Safe for concurrent use. Each job's channel has exactly one producer (the
// worker) and at most one consumer (the stream handler).
type Manager struct {
	mu     sync.Mutex
	jobs   map[string]chan Frame
	runner CommandRunner
	logger *slog.Logger
}

// NewManager creates a Manager executing stages through runner.
func NewManager(runner CommandRunner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		jobs:   make(map[string]chan Frame),
		runner: runner,
		logger: logger,
	}
}

// Start launches a worker for the workflow and returns the new job id.
// ctx bounds the worker's lifetime (the server's base context, not the
// submitting request, which returns immediately).
func (m *Manager) Start(ctx context.Context, wf graph.Workflow, dryRun bool) string {
	jobID := uuid.New().String()
	in := make(chan Frame, frameBuffer)
	out := make(chan Frame, frameBuffer)

	m.mu.Lock()
	m.jobs[jobID] = out
	m.mu.Unlock()

	go relayFrames(in, out)
	go m.work(ctx, jobID, in, wf, dryRun)
	return jobID
}

// relayFrames moves frames from the worker to the consumer through an
// unbounded in-memory queue. The worker side is always drained promptly,
// so a stage command's output never stalls behind a slow or absent stream
// consumer; frames for a job nobody ever subscribes to sit in the queue
// until the server exits, matching the submit-and-forget protocol.
func relayFrames(in <-chan Frame, out chan<- Frame) {
	defer close(out)
	var queue []Frame
	for {
		if len(queue) == 0 {
			frame, ok := <-in
			if !ok {
				return
			}
			queue = append(queue, frame)
			continue
		}
		select {
		case frame, ok := <-in:
			if !ok {
				for _, f := range queue {
					out <- f
				}
				return
			}
			queue = append(queue, frame)
		case out <- queue[0]:
			queue = queue[1:]
		}
	}
}

// Subscribe claims the frame channel for a job. Each job can be subscribed
// once; a second subscribe or an unknown id reports false, which the
// handler maps to 404.
func (m *Manager) Subscribe(jobID string) (<-chan Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	frames, ok := m.jobs[jobID]
	if !ok {
		return nil, false
	}
	delete(m.jobs, jobID)
	return frames, true
}

func (m *Manager) work(ctx context.Context, jobID string, frames chan Frame, wf graph.Workflow, dryRun bool) {
	defer close(frames)

	emit := func(event string, data any) bool {
		select {
		case frames <- Frame{Event: event, Data: data}:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(msg string) {
		emit("error", datatypes.ErrorPayload{Msg: msg})
		m.logger.Warn("job failed", "job_id", jobID, "msg", msg)
	}

	jiraKey, ok := PickJiraKey(wf)
	if !ok {
		fail("No JIRA key found in workflow (set JiraTrigger title to e.g. CCS-123)")
		return
	}

	rc, err := m.runStage(ctx, emit, "workflow", []string{"copilot-workflow", jiraKey})
	if err != nil {
		fail("workflow stage failed to run")
		return
	}
	if rc != 0 {
		fail(fmt.Sprintf("copilot-workflow failed (%d)", rc))
		return
	}

	// The workflow stage prints the created MR URL, but the stream consumer
	// owns transcript parsing; the review stage runs in auto mode keyed by
	// the issue.
	mrURL := "auto://" + jiraKey

	reviewArgv := []string{"copilot-ai-review-merge", mrURL}
	if hasNodeOfType(wf, schema.TypeDeploy) && !dryRun {
		reviewArgv = append(reviewArgv, "--deploy")
	}
	rc, err = m.runStage(ctx, emit, "review", reviewArgv)
	if err != nil {
		fail("review stage failed to run")
		return
	}
	if rc != 0 {
		fail(fmt.Sprintf("ai-review-merge failed (%d)", rc))
		return
	}

	if hasNodeOfType(wf, schema.TypeQA) && !dryRun {
		rc, err = m.runStage(ctx, emit, "qa", []string{"copilot-qa-ec2", jiraKey})
		if err != nil {
			fail("qa stage failed to run")
			return
		}
		if rc != 0 {
			fail(fmt.Sprintf("qa-ec2 failed (%d)", rc))
			return
		}
	}

	emit("complete", datatypes.CompletePayload{JobID: jobID})
	m.logger.Info("job complete", "job_id", jobID, "dry_run", dryRun)
}

// runStage brackets one command in step/done frames, streaming its merged
// output as log frames in between.
func (m *Manager) runStage(ctx context.Context, emit func(string, any) bool, label string, argv []string) (int, error) {
	emit("step", datatypes.StepPayload{Label: label, Cmd: strings.Join(argv, " ")})

	rc, err := m.runner.Run(ctx, argv, func(line string) {
		emit("log", datatypes.LogPayload{Label: label, Line: line})
	})
	if err != nil {
		m.logger.Error("stage execution error", "label", label, "error", err)
		return -1, err
	}

	emit("done", datatypes.DonePayload{Label: label, RC: rc})
	return rc, nil
}

// PickJiraKey resolves the JIRA issue key a run operates on: the
// JiraTrigger node's label (or projectKey) when it carries a concrete key,
// else the first node label that looks like one.
func PickJiraKey(wf graph.Workflow) (string, bool) {
	for _, n := range wf.Nodes {
		t, ok := schema.Normalize(n.Type)
		if !ok || t != schema.TypeJiraTrigger {
			continue
		}
		key := n.Label()
		if key == "" {
			if pk, ok := n.Data["projectKey"].(string); ok {
				key = pk
			}
		}
		if strings.Contains(key, "-") {
			return key, true
		}
	}
	for _, n := range wf.Nodes {
		if lbl := n.Label(); strings.Contains(lbl, "-") {
			return lbl, true
		}
	}
	return "", false
}

func hasNodeOfType(wf graph.Workflow, want schema.Type) bool {
	for _, n := range wf.Nodes {
		if t, ok := schema.Normalize(n.Type); ok && t == want {
			return true
		}
	}
	return false
}
