// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ovanesb/drupal-devops-copilot/services/server/datatypes"
	"github.com/ovanesb/drupal-devops-copilot/services/server/execute"
	"github.com/ovanesb/drupal-devops-copilot/services/server/observability"
)

// keepAliveInterval paces SSE comments between frames so idle-timeout
// middleboxes (nginx, ALB default 60s) keep the stream open.
const keepAliveInterval = 15 * time.Second

// HandleRun handles POST /api/run: starts a job worker for the submitted
// workflow snapshot and returns its id immediately. Execution is observed
// via the stream endpoint, never this response.
func HandleRun(manager *execute.Manager, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run request"})
			return
		}

		// The worker outlives this request: detach from the request's
		// cancellation but keep its values for tracing.
		jobID := manager.Start(context.WithoutCancel(c.Request.Context()), req.Workflow, req.DryRun)
		metrics.JobSubmitted(req.DryRun)
		slog.Info("run submitted", "job_id", jobID, "dry_run", req.DryRun, "nodes", len(req.Workflow.Nodes))
		c.JSON(http.StatusOK, datatypes.RunResponse{JobID: jobID})
	}
}

// HandleStream handles GET /api/stream/:jobId: drains the job's frame
// queue into an SSE response until the worker closes it or the client
// disconnects.
func HandleStream(manager *execute.Manager, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")
		frames, ok := manager.Subscribe(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		metrics.StreamOpened()
		defer metrics.StreamClosed()

		// If the client goes away before the worker finishes, run the
		// queue to completion so the job's relay goroutine can exit.
		defer func() {
			go func() {
				for range frames {
				}
			}()
		}()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case frame, open := <-frames:
				if !open {
					return
				}
				if err := writer.WriteFrame(frame.Event, frame.Data); err != nil {
					slog.Warn("stream write failed, client gone", "job_id", jobID, "error", err)
					return
				}
				metrics.FrameWritten(frame.Event)
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					return
				}
			case <-c.Request.Context().Done():
				// Client disconnect stops observation only; the worker
				// keeps running to completion.
				slog.Info("stream client disconnected", "job_id", jobID)
				return
			}
		}
	}
}
