// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin handlers of the copilot API service.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ovanesb/drupal-devops-copilot/services/server/datatypes"
	"github.com/ovanesb/drupal-devops-copilot/services/server/storage"
)

func workflowID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workflow id must be an integer"})
		return 0, false
	}
	return id, true
}

// GetWorkflow handles GET /api/workflows/:id.
func GetWorkflow(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := workflowID(c)
		if !ok {
			return
		}
		wf, err := store.GetWorkflow(c.Request.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Workflow not found"})
			return
		}
		if err != nil {
			slog.Error("failed to load workflow", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load workflow"})
			return
		}
		c.JSON(http.StatusOK, wf)
	}
}

// PostWorkflow handles POST /api/workflows/:id with upsert semantics:
// create or replace the document at the same id.
func PostWorkflow(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := workflowID(c)
		if !ok {
			return
		}
		var doc datatypes.WorkflowDoc
		if err := c.ShouldBindJSON(&doc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow document"})
			return
		}
		wf, err := store.SaveWorkflow(c.Request.Context(), id, doc)
		if err != nil {
			slog.Error("failed to save workflow", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save workflow"})
			return
		}
		slog.Info("workflow saved", "id", id, "name", wf.Name, "nodes", len(wf.Nodes))
		c.JSON(http.StatusOK, wf)
	}
}

// PutWorkflow handles PUT /api/workflows/:id. Update-only: a missing id is
// 404, never an implicit create.
func PutWorkflow(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := workflowID(c)
		if !ok {
			return
		}
		var doc datatypes.WorkflowDoc
		if err := c.ShouldBindJSON(&doc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow document"})
			return
		}
		wf, err := store.UpdateWorkflow(c.Request.Context(), id, doc)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Workflow not found"})
			return
		}
		if err != nil {
			slog.Error("failed to update workflow", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update workflow"})
			return
		}
		c.JSON(http.StatusOK, wf)
	}
}
