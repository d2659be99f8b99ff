// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

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

// profileQueryID reads the ?id= query parameter shared by PUT and DELETE.
func profileQueryID(c *gin.Context) (int, bool) {
	raw := c.Query("id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id query parameter"})
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile id must be an integer"})
		return 0, false
	}
	return id, true
}

// ListProfiles handles GET /api/profiles.
func ListProfiles(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		profiles, err := store.ListProfiles(c.Request.Context())
		if err != nil {
			slog.Error("failed to list profiles", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list profiles"})
			return
		}
		c.JSON(http.StatusOK, profiles)
	}
}

// CreateProfile handles POST /api/profiles.
func CreateProfile(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var doc datatypes.ProfileDoc
		if err := c.ShouldBindJSON(&doc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile document"})
			return
		}
		p, err := store.CreateProfile(c.Request.Context(), doc)
		if err != nil {
			slog.Error("failed to create profile", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create profile"})
			return
		}
		slog.Info("profile created", "id", p.ID, "kind", p.Kind)
		c.JSON(http.StatusOK, p)
	}
}

// UpdateProfile handles PUT /api/profiles?id=N.
func UpdateProfile(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := profileQueryID(c)
		if !ok {
			return
		}
		var doc datatypes.ProfileDoc
		if err := c.ShouldBindJSON(&doc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile document"})
			return
		}
		p, err := store.UpdateProfile(c.Request.Context(), id, doc)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
			return
		}
		if err != nil {
			slog.Error("failed to update profile", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// DeleteProfile handles DELETE /api/profiles?id=N. Nodes referencing the
// profile keep their reference; resolution failure surfaces at execution
// time.
func DeleteProfile(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := profileQueryID(c)
		if !ok {
			return
		}
		err := store.DeleteProfile(c.Request.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
			return
		}
		if err != nil {
			slog.Error("failed to delete profile", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete profile"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
