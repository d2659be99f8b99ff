// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// ProfileDoc is the client-supplied profile body for POST/PUT /api/profiles.
//
// Kind names the external system the profile points at; the server stores
// profiles as opaque identity aliases and never connects anywhere itself.
type ProfileDoc struct {
	Name     string `json:"name" binding:"required"`
	Kind     string `json:"kind" binding:"required,oneof=jira gitlab acquia generic"`
	BaseURL  string `json:"base_url,omitempty" binding:"omitempty,url"`
	Username string `json:"username,omitempty"`
}

// Profile is a persisted connection profile with server-assigned metadata.
// Secrets are never part of the document; profiles carry identity only.
type Profile struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	BaseURL   string     `json:"base_url,omitempty"`
	Username  string     `json:"username,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
