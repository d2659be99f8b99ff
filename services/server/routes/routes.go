// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovanesb/drupal-devops-copilot/services/server/execute"
	"github.com/ovanesb/drupal-devops-copilot/services/server/handlers"
	"github.com/ovanesb/drupal-devops-copilot/services/server/observability"
	"github.com/ovanesb/drupal-devops-copilot/services/server/storage"
)

// SetupRoutes registers the copilot API surface: persistence and execution
// under /api, liveness and metrics at the root.
func SetupRoutes(router *gin.Engine, store *storage.Store, manager *execute.Manager,
	metrics *observability.Metrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		workflows := api.Group("/workflows")
		{
			workflows.GET("/:id", handlers.GetWorkflow(store))
			workflows.POST("/:id", handlers.PostWorkflow(store))
			workflows.PUT("/:id", handlers.PutWorkflow(store))
		}
		profiles := api.Group("/profiles")
		{
			profiles.GET("", handlers.ListProfiles(store))
			profiles.POST("", handlers.CreateProfile(store))
			profiles.PUT("", handlers.UpdateProfile(store))
			profiles.DELETE("", handlers.DeleteProfile(store))
		}
		api.POST("/run", handlers.HandleRun(manager, metrics))
		api.GET("/stream/:jobId", handlers.HandleStream(manager, metrics))
	}
}
