// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ovanesb/drupal-devops-copilot/pkg/logging"
	"github.com/ovanesb/drupal-devops-copilot/services/server/execute"
	"github.com/ovanesb/drupal-devops-copilot/services/server/observability"
	"github.com/ovanesb/drupal-devops-copilot/services/server/routes"
	"github.com/ovanesb/drupal-devops-copilot/services/server/storage"
)

const serviceName = "copilot-server"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	port := envOr("COPILOT_SERVER_PORT", "8055")

	logs := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("COPILOT_LOG_DIR"),
		Service: "server",
		JSON:    true,
	})
	defer logs.Close()
	logger := logs.Slog()
	slog.SetDefault(logger)

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint != "" {
		cleanup, err := observability.InitTracer(otelEndpoint, serviceName)
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	} else {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
	}

	dbPath := os.Getenv("COPILOT_DB_PATH")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("cannot resolve home directory for database path: %v", err)
		}
		dbPath = filepath.Join(home, ".copilot", "db")
	}

	cfg := storage.DefaultConfig()
	cfg.Path = dbPath
	cfg.Logger = logger
	db, err := storage.OpenDB(cfg)
	if err != nil {
		log.Fatalf("failed to open database at %s: %v", dbPath, err)
	}
	defer db.Close()

	store, err := storage.NewStore(db)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	defer store.Close()

	manager := execute.NewManager(execute.ExecRunner{}, logger)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	routes.SetupRoutes(router, store, manager, metrics)

	slog.Info("starting copilot server", "port", port, "db_path", dbPath)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
