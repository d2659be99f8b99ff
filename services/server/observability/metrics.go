// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and tracing for the copilot
// server.
//
// # Description
//
// Prometheus metrics cover the execution surface: submitted jobs, active
// SSE streams, and frames written per event kind. Metrics are exposed on
// /metrics for Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "copilot"
const serverSubsystem = "server"

// Metrics holds the Prometheus metrics of the execution surface.
//
// A nil *Metrics is valid and records nothing; handler tests run without a
// registry.
type Metrics struct {
	// JobsTotal counts submitted jobs. Labels: mode (run, dry_run).
	JobsTotal *prometheus.CounterVec

	// ActiveStreams gauges currently connected SSE consumers.
	ActiveStreams prometheus.Gauge

	// FramesTotal counts SSE frames written. Labels: event.
	FramesTotal *prometheus.CounterVec
}

// NewMetrics registers the server metrics with reg. Use
// prometheus.DefaultRegisterer in main; tests pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: serverSubsystem,
			Name:      "jobs_total",
			Help:      "Submitted pipeline jobs by mode.",
		}, []string{"mode"}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: serverSubsystem,
			Name:      "active_streams",
			Help:      "Currently connected SSE stream consumers.",
		}),
		FramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: serverSubsystem,
			Name:      "frames_total",
			Help:      "SSE frames written by event kind.",
		}, []string{"event"}),
	}
}

// JobSubmitted records one submitted job.
func (m *Metrics) JobSubmitted(dryRun bool) {
	if m == nil {
		return
	}
	mode := "run"
	if dryRun {
		mode = "dry_run"
	}
	m.JobsTotal.WithLabelValues(mode).Inc()
}

// StreamOpened records a newly connected stream consumer.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamClosed records a disconnected stream consumer.
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}

// FrameWritten records one SSE frame of the given event kind.
func (m *Metrics) FrameWritten(event string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(event).Inc()
}
