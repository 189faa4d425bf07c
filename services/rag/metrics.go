// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rag

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Answer Engine
// =============================================================================

var (
	// queriesTotal counts answered queries by termination reason.
	// Labels: termination (natural, max_rounds_reached, tool_failure,
	// provider_fault)
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courselens",
		Subsystem: "engine",
		Name:      "queries_total",
		Help:      "Total answered queries by termination reason",
	}, []string{"termination"})

	// toolRoundsPerQuery observes how many tool rounds each query used.
	toolRoundsPerQuery = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "courselens",
		Subsystem: "engine",
		Name:      "tool_rounds_per_query",
		Help:      "Tool-requesting rounds consumed per query",
		Buckets:   []float64{0, 1, 2, 3, 4},
	})

	// queryDuration measures end-to-end query handling latency.
	// Labels: status (success, error)
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "courselens",
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "End-to-end query handling latency in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"status"})
)

// observeQuery records engine-level metrics for one completed query.
func observeQuery(termination string, rounds int) {
	queriesTotal.WithLabelValues(termination).Inc()
	toolRoundsPerQuery.Observe(float64(rounds))
}

// observeQueryDuration records façade-level latency for one query.
func observeQueryDuration(start time.Time, status string) {
	queryDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}
