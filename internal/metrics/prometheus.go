// Package metrics exposes Prometheus collectors for the analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for AnalysesTotal.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecast_analyses_total",
		Help: "Total number of analysis requests, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framecast_stage_duration_seconds",
		Help:    "Duration of each analysis pipeline stage",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecast_frames_extracted_total",
		Help: "Total number of frames extracted across all analyses",
	})

	InflightAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecast_inflight_analyses",
		Help: "Number of analyses currently running",
	})

	CleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecast_cleanup_failures_total",
		Help: "Total number of scopes whose cleanup reported an error",
	})
)
