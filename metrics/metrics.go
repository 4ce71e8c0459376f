package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aipm_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aipm_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"route"},
	)

	StageCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aipm_pipeline_stage_total",
			Help: "Pipeline stage executions by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aipm_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages (model calls included) in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"stage"},
	)

	ModelRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aipm_model_retries_total",
			Help: "Retries of upstream model calls by operation",
		},
		[]string{"operation"},
	)
)

// Stage outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeUpstream  = "upstream_failure"
	OutcomeMalformed = "malformed_response"
	OutcomeError     = "error"
)
