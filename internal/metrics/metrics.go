// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus instruments for verification runs.
// A nil *Recorder is valid and records nothing, so components can be built
// without metrics in tests and one-shot CLI runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "verity"

// Run outcomes used as the "outcome" label of runs_total.
const (
	OutcomeVerified = "verified"
	OutcomeCached   = "cached"
	OutcomeInvalid  = "invalid"
	OutcomeTimeout  = "timeout"
	OutcomeFailed   = "failed"
)

// Recorder holds the instruments for one registry.
type Recorder struct {
	// RunsTotal counts finished runs by outcome.
	RunsTotal *prometheus.CounterVec

	// CacheLookups counts cache lookups by result (hit, miss, error).
	CacheLookups *prometheus.CounterVec

	// StageDuration observes stage latency by stage and status.
	StageDuration *prometheus.HistogramVec

	// QueryFailures counts search queries that failed after all attempts.
	QueryFailures prometheus.Counter

	// Verdicts counts produced verdicts by label.
	Verdicts *prometheus.CounterVec

	// HTTPRequests counts API requests by route and status code.
	HTTPRequests *prometheus.CounterVec
}

// NewRecorder creates the instruments and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Verification runs by outcome.",
		}, []string{"outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency in seconds.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage", "status"}),
		QueryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "query_failures_total",
			Help:      "Search queries that failed after all attempts.",
		}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Produced verdicts by label.",
		}, []string{"label"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// Run records a finished run.
func (r *Recorder) Run(outcome string) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(outcome).Inc()
}

// CacheLookup records a lookup result. err takes precedence over hit.
func (r *Recorder) CacheLookup(hit bool, err error) {
	if r == nil {
		return
	}
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

// Stage records one stage attempt.
func (r *Recorder) Stage(stage string, d time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.StageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// QueriesFailed adds n failed queries.
func (r *Recorder) QueriesFailed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.QueryFailures.Add(float64(n))
}

// Verdict records a produced verdict label.
func (r *Recorder) Verdict(label string) {
	if r == nil {
		return
	}
	r.Verdicts.WithLabelValues(label).Inc()
}

// Request records an API request.
func (r *Recorder) Request(route string, code int) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
