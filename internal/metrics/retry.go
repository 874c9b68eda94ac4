// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playman_load_attempts_total",
		Help: "Total load attempts by outcome (success, failure)",
	}, []string{"outcome"})

	loadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playman_load_failures_total",
		Help: "Total classified load failures",
	}, []string{"class"})

	retriesScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playman_retry_scheduled_total",
		Help: "Total retries scheduled by error class",
	}, []string{"class"})

	fallbackAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playman_fallback_attempts_total",
		Help: "Total whole-file fallback attempts by outcome (success, failure)",
	}, []string{"outcome"})

	permanentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playman_permanent_failures_total",
		Help: "Total items marked permanently failed by error class",
	}, []string{"class"})
)

// RecordLoadAttempt counts a completed load attempt outcome.
func RecordLoadAttempt(outcome string) {
	loadAttempts.WithLabelValues(outcome).Inc()
}

// RecordLoadFailure counts a classified load failure.
func RecordLoadFailure(class string) {
	loadFailures.WithLabelValues(class).Inc()
}

// RecordRetryScheduled counts a scheduled backoff retry.
func RecordRetryScheduled(class string) {
	retriesScheduled.WithLabelValues(class).Inc()
}

// RecordFallbackAttempt counts a whole-file fallback attempt outcome.
func RecordFallbackAttempt(outcome string) {
	fallbackAttempts.WithLabelValues(outcome).Inc()
}

// RecordPermanentFailure counts a transition to the terminal failure state.
func RecordPermanentFailure(class string) {
	permanentFailures.WithLabelValues(class).Inc()
}
