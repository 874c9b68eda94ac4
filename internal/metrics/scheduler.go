// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	preloadRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playman_preload_requests_total",
		Help: "Total preload window computations",
	})

	preloadScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playman_preload_loads_scheduled_total",
		Help: "Total asynchronous load attempts fired by the preload scheduler",
	})
)

// RecordPreloadRequest counts a call into the preload scheduler.
func RecordPreloadRequest() {
	preloadRequests.Inc()
}

// RecordPreloadScheduled counts load attempts fired by the scheduler.
func RecordPreloadScheduled(n int) {
	preloadScheduled.Add(float64(n))
}
