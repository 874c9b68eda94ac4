// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playman_pool_size",
		Help: "Number of live playback controllers in the pool",
	})

	poolEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playman_pool_evictions_total",
		Help: "Total controller evictions by reason (capacity, window)",
	}, []string{"reason"})
)

// SetPoolSize records the current pool occupancy.
func SetPoolSize(n int) {
	poolSize.Set(float64(n))
}

// RecordEviction counts a controller eviction.
func RecordEviction(reason string) {
	poolEvictions.WithLabelValues(reason).Inc()
}
