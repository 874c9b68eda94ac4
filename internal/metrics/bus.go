// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var busDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "playman_bus_dropped_total",
	Help: "Total bus messages dropped by topic and reason",
}, []string{"topic", "reason"})

// IncBusDropReason counts a dropped bus publication.
func IncBusDropReason(topic, reason string) {
	busDropped.WithLabelValues(topic, reason).Inc()
}
