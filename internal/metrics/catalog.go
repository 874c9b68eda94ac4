// SPDX-License-Identifier: MIT

// Package metrics exposes prometheus collectors for the playback manager.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playman_catalog_items",
		Help: "Number of admitted catalog items by list",
	}, []string{"list"})

	catalogAdmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playman_catalog_admissions_total",
		Help: "Total admission attempts by outcome (admitted, duplicate, vetoed)",
	}, []string{"outcome"})

	catalogRemovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playman_catalog_removals_total",
		Help: "Total catalog removals by reason (explicit, pressure)",
	}, []string{"reason"})
)

// SetCatalogSize records the current size of a catalog list.
func SetCatalogSize(list string, n int) {
	catalogItems.WithLabelValues(list).Set(float64(n))
}

// RecordAdmission counts an admission attempt outcome.
func RecordAdmission(outcome string) {
	catalogAdmissions.WithLabelValues(outcome).Inc()
}

// RecordRemoval counts a catalog removal.
func RecordRemoval(reason string) {
	catalogRemovals.WithLabelValues(reason).Inc()
}
