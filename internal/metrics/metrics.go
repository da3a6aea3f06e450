// Package metrics exposes Prometheus instrumentation for the storage
// service.  Counters track operation outcomes; gauges mirror the live
// custody totals so dashboards do not need to poll the summary endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations counts storage operations by kind and outcome.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_operations_total",
		Help: "Storage operations processed, labelled by operation and outcome.",
	}, []string{"operation", "outcome"})

	// StoredItems is the number of sample items currently assigned to a
	// storage location.
	StoredItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storage_stored_items",
		Help: "Sample items currently assigned to a storage location.",
	})

	// DisposedItems is the number of sample items that have been disposed.
	DisposedItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storage_disposed_items",
		Help: "Sample items that have been disposed.",
	})
)

// Success records a completed operation.
func Success(operation string) {
	Operations.WithLabelValues(operation, "success").Inc()
}

// Failure records a rejected or failed operation.
func Failure(operation string) {
	Operations.WithLabelValues(operation, "failure").Inc()
}
