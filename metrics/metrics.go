// Package metrics exposes prometheus instrumentation for the ingest paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MeasurementsTotal counts ultrasonic readings by category and outcome
	// status (ok, stale).
	MeasurementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binwatch_measurements_total",
		Help: "Ultrasonic measurement reports processed, by category and status.",
	}, []string{"category", "status"})

	// ClassificationsTotal counts classification events appended to the log.
	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binwatch_classifications_total",
		Help: "Classification events appended to the log, by category.",
	}, []string{"category"})

	// FillLevel tracks the last normalized fill percentage per category.
	FillLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "binwatch_fill_level_percent",
		Help: "Last normalized fill level per bin category.",
	}, []string{"category"})

	// ValidationFailures counts rejected inputs by operation.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binwatch_validation_failures_total",
		Help: "Inputs rejected before touching storage, by operation.",
	}, []string{"operation"})
)
