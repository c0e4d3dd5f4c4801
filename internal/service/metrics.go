package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// callbackOutcomes counts processed gateway callbacks by terminal outcome.
	callbackOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_outcomes_total",
			Help: "Total number of payment gateway callbacks by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// paymentsInitiated counts initiation handoffs to a gateway.
	paymentsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Total number of payments handed off to a gateway",
		},
		[]string{"provider"},
	)

	// inventoryAvailable tracks available stock per product as last observed.
	inventoryAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventory_available_items",
			Help: "Available inventory items per product as of the last count",
		},
		[]string{"product_id"},
	)

	// staleAdmissions tracks in-flight idempotency records older than the
	// reaper grace period.
	staleAdmissions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "idempotency_stale_in_progress_records",
			Help: "Idempotency records stuck in_progress beyond the grace period",
		},
	)
)
