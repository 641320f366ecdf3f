package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCreated    = "created"
	outcomeBackfilled = "backfilled"
	outcomeConflict   = "conflict"
)

var (
	ordersReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "order_service",
		Subsystem: "reconciler",
		Name:      "orders_total",
		Help:      "Reconciliation outcomes by kind.",
	}, []string{"outcome"})

	sideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "order_service",
		Subsystem: "reconciler",
		Name:      "side_effect_failures_total",
		Help:      "Side effects that failed after order creation.",
	}, []string{"effect"})
)
