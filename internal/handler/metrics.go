package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	eventProcessed = "processed"
	eventSkipped   = "skipped"
	eventRejected  = "rejected"
	eventFailed    = "failed"
)

var webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "order_service",
	Subsystem: "webhook",
	Name:      "events_total",
	Help:      "Webhook events by type and outcome.",
}, []string{"type", "outcome"})
