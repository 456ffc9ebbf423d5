package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_received_total",
		Help: "Total number of webhook deliveries received",
	}, []string{"event_type"})

	WebhooksRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_rejected_total",
		Help: "Total number of webhook deliveries rejected",
	}, []string{"reason"})

	EventsDeduplicatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_deduplicated_total",
		Help: "Total number of deliveries short-circuited by deduplication",
	}, []string{"kind"})

	OrdersUpsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_upserted_total",
		Help: "Total number of order snapshot writes applied",
	})

	OrdersStaleDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_stale_dropped_total",
		Help: "Total number of order updates dropped as stale",
	})

	OrderTransitionViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_transition_violations_total",
		Help: "Total number of updates whose status skips the platform's status graph",
	})

	ProcessingOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "processing_outcomes_total",
		Help: "Total number of processed order events by outcome",
	}, []string{"outcome"})

	ProcessingStepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "processing_step_latency_seconds",
		Help:    "Latency of individual processing steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	ProcessingStepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "processing_step_failures_total",
		Help: "Total number of failed processing steps",
	}, []string{"step", "target"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state per integration target (0=closed, 1=open, 2=half-open)",
	}, []string{"target"})

	CircuitBreakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_rejections_total",
		Help: "Total number of calls rejected by an open circuit",
	}, []string{"target"})

	ReconcileSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_sweeps_total",
		Help: "Total number of reconciliation sweeps executed",
	})

	ReconcileRetriedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_retried_total",
		Help: "Total number of stranded records retried by the sweep",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
