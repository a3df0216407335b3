package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for deliverycore.
type Metrics struct {
	// Order lifecycle
	OrdersCreatedTotal     prometheus.Counter
	OrderTransitionsTotal  *prometheus.CounterVec
	OrderTransitionRejects *prometheus.CounterVec
	ActiveOrders           prometheus.Gauge

	// Idempotency
	IdempotencyReplaysTotal   prometheus.Counter
	IdempotencyConflictsTotal prometheus.Counter

	// Dispatch
	DispatchFastTickDuration  prometheus.Histogram
	DispatchBatchTickDuration prometheus.Histogram
	DispatchEdgesConsidered   prometheus.Histogram
	DispatchOffersCreated     *prometheus.CounterVec
	DispatchMCFSolveDuration  prometheus.Histogram
	OffersExpiredTotal        prometheus.Counter
	OfferOutcomesTotal        *prometheus.CounterVec

	// Database
	DatabaseOperationDuration *prometheus.HistogramVec
	DatabaseErrors            *prometheus.CounterVec

	// Outbox publisher
	OutboxEventsPublished *prometheus.CounterVec
	OutboxEventsFailed    *prometheus.CounterVec

	// HTTP surface
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics with a custom registry (useful for testing).
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OrdersCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "deliverycore_orders_created_total",
				Help: "Total number of orders created",
			},
		),
		OrderTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverycore_order_transitions_total",
				Help: "Total number of accepted order state transitions",
			},
			[]string{"from", "to"},
		),
		OrderTransitionRejects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverycore_order_transition_rejects_total",
				Help: "Total number of rejected (invalid) order state transitions",
			},
			[]string{"from", "to"},
		),
		ActiveOrders: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "deliverycore_active_orders",
				Help: "Number of orders not yet in a terminal state",
			},
		),
		IdempotencyReplaysTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "deliverycore_idempotency_replays_total",
				Help: "Total number of idempotent requests served from a stored response",
			},
		),
		IdempotencyConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "deliverycore_idempotency_conflicts_total",
				Help: "Total number of idempotency key reuses with a mismatched request hash",
			},
		),
		DispatchFastTickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deliverycore_dispatch_fast_tick_duration_seconds",
				Help:    "Duration of a fast-tick dispatch cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		DispatchBatchTickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deliverycore_dispatch_batch_tick_duration_seconds",
				Help:    "Duration of a batch-tick dispatch cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		DispatchEdgesConsidered: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deliverycore_dispatch_edges_considered",
				Help:    "Number of driver-job matches a fast tick returns after MCF matching (candidate edges scored before matching are not counted)",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		DispatchOffersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverycore_dispatch_offers_created_total",
				Help: "Total number of offers created, by source",
			},
			[]string{"source"}, // fast, batch
		),
		DispatchMCFSolveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deliverycore_dispatch_mcf_solve_duration_seconds",
				Help:    "Duration of the min-cost-flow solve step",
				Buckets: prometheus.DefBuckets,
			},
		),
		OffersExpiredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "deliverycore_offer_expired_total",
				Help: "Total number of offers swept as expired",
			},
		),
		OfferOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverycore_offer_outcomes_total",
				Help: "Total number of offer outcomes recorded",
			},
			[]string{"outcome"}, // ACCEPTED, REJECTED, TIMEOUT, CANCELED
		),
		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deliverycore_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		DatabaseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverycore_database_errors_total",
				Help: "Total number of database errors",
			},
			[]string{"operation", "error_type"},
		),
		OutboxEventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverycore_outbox_events_published_total",
				Help: "Total number of outbox events successfully published",
			},
			[]string{"event_type"},
		),
		OutboxEventsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverycore_outbox_events_failed_total",
				Help: "Total number of outbox events failed to publish",
			},
			[]string{"event_type"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deliverycore_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverycore_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
}
