package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition outcomes
const (
	OutcomeChanged     = "changed"
	OutcomeNoop        = "noop"
	OutcomeVetoed      = "vetoed"
	OutcomeRequirement = "requirement_failed"
	OutcomeError       = "error"
)

var (
	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of requested order status transitions",
	}, []string{"status", "outcome"})

	StatusTransitionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_status_transition_latency_seconds",
		Help:    "Latency of order status transitions",
		Buckets: prometheus.DefBuckets,
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders that entered the paid status",
	})

	OrdersPaidAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_amount_total",
		Help: "Sum of order totals that entered the paid status",
	})

	StockUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_stock_updates_total",
		Help: "Total number of stock updates triggered by status changes",
	}, []string{"outcome"})

	OrderLockChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_lock_changes_total",
		Help: "Total number of order lock changes triggered by status changes",
	}, []string{"state"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_notifications_total",
		Help: "Total number of status notification emails",
	}, []string{"audience", "result"})

	StatusCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_cache_lookups_total",
		Help: "Status catalog lookups by cache result",
	}, []string{"result"})

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
