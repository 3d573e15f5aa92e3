// Package metrics holds the Prometheus collectors of the ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cyberphone"

var (
	// Purchases counts processed purchases.
	// Labels: outcome (ok, rejected, error)
	Purchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "purchases_total",
		Help:      "Total purchases processed by the ledger",
	}, []string{"outcome"})

	// SalesCreated counts sale records written.
	SalesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "sales_created_total",
		Help:      "Total sale records created",
	})

	// SkippedLines counts cart lines or settlement steps skipped leniently.
	// Labels: reason (product_not_found, store_not_found, seller_not_found, affiliate_not_found)
	SkippedLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "skipped_lines_total",
		Help:      "Cart lines or settlement steps skipped because an entity was missing",
	}, []string{"reason"})

	// Ratings counts rating attempts.
	// Labels: outcome (ok, already_rated, not_delivered, not_found, error)
	Ratings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "ratings_total",
		Help:      "Total product rating attempts",
	}, []string{"outcome"})

	// NotificationsCreated counts notifications appended.
	// Labels: type
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "created_total",
		Help:      "Total notifications appended",
	}, []string{"type"})

	// NotificationsSuppressed counts self-notifications dropped by the emitter.
	// Labels: type
	NotificationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "suppressed_total",
		Help:      "Total self-notifications suppressed",
	}, []string{"type"})

	// TxDuration measures store transactions.
	// Labels: backend, outcome (commit, rollback)
	TxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "tx_duration_seconds",
		Help:      "Store transaction latency in seconds",
		Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"backend", "outcome"})

	// TxRetries counts transaction retries caused by conflicts.
	// Labels: backend
	TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "tx_retries_total",
		Help:      "Total transaction retries after a write conflict",
	}, []string{"backend"})

	// EventsPublished counts events handed to the broker.
	// Labels: topic, outcome (ok, error)
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Total events published after commit",
	}, []string{"topic", "outcome"})

	// EventsConsumed counts events handled by consumers.
	// Labels: topic, outcome (ok, duplicate, error)
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "consumed_total",
		Help:      "Total events handled by consumers",
	}, []string{"topic", "outcome"})
)
