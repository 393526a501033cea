package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubtickets",
			Subsystem: "messages",
			Name:      "processed_total",
			Help:      "Messages handled by the router, whatever the outcome.",
		},
		[]string{"topic", "handler"},
	)

	MessagesProcessingFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubtickets",
			Subsystem: "messages",
			Name:      "processing_failed_total",
			Help:      "Messages whose handler still failed after retries.",
		},
		[]string{"topic", "handler"},
	)

	// MessagesDropped counts messages acked without success because their error is permanent.
	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubtickets",
			Subsystem: "messages",
			Name:      "dropped_total",
			Help:      "Messages acked after a permanent handler error.",
		},
		[]string{"topic", "handler"},
	)

	MessagesProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clubtickets",
			Subsystem: "messages",
			Name:      "processing_duration_seconds",
			Help:      "Time spent handling a message, retries included.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15},
		},
		[]string{"topic", "handler"},
	)
)

var (
	TicketsPurchased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubtickets",
			Name:      "tickets_purchased_total",
			Help:      "Tickets created in pending_payment, by tier",
		},
		[]string{"tier"},
	)

	PurchasesDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubtickets",
			Name:      "purchases_denied_total",
			Help:      "Purchase attempts refused by the authorization gate, by reason",
		},
		[]string{"reason"},
	)

	PaymentPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubtickets",
			Name:      "payment_pushes_total",
			Help:      "Push payment requests sent to the provider, by result (accepted, rejected, ambiguous)",
		},
		[]string{"result"},
	)

	PaymentResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubtickets",
			Name:      "payment_results_total",
			Help:      "Payment results reconciled, by source (callback, query) and status",
		},
		[]string{"source", "status"},
	)

	ReconciliationMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubtickets",
			Name:      "reconciliation_misses_total",
			Help:      "Payment results whose correlation token matched no payment request",
		},
		[]string{"source"},
	)
)
