package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_bookings_created_total",
			Help: "Total bookings created",
		},
	)

	BookingRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_booking_rejections_total",
			Help: "Total bookings rejected by validation",
		},
	)

	CapacityConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_capacity_conflicts_total",
			Help: "Total reservations lost to capacity or races",
		},
	)

	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_issued_total",
			Help: "Total tickets issued",
		},
	)

	PayoutsStuck = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_payouts_stuck_total",
			Help: "Total payouts flagged stuck by reconciliation",
		},
	)

	GatewayInconclusive = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_gateway_inconclusive_total",
			Help: "Total inconclusive gateway transfer-status answers",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketing_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketing_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_rate_limit_exceeded_total",
			Help: "Total rate limited requests",
		},
	)
)
