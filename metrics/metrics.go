package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	InvoicesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invoices_created_total",
			Help: "Invoices created",
		},
	)

	PaymentsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_recorded_total",
			Help: "Payments recorded, by status at creation",
		},
		[]string{"status"},
	)

	InvoicesMarkedPaidTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invoices_marked_paid_total",
			Help: "Invoices promoted to paid by payment reconciliation",
		},
	)
)
