package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Pipeline Metrics
	MessagesCreated   prometheus.Counter
	DeliveryAttempts  *prometheus.CounterVec
	DeliveryDuration  prometheus.Histogram
	RetriesSwept      prometheus.Counter
	MessagesCleanedUp prometheus.Counter

	// Inbound Metrics
	PollCycles       prometheus.Counter
	InboundIngested  prometheus.Counter
	InboundSkipped   prometheus.Counter
	InboundErrors    prometheus.Counter
	MailboxReconnect prometheus.Counter

	// Breaker Metrics
	BreakerTransitions *prometheus.CounterVec
	BreakerRejections  *prometheus.CounterVec

	// Cache Metrics
	CacheRequests *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailgateway_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailgateway_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),

		MessagesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailgateway_messages_created_total",
				Help: "Total number of outbound messages created",
			},
		),
		DeliveryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgateway_delivery_attempts_total",
				Help: "Delivery attempts by result",
			},
			[]string{"result"},
		),
		DeliveryDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailgateway_delivery_duration_seconds",
				Help:    "Duration of outbound delivery attempts",
				Buckets: prometheus.DefBuckets,
			},
		),
		RetriesSwept: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailgateway_retries_swept_total",
				Help: "Failed messages re-enqueued by the retry sweep",
			},
		),
		MessagesCleanedUp: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailgateway_messages_cleaned_up_total",
				Help: "Terminal messages removed by retention cleanup",
			},
		),

		PollCycles: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailgateway_poll_cycles_total",
				Help: "Completed mailbox poll cycles",
			},
		),
		InboundIngested: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailgateway_inbound_ingested_total",
				Help: "Inbound messages persisted as RECEIVED",
			},
		),
		InboundSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailgateway_inbound_skipped_total",
				Help: "Inbound items skipped for missing sender address",
			},
		),
		InboundErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailgateway_inbound_errors_total",
				Help: "Per-item failures during mailbox poll cycles",
			},
		),
		MailboxReconnect: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailgateway_mailbox_reconnects_total",
				Help: "Mailbox reconnection attempts",
			},
		),

		BreakerTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgateway_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"breaker", "to"},
		),
		BreakerRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgateway_breaker_rejections_total",
				Help: "Calls rejected while a breaker was open",
			},
			[]string{"breaker"},
		),

		CacheRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgateway_cache_requests_total",
				Help: "Cache lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration.Seconds())
}

func (m *Metrics) RecordDelivery(result string, duration time.Duration) {
	m.DeliveryAttempts.WithLabelValues(result).Inc()
	m.DeliveryDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordBreakerTransition(breaker, to string) {
	m.BreakerTransitions.WithLabelValues(breaker, to).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheRequests.WithLabelValues("hit").Inc()
		return
	}
	m.CacheRequests.WithLabelValues("miss").Inc()
}
