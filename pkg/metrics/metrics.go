package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"service"},
	)

	// Dispatch business metrics
	DispatchActiveBroadcasts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_active_broadcasts",
			Help: "Number of trips currently being broadcast to candidate drivers",
		},
		[]string{"service"},
	)

	DispatchOffersSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_offers_sent_total",
			Help: "Total number of trip offers sent to drivers",
		},
		[]string{"service"},
	)

	DispatchWideningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_widenings_total",
			Help: "Total number of times a broadcast widened past its preferred vehicle class",
		},
		[]string{"service"},
	)

	DispatchAutoCancelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_auto_cancels_total",
			Help: "Total number of trips auto-canceled after exhausting the dispatch window",
		},
		[]string{"service"},
	)

	DispatchCandidateListSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_candidate_list_size",
			Help:    "Size of the candidate driver list at the moment an offer round begins",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
		[]string{"service"},
	)

	TripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trips_total",
			Help: "Total number of trips created",
		},
		[]string{"service", "status"},
	)

	DriversOnlineGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drivers_online_total",
			Help: "Current number of online drivers",
		},
		[]string{"service"},
	)

	WebSocketConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"service"},
	)

	DatabaseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"service", "operation", "status"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	RabbitMQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_published_total",
			Help: "Total number of messages published to RabbitMQ",
		},
		[]string{"service", "queue", "status"},
	)

	RabbitMQMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_consumed_total",
			Help: "Total number of messages consumed from RabbitMQ",
		},
		[]string{"service", "queue", "status"},
	)
)

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(service, method, path, status).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(service, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueriesTotal.WithLabelValues(service, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordRabbitMQPublish records RabbitMQ publish metrics
func RecordRabbitMQPublish(service, queue string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RabbitMQMessagesPublished.WithLabelValues(service, queue, status).Inc()
}

// RecordRabbitMQConsume records RabbitMQ consume metrics
func RecordRabbitMQConsume(service, queue string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RabbitMQMessagesConsumed.WithLabelValues(service, queue, status).Inc()
}

// RecordOfferSent records that a trip offer was delivered to a candidate driver.
func RecordOfferSent(service string) {
	DispatchOffersSentTotal.WithLabelValues(service).Inc()
}

// RecordWidening records that a broadcast relaxed its vehicle-class filter.
func RecordWidening(service string) {
	DispatchWideningsTotal.WithLabelValues(service).Inc()
}

// RecordAutoCancel records that a trip was auto-canceled for exhausting its dispatch window.
func RecordAutoCancel(service string) {
	DispatchAutoCancelsTotal.WithLabelValues(service).Inc()
}
