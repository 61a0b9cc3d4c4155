package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sources
	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booktracker_source_requests_total",
			Help: "Source searches by outcome (success, failure, rejected)",
		},
		[]string{"source", "outcome"},
	)

	SourceResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booktracker_source_results_total",
			Help: "Listings returned per source",
		},
		[]string{"source"},
	)

	SourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booktracker_source_duration_seconds",
			Help:    "Duration of one source search",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"source"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "booktracker_circuit_breaker_state",
			Help: "Source circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Batch job
	BatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booktracker_batch_runs_total",
			Help: "Scheduled search runs by outcome",
		},
		[]string{"outcome"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booktracker_batch_duration_seconds",
			Help:    "Duration of a scheduled search run",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		},
	)

	BooksSearched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booktracker_books_searched_total",
			Help: "Books searched by the scheduled run",
		},
	)

	BooksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booktracker_books_skipped_total",
			Help: "Books skipped because they were searched recently",
		},
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booktracker_notifications_created_total",
			Help: "Notifications persisted",
		},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booktracker_deliveries_total",
			Help: "Outbound email and push deliveries by outcome",
		},
		[]string{"channel", "outcome"},
	)

	NotificationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booktracker_notifications_expired_total",
			Help: "Notifications removed by the retention sweep",
		},
	)

	// API
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booktracker_api_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booktracker_api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func RecordSourceSearch(source string, duration time.Duration, results int, err error) {
	SourceDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		SourceRequests.WithLabelValues(source, "failure").Inc()
		return
	}
	SourceRequests.WithLabelValues(source, "success").Inc()
	SourceResults.WithLabelValues(source).Add(float64(results))
}

func RecordSourceRejected(source string) {
	SourceRequests.WithLabelValues(source, "rejected").Inc()
}

func RecordBatchRun(duration time.Duration, err error) {
	BatchDuration.Observe(duration.Seconds())
	if err != nil {
		BatchRuns.WithLabelValues("failure").Inc()
		return
	}
	BatchRuns.WithLabelValues("success").Inc()
}

func RecordDelivery(channel string, err error) {
	if err != nil {
		Deliveries.WithLabelValues(channel, "failure").Inc()
		return
	}
	Deliveries.WithLabelValues(channel, "success").Inc()
}

func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
