package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "listrak_sync"

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Listrak API calls by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	failedRequestsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_requests_recorded_total",
			Help:      "Failed requests persisted for retry.",
		},
	)

	retryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retry sweep attempts by outcome.",
		},
		[]string{"outcome"},
	)

	syncPages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_pages_total",
			Help:      "Sync pages handled by entity and outcome.",
		},
		[]string{"entity", "outcome"},
	)

	feedRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_rows_total",
			Help:      "Product rows written to feeds.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Trigger API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, failedRequestsRecorded, retryAttempts, syncPages, feedRows, httpRequests)
	})
}

func ObserveAPIRequest(endpoint, outcome string) {
	apiRequests.WithLabelValues(endpoint, outcome).Inc()
}

func AddFailedRequests(n int) {
	if n > 0 {
		failedRequestsRecorded.Add(float64(n))
	}
}

func ObserveRetry(outcome string) {
	retryAttempts.WithLabelValues(outcome).Inc()
}

func ObserveSyncPage(entity, outcome string) {
	syncPages.WithLabelValues(entity, outcome).Inc()
}

func AddFeedRows(n int) {
	if n > 0 {
		feedRows.Add(float64(n))
	}
}

// IncHTTP increments the counter for a route label.
func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
