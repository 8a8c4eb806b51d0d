// Package metrics exposes KeyDesk's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	distributionOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keydesk_distribution_outcomes_total",
		Help: "Distribution pair outcomes by result and recipient kind",
	}, []string{"result", "recipient_kind"})

	distributionBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keydesk_distribution_batches_total",
		Help: "Bulk distribution batches executed",
	})

	keysGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keydesk_keys_generated_total",
		Help: "Authentication keys requested from the platform",
	})

	platformRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keydesk_platform_request_duration_seconds",
		Help:    "Latency of calls to the platform service",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// ObserveOutcome records one distribution pair outcome.
func ObserveOutcome(result, recipientKind string) {
	distributionOutcomesTotal.WithLabelValues(result, recipientKind).Inc()
}

// ObserveBatch records one completed bulk distribution batch.
func ObserveBatch() {
	distributionBatchesTotal.Inc()
}

// ObserveGenerated records a successful generation request for n keys.
func ObserveGenerated(n int) {
	keysGeneratedTotal.Add(float64(n))
}

// ObservePlatform records the duration of one platform call.
func ObservePlatform(operation string, start time.Time) {
	platformRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
