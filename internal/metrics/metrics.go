// Package metrics exposes the process's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "davcore_http_requests_total",
		Help: "Total DAV requests processed, by method and status class.",
	}, []string{"method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "davcore_http_request_duration_seconds",
		Help:    "DAV request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	StorageOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "davcore_storage_op_duration_seconds",
		Help:    "Storage-layer operation latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	SyncTokenBumps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "davcore_sync_token_bumps_total",
		Help: "Count of sync_token increments, by mutating operation.",
	}, []string{"op"})
)

// Handler exposes /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStorageOp records how long a named storage operation took.
func ObserveStorageOp(op string, start time.Time) {
	StorageOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
