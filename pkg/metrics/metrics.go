// Package metrics exposes the Prometheus instrumentation shared by the three
// services. All collectors hang off one private registry so tests can run
// side by side without duplicate registration panics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	// HTTPRequests counts completed REST requests by service, method and
	// status class.
	HTTPRequests = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "eludris_http_requests_total",
			Help: "Total number of completed HTTP requests",
		},
		[]string{"service", "method", "status"},
	)

	// HTTPDuration observes request latency by service and method.
	HTTPDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eludris_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"service", "method"},
	)

	// GatewayConnections tracks the sockets currently held open.
	GatewayConnections = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "eludris_gateway_connections",
			Help: "Currently open gateway connections",
		},
	)

	// GatewayEvents counts frames fanned out to clients by op.
	GatewayEvents = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "eludris_gateway_events_total",
			Help: "Total gateway frames sent to clients",
		},
		[]string{"op"},
	)

	// FileUploads counts Effis uploads by bucket and outcome.
	FileUploads = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "eludris_file_uploads_total",
			Help: "Total file uploads by bucket and outcome",
		},
		[]string{"bucket", "status"},
	)

	// FileBytes counts bytes accepted into the blob store by bucket.
	FileBytes = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "eludris_file_upload_bytes_total",
			Help: "Total bytes accepted into the blob store",
		},
		[]string{"bucket"},
	)
)

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
