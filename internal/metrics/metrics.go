package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels recorded for friend graph operations.
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeError       = "error"
	OutcomeLimited     = "rate_limited"
)

// Registry holds the collectors exported by the service. Each instance owns
// its own prometheus.Registry so tests can build isolated handlers.
type Registry struct {
	registry         *prometheus.Registry
	friendOperations *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a registry with the service collectors and the Go runtime
// collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		friendOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "friendzone",
			Name:      "friend_operations_total",
			Help:      "Friend graph operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "friendzone",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		r.friendOperations,
		r.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// FriendOperation counts the outcome of a single friend graph operation.
// A nil registry discards the observation.
func (r *Registry) FriendOperation(operation, outcome string) {
	if r == nil {
		return
	}
	r.friendOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveHTTP records how long a request took.
func (r *Registry) ObserveHTTP(method, path string, status int, seconds float64) {
	if r == nil {
		return
	}
	r.httpDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
