// Package metrics exposes prometheus counters for the service. A dedicated
// registry keeps multiple instances (and tests) from colliding.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters.
type Metrics struct {
	Requests    *prometheus.CounterVec
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	RateLimited prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers the service metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepdive_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepdive_cache_hits_total",
			Help: "Deep-dive results served from the fingerprint cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepdive_cache_misses_total",
			Help: "Deep-dive invocations that had to call upstream.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepdive_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.Requests, m.CacheHits, m.CacheMisses, m.RateLimited)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
