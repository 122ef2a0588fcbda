// Package metrics exposes gateway counters over Prometheus.
//
// Every method is nil-safe so components can run without metrics wired.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "grayhub"

// Outcome label values shared by several counters.
const (
	OutcomeAccepted = "accepted"
	OutcomeDropped  = "dropped"
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	discoveryCycles  *prometheus.CounterVec
	discoveryReplies *prometheus.CounterVec
	evictions        prometheus.Counter

	telemetrySamples *prometheus.CounterVec

	routerRequests   *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	registryDevices *prometheus.GaugeVec
}

// New creates a fresh registry with all gateway metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		discoveryCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_cycles_total",
			Help:      "Discovery cycles run, by eviction mode",
		}, []string{"eviction"}),
		discoveryReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_replies_total",
			Help:      "Discovery replies received",
		}, []string{"outcome"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_evictions_total",
			Help:      "Devices removed from the registry by discovery",
		}),
		telemetrySamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_samples_total",
			Help:      "Telemetry datagrams received",
		}, []string{"outcome"}),
		routerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_requests_total",
			Help:      "Client requests handled by the command router",
		}, []string{"command", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of gateway to device command sessions",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"outcome"}),
		registryDevices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_devices",
			Help:      "Devices currently in the registry",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.discoveryCycles,
		m.discoveryReplies,
		m.evictions,
		m.telemetrySamples,
		m.routerRequests,
		m.dispatchDuration,
		m.registryDevices,
		collectors.NewGoCollector(),
	)

	return m
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncDiscoveryCycle counts one discovery cycle.
func (m *Metrics) IncDiscoveryCycle(eviction string) {
	if m == nil {
		return
	}
	m.discoveryCycles.WithLabelValues(eviction).Inc()
}

// IncDiscoveryReply counts one discovery reply by outcome.
func (m *Metrics) IncDiscoveryReply(outcome string) {
	if m == nil {
		return
	}
	m.discoveryReplies.WithLabelValues(outcome).Inc()
}

// AddEvictions counts records removed by a discovery cycle.
func (m *Metrics) AddEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// IncTelemetry counts one telemetry datagram by outcome.
func (m *Metrics) IncTelemetry(outcome string) {
	if m == nil {
		return
	}
	m.telemetrySamples.WithLabelValues(outcome).Inc()
}

// IncRouterRequest counts one client request.
func (m *Metrics) IncRouterRequest(command, outcome string) {
	if m == nil {
		return
	}
	m.routerRequests.WithLabelValues(command, outcome).Inc()
}

// ObserveDispatch records one gateway to device session.
func (m *Metrics) ObserveDispatch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetRegistrySize publishes the current registry composition.
func (m *Metrics) SetRegistrySize(routable, telemetryOnly int) {
	if m == nil {
		return
	}
	m.registryDevices.WithLabelValues("routable").Set(float64(routable))
	m.registryDevices.WithLabelValues("telemetry_only").Set(float64(telemetryOnly))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
