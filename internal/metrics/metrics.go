// Package metrics exposes Prometheus collectors for allocation, the
// reconciler, the simulator and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in
// tests.  Every method is safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	allocations       *prometheus.CounterVec
	releases          *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	readings          *prometheus.CounterVec
	simulatorTicks    prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seat_allocations_total",
			Help: "Seat reservation attempts by outcome.",
		}, []string{"outcome"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seat_releases_total",
			Help: "Reservations that gave their seat back, by reason.",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seat_status_transitions_total",
			Help: "Seat status changes applied from sensor readings.",
		}, []string{"from", "to"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensor_readings_total",
			Help: "Sensor readings ingested, by online state.",
		}, []string{"online"}),
		simulatorTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_ticks_total",
			Help: "Reading batches emitted by the occupancy simulator.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total response cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total response cache misses observed.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.allocations,
		m.releases,
		m.transitions,
		m.readings,
		m.simulatorTicks,
		m.cacheHits,
		m.cacheMisses,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations keyed by route
// pattern, not raw path, to keep label cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Allocation counts one reservation attempt by outcome.
func (m *Metrics) Allocation(outcome string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(outcome).Inc()
}

// Release counts one reservation giving back its seat.
func (m *Metrics) Release(reason string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(reason).Inc()
}

// Transition counts a reconciled seat status change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Readings counts ingested readings.
func (m *Metrics) Readings(online bool, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.readings.WithLabelValues(strconv.FormatBool(online)).Add(float64(n))
}

// SimulatorTick counts one emitted batch.
func (m *Metrics) SimulatorTick() {
	if m == nil {
		return
	}
	m.simulatorTicks.Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}
