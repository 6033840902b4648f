// Package metrics exposes Prometheus collectors for the API on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studytrack"

type Metrics struct {
	registry *prometheus.Registry

	TimerTransitions    *prometheus.CounterVec
	SessionsRecorded    *prometheus.CounterVec
	SessionSeconds      prometheus.Histogram
	StreakUpdates       *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	ActiveStreams       prometheus.Gauge
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TimerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timer_transitions_total",
				Help:      "Timer events applied, by event and outcome (changed, noop, rejected).",
			},
			[]string{"event", "outcome"},
		),
		SessionsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_recorded_total",
				Help:      "Study sessions stored, by final status.",
			},
			[]string{"status"},
		),
		SessionSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Duration of stored study sessions.",
				Buckets:   []float64{60, 300, 900, 1500, 2700, 3600, 5400, 7200, 14400},
			},
		),
		StreakUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "streak_updates_total",
				Help:      "Streak changes, by kind (increment, restart, expire).",
			},
			[]string{"kind"},
		),
		PersistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_failures_total",
				Help:      "Store writes or reads that failed, by operation.",
			},
			[]string{"op"},
		),
		ActiveStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "timer_streams_active",
				Help:      "Open timer event streams.",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TimerTransitions,
		m.SessionsRecorded,
		m.SessionSeconds,
		m.StreakUpdates,
		m.PersistenceFailures,
		m.ActiveStreams,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records every request under its route pattern so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) PersistenceFailure(op string) {
	m.PersistenceFailures.WithLabelValues(op).Inc()
}
