// Package metrics exposes Prometheus metrics for the portal.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Metrics holds every collector, registered on a private registry so tests
// can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	SyncTasks   *prometheus.CounterVec
	SyncDropped *prometheus.CounterVec

	Signups  *prometheus.CounterVec
	CheckIns *prometheus.CounterVec
	Submits  prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SyncTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Background sync tasks by outcome.",
		}, []string{"task", "result"}),
		SyncDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_dropped_total",
			Help:      "Background sync tasks dropped because the queue was full or stopped.",
		}, []string{"task"}),
		Signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Accounts created, by method.",
		}, []string{"method"}),
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_checkins_total",
			Help:      "Event check-ins, by event and whether the candidate was already checked in.",
		}, []string{"event", "repeat"}),
		Submits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_submitted_total",
			Help:      "Applications submitted.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.SyncTasks,
		m.SyncDropped,
		m.Signups,
		m.CheckIns,
		m.Submits,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TaskDone records a finished background task.
func (m *Metrics) TaskDone(name string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SyncTasks.WithLabelValues(name, result).Inc()
}

// TaskDropped records a task the queue refused.
func (m *Metrics) TaskDropped(name string) {
	m.SyncDropped.WithLabelValues(name).Inc()
}

// Signup counts a new account; method is "password" or "google".
func (m *Metrics) Signup(method string) {
	m.Signups.WithLabelValues(method).Inc()
}

// CheckIn counts an event check-in.
func (m *Metrics) CheckIn(event string, repeat bool) {
	m.CheckIns.WithLabelValues(event, strconv.FormatBool(repeat)).Inc()
}

// ApplicationSubmitted counts a submission.
func (m *Metrics) ApplicationSubmitted() {
	m.Submits.Inc()
}

// Middleware records request count and latency per chi route pattern, so
// /api/admin/candidate-info/{userid} is one series rather than one per user.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
