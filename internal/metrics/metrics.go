// Package metrics exposes crewbuilder's Prometheus collectors.
package metrics

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soyeahso/crewbuilder/internal/hooks"
)

// Metrics owns a registry and the collectors registered in it. A nil
// *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	executions     *prometheus.CounterVec
	execDuration   prometheus.Histogram
	generations    *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	rpcRequests    *prometheus.CounterVec
	buildInfo      *prometheus.GaugeVec
	httpInFlight   prometheus.Gauge
	httpRequests   *prometheus.CounterVec
}

// New registers every collector, plus the Go runtime and process
// collectors, in a fresh registry.
func New(version, commit string) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewbuilder_executions_total",
			Help: "Crew executions by terminal state.",
		}, []string{"state"}),
		execDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crewbuilder_execution_duration_seconds",
			Help:    "Wall time of crew executions.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewbuilder_generations_total",
			Help: "Generated programs by resolution mode.",
		}, []string{"mode"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crewbuilder_sessions_active",
			Help: "Builder sessions currently attached to a connection.",
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewbuilder_rpc_requests_total",
			Help: "Gateway RPC requests by method and outcome.",
		}, []string{"method", "outcome"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crewbuilder_build_info",
			Help: "crewbuilder build information.",
		}, []string{"version", "commit"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crewbuilder_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewbuilder_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
	}
	m.reg.MustRegister(
		m.executions, m.execDuration, m.generations, m.sessionsActive,
		m.rpcRequests, m.buildInfo, m.httpInFlight, m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.buildInfo.WithLabelValues(version, commit).Set(1)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveExecution records a finished execution.
func (m *Metrics) ObserveExecution(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(state).Inc()
	m.execDuration.Observe(d.Seconds())
}

// ObserveGeneration records a generated program.
func (m *Metrics) ObserveGeneration(mode string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(mode).Inc()
}

// SessionStarted and SessionEnded track attached sessions.
func (m *Metrics) SessionStarted() {
	if m != nil {
		m.sessionsActive.Inc()
	}
}

func (m *Metrics) SessionEnded() {
	if m != nil {
		m.sessionsActive.Dec()
	}
}

// ObserveRPC records one gateway request.
func (m *Metrics) ObserveRPC(method, outcome string) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}

// Subscribe feeds session, generation and execution counters from hook
// events.
func (m *Metrics) Subscribe(h *hooks.Manager) {
	if m == nil || h == nil {
		return
	}
	h.On(hooks.EventSessionStart, "metrics", func(context.Context, hooks.Payload) error {
		m.SessionStarted()
		return nil
	})
	h.On(hooks.EventSessionEnd, "metrics", func(context.Context, hooks.Payload) error {
		m.SessionEnded()
		return nil
	})
	h.On(hooks.EventCodeGenerated, "metrics", func(_ context.Context, p hooks.Payload) error {
		mode, _ := p.Data[hooks.KeyMode].(string)
		m.ObserveGeneration(mode)
		return nil
	})
	h.On(hooks.EventAfterCrewRun, "metrics", func(_ context.Context, p hooks.Payload) error {
		state, _ := p.Data[hooks.KeyState].(string)
		if state == "" {
			return errors.New("after_crew_run payload without state")
		}
		secs, _ := p.Data[hooks.KeyDuration].(float64)
		m.ObserveExecution(state, time.Duration(secs*float64(time.Second)))
		return nil
	})
}

// Instrument counts requests passing through next.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		m.httpRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.code)).Inc()
	})
}

// statusWriter remembers the response code. It forwards Hijack so
// websocket upgrades still work behind Instrument.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.code = http.StatusSwitchingProtocols
	return hj.Hijack()
}
