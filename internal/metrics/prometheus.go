package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agbru/lookforge/internal/orchestration"
	"github.com/agbru/lookforge/internal/progress"
	"github.com/agbru/lookforge/internal/provider"
)

const namespace = "lookforge"

// Outcome label values for provider attempts.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Registry owns the service's Prometheus collectors. Each Registry uses its
// own prometheus.Registry so tests can create as many as they need.
type Registry struct {
	reg            *prometheus.Registry
	requests       *prometheus.CounterVec
	active         prometheus.Gauge
	attempts       *prometheus.CounterVec
	attemptSeconds *prometheus.HistogramVec
	sessions       *prometheus.CounterVec
	handler        http.Handler
}

// NewRegistry creates and registers all collectors, including the Go runtime
// and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "HTTP requests currently in flight.",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Provider attempts made by the fallback orchestrator.",
		}, []string{"provider", "kind", "outcome"}),
		attemptSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_attempt_seconds",
			Help:      "Duration of provider attempts.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"provider", "kind"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Progress sessions by lifecycle status.",
		}, []string{"status"}),
	}
	r.reg.MustRegister(
		r.requests, r.active, r.attempts, r.attemptSeconds, r.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.handler = promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler { return r.handler }

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// IncrementActiveRequests increments the in-flight gauge.
func (r *Registry) IncrementActiveRequests() { r.active.Inc() }

// DecrementActiveRequests decrements the in-flight gauge.
func (r *Registry) DecrementActiveRequests() { r.active.Dec() }

// ObserveRequest counts one served request.
func (r *Registry) ObserveRequest(method string, code int) {
	r.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ObserveAttempt records a provider attempt. It implements
// orchestration.AttemptObserver.
func (r *Registry) ObserveAttempt(_ context.Context, req provider.Request, rec orchestration.AttemptRecord) {
	outcome := OutcomeSuccess
	if !rec.Succeeded() {
		outcome = OutcomeFailure
	}
	kind := string(req.Kind)
	r.attempts.WithLabelValues(rec.ProviderID, kind, outcome).Inc()
	r.attemptSeconds.WithLabelValues(rec.ProviderID, kind).Observe(rec.Duration.Seconds())
}

// ObserveSession counts a session status transition. It matches the
// progress tracker's status hook signature.
func (r *Registry) ObserveSession(_ string, status progress.Status) {
	r.sessions.WithLabelValues(string(status)).Inc()
}

var _ orchestration.AttemptObserver = (*Registry)(nil)
