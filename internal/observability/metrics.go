package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service. All methods are
// nil-safe so wiring can omit metrics entirely.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	journalsPosted    prometheus.Counter
	journalsReversed  prometheus.Counter
	periodsClosed     prometheus.Counter
	periodsReopened   prometheus.Counter
	integrityFailures prometheus.Counter
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solvent_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solvent_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	journalsPosted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solvent_journals_posted_total",
		Help: "Journal entries posted to the ledger.",
	})
	journalsReversed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solvent_journals_reversed_total",
		Help: "Posted journal entries reversed.",
	})
	periodsClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solvent_periods_closed_total",
		Help: "Fiscal periods closed.",
	})
	periodsReopened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solvent_periods_reopened_total",
		Help: "Closed fiscal periods reopened.",
	})
	integrityFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solvent_ledger_integrity_failures_total",
		Help: "Accounting equation violations detected by scans.",
	})
	registry.MustRegister(requests, duration, journalsPosted, journalsReversed, periodsClosed, periodsReopened, integrityFailures)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		journalsPosted:    journalsPosted,
		journalsReversed:  journalsReversed,
		periodsClosed:     periodsClosed,
		periodsReopened:   periodsReopened,
		integrityFailures: integrityFailures,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// JournalPosted counts a successful posting.
func (m *Metrics) JournalPosted() {
	if m != nil {
		m.journalsPosted.Inc()
	}
}

// JournalReversed counts a successful reversal.
func (m *Metrics) JournalReversed() {
	if m != nil {
		m.journalsReversed.Inc()
	}
}

// PeriodClosed counts a successful period close.
func (m *Metrics) PeriodClosed() {
	if m != nil {
		m.periodsClosed.Inc()
	}
}

// PeriodReopened counts a successful period reopen.
func (m *Metrics) PeriodReopened() {
	if m != nil {
		m.periodsReopened.Inc()
	}
}

// IntegrityFailure counts a detected accounting equation violation.
func (m *Metrics) IntegrityFailure() {
	if m != nil {
		m.integrityFailures.Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
