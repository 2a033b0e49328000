package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/pantryledger/pantryledger/internal/jobs"
	"github.com/pantryledger/pantryledger/internal/reconcile"
)

// Metrics collects the Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	jobs            *jobmetrics.Metrics

	reconcileRuns     prometheus.Counter
	reconcileDuration prometheus.Histogram
	reportRows        prometheus.Gauge
	unmatched         prometheus.Gauge
	excluded          prometheus.Gauge
	inconsistencies   prometheus.Gauge
	approvalsReset    prometheus.Counter
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pantryledger_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pantryledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	m := &Metrics{
		registry:        registry,
		requestsTotal:   requests,
		requestDuration: duration,
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pantryledger_reconcile_runs_total",
			Help: "Completed reconciliation runs.",
		}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pantryledger_reconcile_duration_seconds",
			Help:    "Duration of reconciliation runs.",
			Buckets: prometheus.DefBuckets,
		}),
		reportRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pantryledger_report_rows",
			Help: "Base products in the latest report.",
		}),
		unmatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pantryledger_reconcile_unmatched_products",
			Help: "Sold products without a catalog mapping in the latest run.",
		}),
		excluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pantryledger_reconcile_excluded_lines",
			Help: "Order lines excluded by state or window in the latest run.",
		}),
		inconsistencies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pantryledger_reconcile_inconsistencies",
			Help: "Acquisition lines whose unit could not be converted in the latest run.",
		}),
		approvalsReset: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pantryledger_approvals_reset_total",
			Help: "Approved products reset to pending by reconciliation runs.",
		}),
	}
	registry.MustRegister(requests, duration,
		m.reconcileRuns, m.reconcileDuration, m.reportRows,
		m.unmatched, m.excluded, m.inconsistencies, m.approvalsReset)
	m.jobs = jobmetrics.NewMetrics(registry)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Middleware records metrics for every HTTP request.
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

// ObserveReconcile implements reconcile.Observer.
func (m *Metrics) ObserveReconcile(res reconcile.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconcileRuns.Inc()
	m.reconcileDuration.Observe(elapsed.Seconds())
	m.reportRows.Set(float64(len(res.Rows)))
	m.unmatched.Set(float64(len(res.Unmatched)))
	m.excluded.Set(float64(res.Excluded))
	m.inconsistencies.Set(float64(len(res.Inconsistencies)))
	m.approvalsReset.Add(float64(res.ApprovalsReset))
}

// Jobs returns the job collectors registered on the same registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
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
