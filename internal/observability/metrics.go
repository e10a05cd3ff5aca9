package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	receiptsTotal   *prometheus.CounterVec
	billsTotal      prometheus.Counter
	matchChecks     *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_receiving_receipts_total",
		Help: "Goods receipts processed, by resulting PO status.",
	}, []string{"po_status"})
	bills := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_receiving_bills_total",
		Help: "Vendor bills auto-created from fully matched receipts.",
	})
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_receiving_match_checks_total",
		Help: "Three-way match evaluations, by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, receipts, bills, matches)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		receiptsTotal:   receipts,
		billsTotal:      bills,
		matchChecks:     matches,
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

// Middleware records metrics for each HTTP request.
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

// ReceiptProcessed counts a completed receiving workflow.
func (m *Metrics) ReceiptProcessed(poStatus string) {
	if m == nil {
		return
	}
	m.receiptsTotal.WithLabelValues(poStatus).Inc()
}

// BillCreated counts an auto-created vendor bill.
func (m *Metrics) BillCreated() {
	if m == nil {
		return
	}
	m.billsTotal.Inc()
}

// MatchEvaluated counts a three-way match evaluation outcome.
func (m *Metrics) MatchEvaluated(outcome string) {
	if m == nil {
		return
	}
	m.matchChecks.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for custom metric registration.
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
