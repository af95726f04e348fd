package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the terminal's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	saves           *prometheus.CounterVec
	cartRejections  *prometheus.CounterVec
	catalogDegraded *prometheus.CounterVec
	catalogProducts prometheus.Gauge
	printJobs       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billdesk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billdesk_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billdesk_document_saves_total",
		Help: "Document save attempts by variant and outcome.",
	}, []string{"variant", "outcome"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billdesk_cart_rejections_total",
		Help: "Cart commands rejected locally, by error kind.",
	}, []string{"kind"})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billdesk_catalog_degraded_total",
		Help: "Catalog loads that fell back to a stale or empty list.",
	}, []string{"source"})
	products := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "billdesk_catalog_products",
		Help: "Products in the active catalog snapshot.",
	})
	printJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billdesk_print_jobs_total",
		Help: "Print jobs by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, saves, rejections, degraded, products, printJobs)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		saves:           saves,
		cartRejections:  rejections,
		catalogDegraded: degraded,
		catalogProducts: products,
		printJobs:       printJobs,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern.
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

func (m *Metrics) ObserveSave(variant string, outcome string) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(variant, outcome).Inc()
}

func (m *Metrics) ObserveRejection(kind string) {
	if m == nil {
		return
	}
	m.cartRejections.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveCatalog(source string, products int, degraded bool) {
	if m == nil {
		return
	}
	m.catalogProducts.Set(float64(products))
	if degraded {
		m.catalogDegraded.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) ObservePrint(outcome string) {
	if m == nil {
		return
	}
	m.printJobs.WithLabelValues(outcome).Inc()
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
