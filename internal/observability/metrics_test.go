package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/v1/sessions/{id}/items")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/abc/items", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `billdesk_http_requests_total{code="409",route="/api/v1/sessions/{id}/items"} 1`) {
		t.Fatalf("expected request to be recorded, got: %s", body)
	}
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveSave("invoice", "confirmed")
	metrics.ObserveRejection("stock")
	metrics.ObserveCatalog("cache", 12, true)
	metrics.ObservePrint("queued")

	body := scrape(t, metrics)
	for _, want := range []string{
		`billdesk_document_saves_total{outcome="confirmed",variant="invoice"} 1`,
		`billdesk_cart_rejections_total{kind="stock"} 1`,
		`billdesk_catalog_degraded_total{source="cache"} 1`,
		`billdesk_catalog_products 12`,
		`billdesk_print_jobs_total{outcome="queued"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in: %s", want, body)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveSave("invoice", "failed")
	metrics.ObserveCatalog("empty", 0, true)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}
