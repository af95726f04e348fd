package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"billdesk/terminal/internal/document"
	"billdesk/terminal/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, Options{CSRFToken: "tok-123", SessionCookie: "sess-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestRequestsCarryCSRFHeaderAndCookie(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRFToken") != "tok-123" {
			t.Errorf("missing csrf header")
		}
		cookie, err := r.Cookie("csrftoken")
		if err != nil || cookie.Value != "tok-123" {
			t.Errorf("missing csrf cookie: %v", err)
		}
		if s, err := r.Cookie("sessionid"); err != nil || s.Value != "sess-1" {
			t.Errorf("missing session cookie: %v", err)
		}
		_, _ = io.WriteString(w, `[]`)
	})
	if _, err := c.ListProducts(context.Background()); err != nil {
		t.Fatalf("list products: %v", err)
	}
}

func TestListProductsFollowsPagination(t *testing.T) {
	var base string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprintf(w, `{"results":[{"id":1,"name":"Charger","selling_price":"499.00","stock":4}],"next":"%s/api/products/?page=2"}`, base)
		case "2":
			_, _ = io.WriteString(w, `{"results":[{"id":2,"name":"Cable","selling_price":120,"stock":0,"category":null}],"next":null}`)
		default:
			t.Errorf("unexpected page %q", r.URL.RawQuery)
		}
	}))
	defer srv.Close()
	base = srv.URL

	c, err := New(srv.URL, Options{})
	if err != nil {
		t.Fatal(err)
	}
	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 2 || products[1].Name != "Cable" {
		t.Fatalf("unexpected products %+v", products)
	}
	if !products[0].SellingPrice.Equal(decimal.RequireFromString("499")) || !products[1].SellingPrice.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("prices not decoded from string and number")
	}
}

func TestCreateBillSendsWireSchema(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/bills/create/" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		items := body["items"].([]any)
		first := items[0].(map[string]any)
		if first["product_id"].(float64) != 1 || first["quantity"].(float64) != 2 {
			t.Errorf("unexpected item %v", first)
		}
		if _, ok := first["line_total"]; ok {
			t.Errorf("line_total must not be sent")
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"invoice_no":"INV-0009","grand_total":236.0}`)
	})

	conf, err := c.Create(context.Background(), document.Payload{
		Variant: domain.VariantInvoice,
		Bill: &domain.BillPayload{
			CustomerName: "Ravi",
			Items:        []domain.BillItemPayload{{ProductID: 1, Quantity: 2}},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conf.InvoiceNo != "INV-0009" || !conf.GrandTotal.Valid {
		t.Fatalf("unexpected confirmation %+v", conf)
	}
}

func TestErrorBodiesAreFlattened(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{400, `{"items":["This field is required."],"customer_name":["Too long.","Invalid."]}`, "customer_name: Too long., Invalid.; items: This field is required."},
		{404, `{"error":"Product not found"}`, "Product not found"},
		{403, `{"detail":"CSRF Failed: CSRF token missing."}`, "CSRF Failed: CSRF token missing."},
		{400, `{"message":"Insufficient stock","code":"stock"}`, "code: stock; message: Insufficient stock"},
		{502, `<html>bad gateway</html>`, "billing server returned 502 Bad Gateway"},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		})
		_, err := c.Reports(context.Background(), domain.ReportRange{})
		var apiErr *domain.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Status != tc.status || apiErr.Message != tc.want {
			t.Fatalf("status %d: expected %q, got %q", tc.status, tc.want, apiErr.Message)
		}
	}
}

func TestMalformedSuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"invoice_no":`)
	})
	_, err := c.Create(context.Background(), document.Payload{Variant: domain.VariantInvoice, Bill: &domain.BillPayload{}})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url, Options{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ListProducts(context.Background())
	if domain.KindOf(err) != domain.KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestReportsQueryAndDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/reports/":
			if r.URL.Query().Get("start") != "2024-06-01" || r.URL.Query().Get("end") != "2024-06-30" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			_, _ = io.WriteString(w, `{"total_sales":1200.5,"service_income":300,"daily_sales":0,"monthly_sales":1500.5,"total_revenue":1500.5}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/services/12/":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	report, err := c.Reports(context.Background(), domain.ReportRange{
		Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if !report.TotalRevenue.Equal(decimal.RequireFromString("1500.5")) {
		t.Fatalf("unexpected revenue %s", report.TotalRevenue)
	}
	if err := c.DeleteService(context.Background(), 12); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
