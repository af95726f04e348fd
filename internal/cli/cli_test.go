package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/listing"
	"billdesk/terminal/internal/receipt"
	"billdesk/terminal/internal/service"
)

type fakeBackend struct {
	lastFilter listing.Filter
	lastRange  domain.ReportRange
	docs       []domain.DocumentSummary
}

func (f *fakeBackend) SearchProducts(_ context.Context, term string) ([]domain.Product, *domain.Notice) {
	if term == "none" {
		return nil, &domain.Notice{Level: domain.NoticeWarning, Message: "catalog unavailable"}
	}
	return []domain.Product{{ID: 7, Name: "Tempered Glass", SellingPrice: decimal.RequireFromString("149"), Stock: 12}}, nil
}

func (f *fakeBackend) ListDocuments(_ context.Context, filter listing.Filter, page, perPage int) (listing.Page, error) {
	f.lastFilter = filter
	return listing.Paginate(listing.Apply(f.docs, filter), page, perPage), nil
}

func (f *fakeBackend) ExportDocuments(_ context.Context, w io.Writer, filter listing.Filter) error {
	f.lastFilter = filter
	return listing.WriteCSV(w, listing.Apply(f.docs, filter), time.UTC)
}

func (f *fakeBackend) Receipt(_ context.Context, variant domain.Variant, number string) (receipt.Layout, error) {
	if number == "missing" {
		return receipt.Layout{}, domain.ErrDocumentNotFound
	}
	doc := domain.ConfirmedDocument{Variant: variant, DocumentNumber: number, Customer: domain.Customer{Name: "Ravi"}}
	return receipt.Render(doc, receipt.DefaultBusiness(), receipt.Width58mm), nil
}

func (f *fakeBackend) Reports(_ context.Context, rng domain.ReportRange) (service.ReportView, error) {
	f.lastRange = rng
	return service.ReportView{Lines: []listing.ReportLine{{Label: "Total sales", Value: "₹1,000.00"}}}, nil
}

func sampleDocs() []domain.DocumentSummary {
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	return []domain.DocumentSummary{
		{Variant: domain.VariantInvoice, Number: "INV-1", CustomerName: "Ravi", GrandTotal: decimal.RequireFromString("236"), CreatedAt: at},
		{Variant: domain.VariantService, Number: "SIN-1", CustomerName: "Anu", GrandTotal: decimal.RequireFromString("500"), CreatedAt: at.Add(time.Hour)},
	}
}

func run(t *testing.T, backend Backend, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(backend)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProductsSearchTable(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "products", "search", "glass")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "Tempered Glass") || !strings.Contains(out, "149.00") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestProductsSearchJSON(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "--json", "products", "search", "glass")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var products []domain.Product
	if err := json.Unmarshal([]byte(out), &products); err != nil {
		t.Fatalf("expected JSON output: %v\n%s", err, out)
	}
	if len(products) != 1 || products[0].ID != 7 {
		t.Fatalf("unexpected products %+v", products)
	}
}

func TestDocumentsListAppliesFilters(t *testing.T) {
	backend := &fakeBackend{docs: sampleDocs()}
	out, err := run(t, backend, "documents", "list", "--type", "service", "--date", "2026-04-02")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if backend.lastFilter.Variant != domain.VariantService {
		t.Fatalf("expected service filter, got %q", backend.lastFilter.Variant)
	}
	if !strings.Contains(out, "SIN-1") || strings.Contains(out, "INV-1") {
		t.Fatalf("unexpected rows:\n%s", out)
	}
	if !strings.Contains(out, "Page 1 of 1") {
		t.Fatalf("missing page info:\n%s", out)
	}
}

func TestDocumentsListRejectsUnknownType(t *testing.T) {
	if _, err := run(t, &fakeBackend{}, "documents", "list", "--type", "quote"); err == nil {
		t.Fatalf("expected unknown type to fail")
	}
}

func TestDocumentsExportCSV(t *testing.T) {
	out, err := run(t, &fakeBackend{docs: sampleDocs()}, "documents", "export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "Type,Number") {
		t.Fatalf("unexpected csv:\n%s", out)
	}
}

func TestDocumentsReceipt(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "documents", "receipt", "bill", "INV-9")
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if !strings.Contains(out, "TAX INVOICE") || !strings.Contains(out, "INV-9") {
		t.Fatalf("unexpected receipt:\n%s", out)
	}

	if _, err := run(t, &fakeBackend{}, "documents", "receipt", "invoice", "missing"); err == nil || err.Error() != domain.ErrDocumentNotFound.Message {
		t.Fatalf("expected not found message, got %v", err)
	}
}

func TestReportsParsesRange(t *testing.T) {
	backend := &fakeBackend{}
	out, err := run(t, backend, "reports", "--start", "2026-01-01", "--end", "2026-01-31")
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if backend.lastRange.Start.Format(time.DateOnly) != "2026-01-01" || backend.lastRange.End.Day() != 31 {
		t.Fatalf("unexpected range %+v", backend.lastRange)
	}
	if !strings.Contains(out, "₹1,000.00") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	if _, err := run(t, backend, "reports", "--start", "01/02/2026"); err == nil {
		t.Fatalf("expected bad date to fail")
	}
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, nil, "hash-password", "till-secret")
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	hash := strings.TrimSpace(out)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("till-secret")) != nil {
		t.Fatalf("hash does not verify: %q", hash)
	}
}
