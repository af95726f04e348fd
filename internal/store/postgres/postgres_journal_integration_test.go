package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/store"
)

func TestJournalRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("BILLDESK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BILLDESK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	number := fmt.Sprintf("INV-IT-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM document_journal WHERE document_number = $1`, number)
	})

	doc := domain.ConfirmedDocument{
		Variant:        domain.VariantInvoice,
		DocumentNumber: number,
		Customer:       domain.Customer{Name: "Integration"},
		Items:          []domain.LineItem{{ProductID: 1, ProductName: "Charger", Quantity: 2, UnitPrice: decimal.RequireFromString("100")}},
		Totals:         domain.Totals{Subtotal: decimal.RequireFromString("200"), GrandTotal: decimal.RequireFromString("236")},
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveDocument(ctx, doc); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	got, err := s.FindDocument(ctx, domain.VariantInvoice, number)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Customer.Name != "Integration" || len(got.Items) != 1 || !got.Totals.GrandTotal.Equal(doc.Totals.GrandTotal) {
		t.Fatalf("unexpected document %+v", got)
	}

	docs, err := s.ListDocuments(ctx, store.ListFilter{Variant: domain.VariantInvoice, Limit: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) == 0 {
		t.Fatalf("expected at least one journal entry")
	}
}
