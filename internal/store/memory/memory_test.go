package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/store"
)

func TestJournalSaveFindList(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for i, number := range []string{"INV-1", "INV-2"} {
		doc := domain.ConfirmedDocument{Variant: domain.VariantInvoice, DocumentNumber: number, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.SaveDocument(ctx, doc); err != nil {
			t.Fatalf("save %s: %v", number, err)
		}
	}
	if err := s.SaveDocument(ctx, domain.ConfirmedDocument{Variant: domain.VariantService, DocumentNumber: "INV-1"}); err != nil {
		t.Fatalf("same number on another variant must be allowed: %v", err)
	}
	if err := s.SaveDocument(ctx, domain.ConfirmedDocument{Variant: domain.VariantInvoice, DocumentNumber: "INV-1"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	doc, err := s.FindDocument(ctx, domain.VariantInvoice, "INV-2")
	if err != nil || doc.DocumentNumber != "INV-2" {
		t.Fatalf("find: %v %+v", err, doc)
	}
	if _, err := s.FindDocument(ctx, domain.VariantProforma, "INV-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	docs, err := s.ListDocuments(ctx, store.ListFilter{Variant: domain.VariantInvoice})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].DocumentNumber != "INV-2" {
		t.Fatalf("expected newest first, got %+v", docs)
	}
	docs, _ = s.ListDocuments(ctx, store.ListFilter{Limit: 1})
	if len(docs) != 1 {
		t.Fatalf("expected limit 1, got %d", len(docs))
	}
}
