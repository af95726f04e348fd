package store

import (
	"context"
	"errors"

	"billdesk/terminal/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate document")
)

type ListFilter struct {
	Variant domain.Variant
	Limit   int
}

// Journal keeps confirmed documents on the terminal so receipts can be
// reprinted by number without asking the billing server.
type Journal interface {
	SaveDocument(ctx context.Context, doc domain.ConfirmedDocument) error
	FindDocument(ctx context.Context, variant domain.Variant, number string) (*domain.ConfirmedDocument, error)
	ListDocuments(ctx context.Context, filter ListFilter) ([]domain.ConfirmedDocument, error)
}

const DefaultListLimit = 50

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > 500 {
		return 500
	}
	return limit
}
