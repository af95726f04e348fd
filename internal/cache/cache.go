package cache

import (
	"context"
	"time"

	"billdesk/terminal/internal/domain"
)

// CatalogCache keeps the last good product list so the terminal can still sell
// (on stale stock figures) when the billing server is unreachable.
type CatalogCache interface {
	GetCatalog(ctx context.Context) ([]domain.Product, bool, error)
	SetCatalog(ctx context.Context, products []domain.Product, ttl time.Duration) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) GetCatalog(_ context.Context) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) SetCatalog(_ context.Context, _ []domain.Product, _ time.Duration) error {
	return nil
}
