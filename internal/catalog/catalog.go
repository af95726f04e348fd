// Package catalog holds the terminal's read-only product snapshot used for
// search and advisory stock checks.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"billdesk/terminal/internal/cache"
	"billdesk/terminal/internal/domain"
)

// MaxSuggestions bounds the search result list.
const MaxSuggestions = 6

type Source string

const (
	SourceServer   Source = "server"
	SourcePrevious Source = "previous"
	SourceCache    Source = "cache"
	SourceEmpty    Source = "empty"
)

// Snapshot is an immutable product list captured at one fetch.
type Snapshot struct {
	products  []domain.Product
	byID      map[int64]int
	fetchedAt time.Time
	source    Source
}

func NewSnapshot(products []domain.Product, fetchedAt time.Time, source Source) *Snapshot {
	s := &Snapshot{
		products:  append([]domain.Product(nil), products...),
		byID:      make(map[int64]int, len(products)),
		fetchedAt: fetchedAt,
		source:    source,
	}
	for i, p := range s.products {
		if _, dup := s.byID[p.ID]; !dup {
			s.byID[p.ID] = i
		}
	}
	return s
}

// Search returns up to MaxSuggestions products whose name contains term,
// case-insensitively, in catalog order.
func (s *Snapshot) Search(term string) []domain.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || s == nil {
		return nil
	}
	out := make([]domain.Product, 0, MaxSuggestions)
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), term) {
			out = append(out, p)
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

func (s *Snapshot) Lookup(id int64) (domain.Product, error) {
	if s != nil {
		if idx, ok := s.byID[id]; ok {
			return s.products[idx], nil
		}
	}
	return domain.Product{}, domain.Detail(domain.ErrProductNotFound, "product %d not found", id)
}

func (s *Snapshot) Products() []domain.Product {
	if s == nil {
		return nil
	}
	return append([]domain.Product(nil), s.products...)
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.products)
}

func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }
func (s *Snapshot) Source() Source       { return s.source }

// Stale reports whether the snapshot did not come from the latest fetch.
func (s *Snapshot) Stale() bool {
	return s.source != SourceServer
}

// Loader fetches the full product list from the billing server.
type Loader interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Catalog owns the current snapshot. Loads never fail: on error the previous
// snapshot, then the cached copy, then an empty list is used, and a notice
// explains the degradation.
type Catalog struct {
	loader   Loader
	cache    cache.CatalogCache
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time

	current atomic.Pointer[Snapshot]
}

type Options struct {
	Cache    cache.CatalogCache
	CacheTTL time.Duration
	Logger   *slog.Logger
}

func New(loader Loader, opts Options) *Catalog {
	if opts.Cache == nil {
		opts.Cache = cache.NoopCatalogCache{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Catalog{
		loader:   loader,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
		now:      time.Now,
	}
	c.current.Store(NewSnapshot(nil, time.Time{}, SourceEmpty))
	return c
}

// Current returns the active snapshot without fetching.
func (c *Catalog) Current() *Snapshot {
	return c.current.Load()
}

// Load fetches once; later calls return the current snapshot.
func (c *Catalog) Load(ctx context.Context) (*Snapshot, *domain.Notice) {
	if snap := c.current.Load(); snap.Source() != SourceEmpty {
		return snap, nil
	}
	return c.Refresh(ctx)
}

// Refresh always re-fetches from the server.
func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, *domain.Notice) {
	products, err := c.loader.ListProducts(ctx)
	if err == nil {
		snap := NewSnapshot(products, c.now(), SourceServer)
		c.current.Store(snap)
		if cacheErr := c.cache.SetCatalog(ctx, products, c.cacheTTL); cacheErr != nil {
			c.logger.Warn("catalog cache write failed", "error", cacheErr)
		}
		return snap, nil
	}

	c.logger.Warn("catalog fetch failed", "error", err, "kind", domain.KindOf(err))
	reason := domain.UserMessage(err)

	if prev := c.current.Load(); prev.Len() > 0 {
		stale := NewSnapshot(prev.products, prev.fetchedAt, SourcePrevious)
		c.current.Store(stale)
		return stale, warn("Could not refresh products (%s); showing the list loaded at %s.", reason, prev.fetchedAt.Format("15:04"))
	}

	cached, ok, cacheErr := c.cache.GetCatalog(ctx)
	if cacheErr != nil {
		c.logger.Warn("catalog cache read failed", "error", cacheErr)
	}
	if ok && len(cached) > 0 {
		snap := NewSnapshot(cached, c.now(), SourceCache)
		c.current.Store(snap)
		return snap, warn("Could not load products (%s); using a cached list, stock may be out of date.", reason)
	}

	empty := NewSnapshot(nil, c.now(), SourceEmpty)
	c.current.Store(empty)
	return empty, warn("Could not load products (%s).", reason)
}

func warn(format string, args ...any) *domain.Notice {
	return &domain.Notice{Level: domain.NoticeWarning, Message: fmt.Sprintf(format, args...)}
}

// LowStockNotice warns when a product is nearly sold out.
func LowStockNotice(p domain.Product) *domain.Notice {
	if p.Stock > 0 && p.Stock < domain.LowStockThreshold {
		return &domain.Notice{Level: domain.NoticeWarning, Message: fmt.Sprintf("Low stock: only %d %s left", p.Stock, p.Name)}
	}
	return nil
}
