package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"billdesk/terminal/internal/domain"
)

func TestRedisCatalogCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCatalogCache(mr.Addr(), "", 0)
	defer c.Close()
	ctx := context.Background()

	_, ok, err := c.GetCatalog(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	products := []domain.Product{{ID: 1, Name: "Charger", SellingPrice: decimal.RequireFromString("499.00"), Stock: 3}}
	require.NoError(t, c.SetCatalog(ctx, products, time.Hour))

	got, ok, err := c.GetCatalog(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	require.True(t, got[0].SellingPrice.Equal(decimal.RequireFromString("499")))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.GetCatalog(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCatalogCacheKeyNamespace(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCatalogCache(mr.Addr(), "", 0).WithKey("counter-2:catalog")
	defer c.Close()

	require.NoError(t, c.SetCatalog(context.Background(), []domain.Product{{ID: 2}}, 0))
	require.True(t, mr.Exists("counter-2:catalog"))
	require.False(t, mr.Exists(DefaultCatalogKey))
}

func TestRedisCatalogCacheCorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set(DefaultCatalogKey, "not json"))
	c := NewRedisCatalogCache(mr.Addr(), "", 0)
	defer c.Close()

	_, ok, err := c.GetCatalog(context.Background())
	require.Error(t, err)
	require.False(t, ok)
}
