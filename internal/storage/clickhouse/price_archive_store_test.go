package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
)

func TestPriceArchiveStore_ArchiveAndGetSince(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceArchiveStore(conn)
	ctx := context.Background()

	// Empty batch is a no-op
	require.NoError(t, store.Archive(ctx, nil))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	points := []*domain.PricePoint{
		{Timestamp: base, Price: decimal.RequireFromString("150.123456789012"), Source: domain.PriceSourceJupiter},
		{Timestamp: base.Add(time.Minute), Price: decimal.RequireFromString("151.50"), Source: domain.PriceSourceJupiter},
		{Timestamp: base.Add(2 * time.Minute), Price: decimal.RequireFromString("149.75"), Source: domain.PriceSourceJupiter},
	}
	require.NoError(t, store.Archive(ctx, points))

	got, err := store.GetSince(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Ordered ASC, full decimal precision preserved
	assert.True(t, got[0].Timestamp.Equal(base), "unexpected first timestamp %s", got[0].Timestamp)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("150.123456789012")), "unexpected first price %s", got[0].Price)
	assert.Equal(t, domain.PriceSourceJupiter, got[0].Source)
	assert.True(t, got[2].Timestamp.Equal(base.Add(2*time.Minute)), "unexpected last timestamp %s", got[2].Timestamp)

	// The since boundary is inclusive
	got, err = store.GetSince(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("151.50")), "unexpected boundary price %s", got[0].Price)

	// Nothing after the newest point
	got, err = store.GetSince(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPriceArchiveStore_DuplicateCollapse(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceArchiveStore(conn)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	point := []*domain.PricePoint{
		{Timestamp: at, Price: decimal.RequireFromString("150.00"), Source: domain.PriceSourceJupiter},
	}

	require.NoError(t, store.Archive(ctx, point))
	// Re-archiving the same observation must not duplicate it: the
	// ReplacingMergeTree collapses rows sharing (observed_at, source).
	require.NoError(t, store.Archive(ctx, point))

	got, err := store.GetSince(ctx, at.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("150.00")), "unexpected price %s", got[0].Price)
}
