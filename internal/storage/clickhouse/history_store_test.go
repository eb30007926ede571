package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

func historyRow(d int, price float64) *domain.HistoryRow {
	return &domain.HistoryRow{Date: day(d), Asset: "GOLD", Price: price, Source: domain.SourceHistoricalCSV}
}

func TestHistoryStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewHistoryStore(conn)
	ctx := context.Background()

	assert.NoError(t, store.InsertBulk(ctx, nil))

	_, ok, err := store.LastDate(ctx, "GOLD")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.InsertBulk(ctx, []*domain.HistoryRow{historyRow(2, 11), historyRow(1, 10), historyRow(4, 13)}))

	got, err := store.GetByAsset(ctx, "GOLD")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, day(1), got[0].Date)
	assert.Equal(t, domain.SourceHistoricalCSV, got[0].Source)

	last, ok, err := store.LastDate(ctx, "GOLD")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(4), last)

	ranged, err := store.GetRange(ctx, "GOLD", day(2), day(3))
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 11.0, ranged[0].Price)
}

func TestHistoryStore_InsertBulk_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewHistoryStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.HistoryRow{historyRow(1, 10)}))

	err := store.InsertBulk(ctx, []*domain.HistoryRow{historyRow(2, 11), historyRow(1, 10)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.HistoryRow{historyRow(3, 11), historyRow(3, 12)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByAsset(ctx, "GOLD")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
