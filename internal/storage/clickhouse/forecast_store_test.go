package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

func TestForecastStore_UpsertReplaces(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewForecastStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.NewForecastRecord(day(3), "GOLD", 10, 12)))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Upsert(ctx, domain.NewForecastRecord(day(3), "GOLD", 11, 12)))

	all, err := store.GetByAsset(ctx, "GOLD")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 11.0, all[0].PredictedPrice)
	assert.InDelta(t, 1.0, all[0].Error, 1e-9)
	assert.Equal(t, day(3), all[0].Date)

	got, err := store.Get(ctx, "GOLD", day(3))
	require.NoError(t, err)
	assert.Equal(t, 11.0, got.PredictedPrice)
}

func TestForecastStore_GetNotFound(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewForecastStore(conn).Get(context.Background(), "GOLD", day(3))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestForecastStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewForecastStore(conn).Upsert(context.Background(), domain.NewForecastRecord(day(3), "GOLD", -1, 12))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestForecastStore_GetAfterAndRecent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewForecastStore(conn)
	ctx := context.Background()

	for _, d := range []int{1, 2, 3, 4} {
		require.NoError(t, store.Upsert(ctx, domain.NewForecastRecord(day(d), "GOLD", 10, 10)))
	}
	require.NoError(t, store.Upsert(ctx, domain.NewForecastRecord(day(5), "SILVER", 10, 10)))

	after, err := store.GetAfter(ctx, "GOLD", day(2))
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, day(3), after[0].Date)
	assert.Equal(t, day(4), after[1].Date)

	recent, err := store.GetRecent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "SILVER", recent[0].Asset)
	assert.Equal(t, day(4), recent[1].Date)
}
