package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/quote"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pt(y int, m time.Month, d int, price float64) domain.PricePoint {
	return domain.PricePoint{Date: day(y, m, d), Price: price}
}

func seriesOf(points ...domain.PricePoint) domain.AssetSeries {
	return domain.AssetSeries{Asset: "GOLD", Points: points}
}

func TestMerge_AppendsNewDate(t *testing.T) {
	hist := seriesOf(pt(2024, 1, 1, 10), pt(2024, 1, 2, 11))

	got, err := Merge(hist, pt(2024, 1, 3, 12))
	require.NoError(t, err)

	assert.Equal(t, []domain.PricePoint{pt(2024, 1, 1, 10), pt(2024, 1, 2, 11), pt(2024, 1, 3, 12)}, got.Points)
	assert.Len(t, hist.Points, 2, "input must not be mutated")
}

func TestMerge_HistoryWinsOnSameDate(t *testing.T) {
	hist := seriesOf(pt(2024, 1, 1, 10), pt(2024, 1, 2, 11))

	got, err := Merge(hist, pt(2024, 1, 2, 99))
	require.NoError(t, err)
	assert.Equal(t, hist.Points, got.Points)
}

func TestMerge_SortsOutOfOrderLive(t *testing.T) {
	hist := seriesOf(pt(2024, 1, 1, 10), pt(2024, 1, 5, 11))

	got, err := Merge(hist, pt(2024, 1, 3, 12))
	require.NoError(t, err)
	assert.Equal(t, []domain.PricePoint{pt(2024, 1, 1, 10), pt(2024, 1, 3, 12), pt(2024, 1, 5, 11)}, got.Points)
}

func TestMerge_Idempotent(t *testing.T) {
	hist := seriesOf(pt(2024, 1, 1, 10), pt(2024, 1, 2, 11))
	live := pt(2024, 1, 3, 12)

	once, err := Merge(hist, live)
	require.NoError(t, err)
	twice, err := Merge(once, live)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestMerge_Totality(t *testing.T) {
	hist := seriesOf(pt(2024, 1, 1, 10), pt(2024, 1, 2, 11))
	live := pt(2024, 1, 3, 12)

	got, err := Merge(hist, live)
	require.NoError(t, err)
	for _, p := range hist.Points {
		assert.True(t, got.Contains(p.Date))
	}
	assert.True(t, got.Contains(live.Date))
	assert.Equal(t, 3, got.Len())
}

func TestMerge_EmptyInputs(t *testing.T) {
	_, err := Merge(domain.AssetSeries{Asset: "GOLD"}, domain.PricePoint{})
	assert.ErrorIs(t, err, domain.ErrEmptySeries)

	got, err := Merge(domain.AssetSeries{Asset: "GOLD"}, pt(2024, 1, 3, 12))
	require.NoError(t, err)
	assert.Equal(t, []domain.PricePoint{pt(2024, 1, 3, 12)}, got.Points)
}

func TestMergeQuote_UnavailableKeepsHistory(t *testing.T) {
	hist := seriesOf(pt(2024, 1, 1, 10))

	got, err := MergeQuote(hist, quote.Unavailable(errors.New("down")))
	require.NoError(t, err)
	assert.Equal(t, hist.Points, got.Points)

	got, err = MergeQuote(hist, quote.Available(pt(2024, 1, 2, 11)))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestClean_SortsAndNormalizes(t *testing.T) {
	in := seriesOf(
		domain.PricePoint{Date: time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC), Price: 12},
		pt(2024, 1, 1, 10),
		pt(2024, 1, 2, 11),
	)

	got, err := Clean(in)
	require.NoError(t, err)
	assert.Equal(t, []domain.PricePoint{pt(2024, 1, 1, 10), pt(2024, 1, 2, 11), pt(2024, 1, 3, 12)}, got.Points)
	assert.Equal(t, 15, in.Points[0].Date.Hour(), "input must not be mutated")
}

func TestClean_Deterministic(t *testing.T) {
	in := seriesOf(pt(2024, 1, 2, 11), pt(2024, 1, 1, 10))

	once, err := Clean(in)
	require.NoError(t, err)
	twice, err := Clean(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestClean_DuplicateDate(t *testing.T) {
	in := seriesOf(pt(2024, 1, 1, 10), pt(2024, 1, 2, 11), pt(2024, 1, 1, 12))

	_, err := Clean(in)
	require.ErrorIs(t, err, domain.ErrDuplicateDate)
	assert.Contains(t, err.Error(), "2024-01-01")
}

func TestClean_InvalidPrice(t *testing.T) {
	_, err := Clean(seriesOf(pt(2024, 1, 1, 10), pt(2024, 1, 2, 0)))
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestClean_Empty(t *testing.T) {
	got, err := Clean(domain.AssetSeries{Asset: "GOLD"})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestFallback_NextDay(t *testing.T) {
	got, err := Fallback(seriesOf(pt(2024, 1, 4, 90), pt(2024, 1, 5, 100)), 1)
	require.NoError(t, err)
	assert.Equal(t, pt(2024, 1, 6, 100), got)
}

func TestFallback_Weekly(t *testing.T) {
	got, err := Fallback(seriesOf(pt(2024, 1, 5, 100)), 7)
	require.NoError(t, err)
	assert.Equal(t, pt(2024, 1, 12, 100), got)
}

func TestFallback_Empty(t *testing.T) {
	_, err := Fallback(domain.AssetSeries{Asset: "GOLD"}, 1)
	assert.ErrorIs(t, err, domain.ErrEmptySeries)
}

func TestFallback_Stale(t *testing.T) {
	// Source order puts 2024-01-05 last while 2024-01-06 is already present.
	hist := seriesOf(pt(2024, 1, 6, 101), pt(2024, 1, 5, 100))

	_, err := Fallback(hist, 1)
	require.ErrorIs(t, err, domain.ErrStaleFallback)
	assert.Contains(t, err.Error(), "2024-01-06")
}

type stubSource struct {
	res  quote.Result
	wait bool
}

func (s stubSource) Fetch(ctx context.Context, _ domain.AssetConfig) quote.Result {
	if s.wait {
		<-ctx.Done()
		return quote.Unavailable(ctx.Err())
	}
	return s.res
}

var gold = domain.AssetConfig{ID: "GOLD", HistoricalKey: "GOLD", LiveKey: "micro_gold"}

func TestResolveTodayPrice_Live(t *testing.T) {
	src := stubSource{res: quote.Available(pt(2024, 1, 3, 12))}

	got, err := ResolveTodayPrice(context.Background(), gold, src, seriesOf(pt(2024, 1, 2, 11)), 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, OriginLive, got.Origin)
	assert.Equal(t, pt(2024, 1, 3, 12), got.Point)
	assert.NoError(t, got.Reason)
}

func TestResolveTodayPrice_FallbackOnUnavailable(t *testing.T) {
	src := stubSource{res: quote.Unavailable(errors.New("503"))}

	got, err := ResolveTodayPrice(context.Background(), gold, src, seriesOf(pt(2024, 1, 5, 100)), 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, OriginFallback, got.Origin)
	assert.Equal(t, pt(2024, 1, 6, 100), got.Point)
	assert.ErrorIs(t, got.Reason, domain.ErrTransport)
}

func TestResolveTodayPrice_TimeoutFallsBack(t *testing.T) {
	got, err := ResolveTodayPrice(context.Background(), gold, stubSource{wait: true},
		seriesOf(pt(2024, 1, 5, 100)), 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, OriginFallback, got.Origin)
}

func TestResolveTodayPrice_EmptyHistoryAndNoQuote(t *testing.T) {
	_, err := ResolveTodayPrice(context.Background(), gold, quote.DisabledSource{},
		domain.AssetSeries{Asset: "GOLD"}, 1, time.Second)
	assert.ErrorIs(t, err, domain.ErrEmptySeries)
}
