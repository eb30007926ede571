package series

import (
	"context"
	"fmt"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/quote"
)

// Origin tells where today's price came from.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
)

// Resolution is today's price together with its origin.
type Resolution struct {
	Point  domain.PricePoint
	Origin Origin
	// Reason is the unavailability reason when Origin is OriginFallback.
	Reason error
}

// Fallback synthesizes today's point from the last historical point in
// source order: same price, date advanced by stepDays.
// Returns domain.ErrEmptySeries for an empty history and domain.ErrStaleFallback
// if the synthesized date already exists.
func Fallback(history domain.AssetSeries, stepDays int) (domain.PricePoint, error) {
	last, ok := history.Last()
	if !ok {
		return domain.PricePoint{}, fmt.Errorf("fallback for %s: %w", history.Asset, domain.ErrEmptySeries)
	}
	if stepDays < 1 {
		stepDays = 1
	}

	next := domain.PricePoint{
		Date:  domain.DateOf(last.Date).AddDate(0, 0, stepDays),
		Price: last.Price,
	}
	if history.Contains(next.Date) {
		return domain.PricePoint{}, fmt.Errorf("%w: %s on %s",
			domain.ErrStaleFallback, history.Asset, domain.FormatDate(next.Date))
	}
	return next, nil
}

// ResolveTodayPrice fetches the live quote within timeout and falls back to
// the last historical price when it is unavailable.
func ResolveTodayPrice(
	ctx context.Context,
	asset domain.AssetConfig,
	src quote.Source,
	history domain.AssetSeries,
	stepDays int,
	timeout time.Duration,
) (Resolution, error) {
	fetchCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res := src.Fetch(fetchCtx, asset)
	if p, ok := res.Point(); ok {
		return Resolution{Point: p, Origin: OriginLive}, nil
	}

	p, err := Fallback(history, stepDays)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Point: p, Origin: OriginFallback, Reason: res.Reason()}, nil
}
