// Package quote fetches live prices. A fetch never fails with an error:
// ordinary unavailability is reported through the Unavailable variant of Result.
package quote

import (
	"context"
	"errors"
	"fmt"

	"commodity-forecast/internal/domain"
)

// Source supplies today's price for an asset.
type Source interface {
	// Fetch requests the latest quote for asset.LiveKey.
	// Transport failures, bad status codes, malformed payloads and timeouts
	// all yield an Unavailable result.
	Fetch(ctx context.Context, asset domain.AssetConfig) Result
}

// Result is either an available quote or an unavailability reason.
type Result struct {
	point     domain.PricePoint
	reason    error
	available bool
}

// Available wraps a fetched point.
func Available(p domain.PricePoint) Result {
	return Result{point: p, available: true}
}

// Unavailable wraps the reason a quote could not be obtained.
// The reason always matches domain.ErrTransport.
func Unavailable(reason error) Result {
	if reason == nil {
		reason = domain.ErrTransport
	} else if !errors.Is(reason, domain.ErrTransport) {
		reason = fmt.Errorf("%w: %v", domain.ErrTransport, reason)
	}
	return Result{reason: reason}
}

// Point returns the quote and true, or a zero point and false when unavailable.
func (r Result) Point() (domain.PricePoint, bool) {
	return r.point, r.available
}

// IsAvailable reports whether the result holds a quote.
func (r Result) IsAvailable() bool {
	return r.available
}

// Reason returns why the quote is unavailable, or nil.
func (r Result) Reason() error {
	return r.reason
}

// DisabledSource never returns a quote; every run takes the fallback path.
type DisabledSource struct{}

// Fetch always returns Unavailable.
func (DisabledSource) Fetch(_ context.Context, asset domain.AssetConfig) Result {
	return Unavailable(fmt.Errorf("live quotes disabled for %s", asset.ID))
}

// StaticSource returns fixed quotes keyed by live key. Keys without a quote
// are unavailable.
type StaticSource map[string]domain.PricePoint

// Fetch returns the configured quote for asset.LiveKey.
func (s StaticSource) Fetch(_ context.Context, asset domain.AssetConfig) Result {
	p, ok := s[asset.LiveKey]
	if !ok {
		return Unavailable(fmt.Errorf("no quote for %s", asset.LiveKey))
	}
	return Available(p)
}
