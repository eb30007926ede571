// Package series reconciles historical and live prices into one clean series.
// Every function is pure: inputs are never mutated and outputs are fresh slices.
package series

import (
	"sort"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/quote"
)

// Merge adds today's live point to the historical series.
// When the live date is already present the historical value wins.
// Returns domain.ErrEmptySeries if both inputs are empty.
func Merge(historical domain.AssetSeries, live domain.PricePoint) (domain.AssetSeries, error) {
	if historical.Len() == 0 && live.IsZero() {
		return domain.AssetSeries{}, domain.ErrEmptySeries
	}

	out := historical.Clone()
	if live.IsZero() || historical.Contains(live.Date) {
		return out, nil
	}

	out.Points = append(out.Points, domain.PricePoint{Date: domain.DateOf(live.Date), Price: live.Price})
	sort.SliceStable(out.Points, func(i, j int) bool {
		return out.Points[i].Date.Before(out.Points[j].Date)
	})
	return out, nil
}

// MergeQuote merges an available quote. An unavailable quote leaves the
// historical series unchanged.
func MergeQuote(historical domain.AssetSeries, res quote.Result) (domain.AssetSeries, error) {
	p, ok := res.Point()
	if !ok {
		p = domain.PricePoint{}
	}
	return Merge(historical, p)
}
