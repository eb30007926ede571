package series

import (
	"fmt"
	"sort"

	"commodity-forecast/internal/domain"
)

// Clean normalizes dates to UTC midnight and sorts ascending.
// Points are never dropped, imputed or deduplicated: a repeated date yields
// domain.ErrDuplicateDate and a non-positive price yields domain.ErrInvalidPrice.
func Clean(s domain.AssetSeries) (domain.AssetSeries, error) {
	out := domain.AssetSeries{Asset: s.Asset, Points: make([]domain.PricePoint, len(s.Points))}
	for i, p := range s.Points {
		if !domain.ValidPrice(p.Price) {
			return domain.AssetSeries{}, fmt.Errorf("%w: %s on %s: %v",
				domain.ErrInvalidPrice, s.Asset, domain.FormatDate(p.Date), p.Price)
		}
		out.Points[i] = domain.PricePoint{Date: domain.DateOf(p.Date), Price: p.Price}
	}

	sort.SliceStable(out.Points, func(i, j int) bool {
		return out.Points[i].Date.Before(out.Points[j].Date)
	})

	for i := 1; i < len(out.Points); i++ {
		if out.Points[i].Date.Equal(out.Points[i-1].Date) {
			return domain.AssetSeries{}, fmt.Errorf("%w: %s on %s",
				domain.ErrDuplicateDate, s.Asset, domain.FormatDate(out.Points[i].Date))
		}
	}
	return out, nil
}
