package domain

import (
	"math"
	"time"
)

// ForecastRecord is the scored one-step-ahead prediction for an asset.
// Corresponds to forecast_results table. Key: (date, asset).
type ForecastRecord struct {
	Date           time.Time // calendar date of the realized price
	Asset          string    // asset identifier
	PredictedPrice float64   // forecaster output
	ActualPrice    float64   // realized price (last point of the cleaned series)
	Error          float64   // |actual - predicted|
	UpdatedAt      time.Time // last write time, set by stores
}

// NewForecastRecord builds a record and computes its absolute error.
func NewForecastRecord(date time.Time, asset string, predicted, actual float64) *ForecastRecord {
	return &ForecastRecord{
		Date:           DateOf(date),
		Asset:          asset,
		PredictedPrice: predicted,
		ActualPrice:    actual,
		Error:          math.Abs(actual - predicted),
	}
}

// Valid reports whether prices are finite and positive and error is non-negative.
func (r *ForecastRecord) Valid() bool {
	return r != nil &&
		r.Asset != "" &&
		!r.Date.IsZero() &&
		ValidPrice(r.PredictedPrice) &&
		ValidPrice(r.ActualPrice) &&
		r.Error >= 0 && !math.IsNaN(r.Error) && !math.IsInf(r.Error, 0)
}
