package domain

import "time"

// SourceTag records where a history row came from.
type SourceTag string

const (
	SourceHistoricalCSV     SourceTag = "historical_csv"
	SourceValidatedForecast SourceTag = "validated_forecast"
	SourceLive              SourceTag = "live"
)

// String returns the string representation of SourceTag.
func (s SourceTag) String() string {
	return string(s)
}

// IsValid checks if the tag is a known value.
func (s SourceTag) IsValid() bool {
	return s == SourceHistoricalCSV || s == SourceValidatedForecast || s == SourceLive
}

// HistoryRow is one persisted historical price.
// Corresponds to price_history table. Key: (date, asset).
type HistoryRow struct {
	Date      time.Time // calendar date
	Asset     string    // asset identifier
	Price     float64   // price on that date
	Source    SourceTag // historical_csv | validated_forecast | live
	CreatedAt time.Time // record creation time, set by stores
}

// Point returns the row as a PricePoint.
func (r *HistoryRow) Point() PricePoint {
	return PricePoint{Date: DateOf(r.Date), Price: r.Price}
}
