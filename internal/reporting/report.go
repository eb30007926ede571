// Package reporting builds the forecast dashboard and renders it to files.
package reporting

import (
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/metrics"
)

// Default window sizes.
const (
	DefaultTail        = 5
	DefaultErrorWindow = 10
)

// Dashboard is the read-only view over stored forecast results.
type Dashboard struct {
	GeneratedAt time.Time

	// Results are the latest stored records, date ASC then asset ASC.
	Results []*domain.ForecastRecord

	// ErrorWindow is the number of most recent records per asset used for Summaries.
	ErrorWindow int
	Summaries   []*metrics.ErrorSummary

	// ErrorHistory holds the last ErrorWindow records across all assets, date ASC.
	ErrorHistory []*domain.ForecastRecord
}

// Empty reports whether no results are stored yet.
func (d *Dashboard) Empty() bool {
	return len(d.Results) == 0 && len(d.ErrorHistory) == 0
}
