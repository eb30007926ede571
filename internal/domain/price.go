package domain

import (
	"math"
	"time"
)

// DateLayout is the calendar date format used in files, tables and JSON.
const DateLayout = "2006-01-02"

// PricePoint is a single daily price observation.
type PricePoint struct {
	Date  time.Time // calendar date, UTC midnight
	Price float64   // positive price
}

// IsZero reports whether the point carries no observation.
func (p PricePoint) IsZero() bool {
	return p.Date.IsZero() && p.Price == 0
}

// AssetSeries is an ordered price series for one asset.
// Strictly increasing by date once cleaned; gaps (weekends, holidays) are allowed.
type AssetSeries struct {
	Asset  string
	Points []PricePoint
}

// Len returns the number of points.
func (s AssetSeries) Len() int {
	return len(s.Points)
}

// Last returns the last point. ok is false for an empty series.
func (s AssetSeries) Last() (p PricePoint, ok bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Contains reports whether the series has a point on the given calendar date.
func (s AssetSeries) Contains(date time.Time) bool {
	d := DateOf(date)
	for _, p := range s.Points {
		if DateOf(p.Date).Equal(d) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the series.
func (s AssetSeries) Clone() AssetSeries {
	points := make([]PricePoint, len(s.Points))
	copy(points, s.Points)
	return AssetSeries{Asset: s.Asset, Points: points}
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date. Timestamps with a time part
// (RFC 3339 or "2006-01-02 15:04:05") are accepted and truncated.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02 15:04:05", "2006/01/02", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	_, err := time.Parse(DateLayout, s)
	return time.Time{}, err
}

// FormatDate formats a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ValidPrice reports whether p is a finite positive price.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
