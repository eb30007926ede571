package storage

import (
	"errors"
	"fmt"

	"commodity-forecast/internal/domain"
)

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a history row whose
	// (date, asset) already exists. History is append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateForecast checks the ForecastStore write precondition.
func ValidateForecast(r *domain.ForecastRecord) error {
	if !r.Valid() {
		if r == nil {
			return fmt.Errorf("%w: nil forecast record", ErrInvalidInput)
		}
		return fmt.Errorf("%w: forecast %s/%s predicted=%v actual=%v error=%v",
			ErrInvalidInput, r.Asset, domain.FormatDate(r.Date), r.PredictedPrice, r.ActualPrice, r.Error)
	}
	return nil
}

// ValidateHistoryRow checks a history row before insert.
func ValidateHistoryRow(r *domain.HistoryRow) error {
	if r == nil || r.Asset == "" || r.Date.IsZero() {
		return fmt.Errorf("%w: history row missing asset or date", ErrInvalidInput)
	}
	if !domain.ValidPrice(r.Price) {
		return fmt.Errorf("%w: history %s/%s price=%v", ErrInvalidInput, r.Asset, domain.FormatDate(r.Date), r.Price)
	}
	if !r.Source.IsValid() {
		return fmt.Errorf("%w: history source %q", ErrInvalidInput, r.Source)
	}
	return nil
}
