package domain

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy.
var (
	// ErrTransport marks a failed live quote fetch. Recovered via fallback.
	ErrTransport = errors.New("live quote unavailable")

	// ErrEmptySeries is returned when there is nothing to merge or model.
	ErrEmptySeries = errors.New("empty series")

	// ErrDuplicateDate is returned when a series holds two points for one date.
	ErrDuplicateDate = errors.New("duplicate date in series")

	// ErrInvalidPrice is returned for a non-positive or non-finite price.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrStaleFallback is returned when the synthesized fallback date already exists.
	ErrStaleFallback = errors.New("fallback date collides with history")

	// ErrForecast is returned when the forecaster produces no finite positive prediction.
	ErrForecast = errors.New("forecast failed")

	// ErrPersistence is returned when the result store rejects a write.
	ErrPersistence = errors.New("persistence failed")

	// ErrConfiguration is returned for missing or invalid startup configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownAsset is returned for an asset id absent from the registry.
	ErrUnknownAsset = errors.New("unknown asset")
)

// PersistenceError carries the record that failed to persist so it can be replayed.
type PersistenceError struct {
	Record ForecastRecord
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s/%s (predicted=%g actual=%g error=%g): %v",
		e.Record.Asset, FormatDate(e.Record.Date),
		e.Record.PredictedPrice, e.Record.ActualPrice, e.Record.Error, e.Err)
}

// Unwrap returns the underlying store error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// ConfigError describes an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}
