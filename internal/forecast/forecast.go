// Package forecast provides one-step-ahead price forecasters.
package forecast

import (
	"context"
	"fmt"

	"commodity-forecast/internal/config"
	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/logger"
)

// Model names accepted by New.
const (
	ModelLastValue     = "last_value"
	ModelMovingAverage = "moving_average"
	ModelHTTP          = "http"
)

// Forecaster predicts the next price of a cleaned, non-empty series.
// Every failure matches domain.ErrForecast.
type Forecaster interface {
	Name() string
	Predict(ctx context.Context, s domain.AssetSeries) (float64, error)
}

// New builds the forecaster selected by cfg.Name.
func New(cfg config.ForecasterConfig, horizon int, log *logger.Logger) (Forecaster, error) {
	switch cfg.Name {
	case ModelLastValue, "":
		return LastValue{}, nil
	case ModelMovingAverage:
		return NewMovingAverage(cfg.Window)
	case ModelHTTP:
		if cfg.URL == "" {
			return nil, &domain.ConfigError{Field: "forecaster.url", Reason: "required for http forecaster"}
		}
		return NewHTTPForecaster(cfg.URL, horizon, cfg.Timeout, log), nil
	default:
		return nil, &domain.ConfigError{Field: "forecaster.name", Reason: fmt.Sprintf("unknown model %q", cfg.Name)}
	}
}

// checkOutput validates a model prediction.
func checkOutput(name string, v float64) (float64, error) {
	if !domain.ValidPrice(v) {
		return 0, fmt.Errorf("%w: %s produced %v", domain.ErrForecast, name, v)
	}
	return v, nil
}

func checkInput(name string, s domain.AssetSeries) error {
	if s.Len() == 0 {
		return fmt.Errorf("%w: %s: %s: %v", domain.ErrForecast, name, s.Asset, domain.ErrEmptySeries)
	}
	return nil
}
