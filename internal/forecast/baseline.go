package forecast

import (
	"context"
	"fmt"

	"commodity-forecast/internal/domain"
)

// LastValue predicts that the next price equals the last observed price.
type LastValue struct{}

// Name implements Forecaster.
func (LastValue) Name() string { return ModelLastValue }

// Predict implements Forecaster.
func (f LastValue) Predict(_ context.Context, s domain.AssetSeries) (float64, error) {
	if err := checkInput(f.Name(), s); err != nil {
		return 0, err
	}
	last, _ := s.Last()
	return checkOutput(f.Name(), last.Price)
}

// MovingAverage predicts the mean of the last Window prices.
// Shorter series use every point.
type MovingAverage struct {
	window int
}

// NewMovingAverage creates a moving average forecaster.
func NewMovingAverage(window int) (*MovingAverage, error) {
	if window < 1 {
		return nil, &domain.ConfigError{Field: "forecaster.window", Reason: fmt.Sprintf("must be >= 1, got %d", window)}
	}
	return &MovingAverage{window: window}, nil
}

// Name implements Forecaster.
func (f *MovingAverage) Name() string { return ModelMovingAverage }

// Predict implements Forecaster.
func (f *MovingAverage) Predict(_ context.Context, s domain.AssetSeries) (float64, error) {
	if err := checkInput(f.Name(), s); err != nil {
		return 0, err
	}

	points := s.Points
	if len(points) > f.window {
		points = points[len(points)-f.window:]
	}

	sum := 0.0
	for _, p := range points {
		sum += p.Price
	}
	return checkOutput(f.Name(), sum/float64(len(points)))
}
