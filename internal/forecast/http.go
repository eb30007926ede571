package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/logger"
)

// HTTPForecaster delegates prediction to an external model service.
//
// Request:  POST {url} {"asset": "...", "horizon": 1, "points": [{"date": "2024-01-02", "price": 11.2}]}
// Response: {"predicted_price": 11.4}
type HTTPForecaster struct {
	url     string
	horizon int
	client  *resty.Client
	log     *logger.Logger
}

// NewHTTPForecaster creates a forecaster calling url.
func NewHTTPForecaster(url string, horizon int, timeout time.Duration, log *logger.Logger) *HTTPForecaster {
	if log == nil {
		log = logger.Nop()
	}
	if horizon < 1 {
		horizon = 1
	}
	return &HTTPForecaster{
		url:     url,
		horizon: horizon,
		client:  resty.New().SetTimeout(timeout),
		log:     log,
	}
}

type predictPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

type predictRequest struct {
	Asset   string         `json:"asset"`
	Horizon int            `json:"horizon"`
	Points  []predictPoint `json:"points"`
}

type predictResponse struct {
	PredictedPrice *float64 `json:"predicted_price"`
}

// Name implements Forecaster.
func (f *HTTPForecaster) Name() string { return ModelHTTP }

// Predict implements Forecaster.
func (f *HTTPForecaster) Predict(ctx context.Context, s domain.AssetSeries) (float64, error) {
	if err := checkInput(f.Name(), s); err != nil {
		return 0, err
	}

	req := predictRequest{Asset: s.Asset, Horizon: f.horizon, Points: make([]predictPoint, len(s.Points))}
	for i, p := range s.Points {
		req.Points[i] = predictPoint{Date: domain.FormatDate(p.Date), Price: p.Price}
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(f.url)
	if err != nil {
		return 0, fmt.Errorf("%w: request model: %v", domain.ErrForecast, err)
	}
	if resp.StatusCode() != http.StatusOK {
		f.log.Warn("model service rejected request",
			logger.String("asset", s.Asset),
			logger.Int("status", resp.StatusCode()))
		return 0, fmt.Errorf("%w: model returned status %d", domain.ErrForecast, resp.StatusCode())
	}

	var out predictResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return 0, fmt.Errorf("%w: decode model response: %v", domain.ErrForecast, err)
	}
	if out.PredictedPrice == nil {
		return 0, fmt.Errorf("%w: model response missing predicted_price", domain.ErrForecast)
	}
	return checkOutput(f.Name(), *out.PredictedPrice)
}
