package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultRetries    = 2
	DefaultRetryWait  = 500 * time.Millisecond
	DefaultRatePerSec = 1.0
)

// HTTPSource fetches quotes from a commodity price API.
// Request: GET {baseURL}?name={live_key} with header X-Api-Key.
// Response: JSON object with "updated" (epoch seconds) and "price".
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *resty.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// Option configures HTTPSource.
type Option func(*HTTPSource)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSource) {
		s.client.SetTimeout(d)
	}
}

// WithRetries sets retry attempts for network errors, 429 and 5xx responses.
func WithRetries(n int) Option {
	return func(s *HTTPSource) {
		s.client.SetRetryCount(n)
	}
}

// WithRateLimit limits outgoing requests.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *HTTPSource) {
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *HTTPSource) {
		s.log = l
	}
}

// NewHTTPSource creates a quote source for the given endpoint.
func NewHTTPSource(baseURL, apiKey string, opts ...Option) *HTTPSource {
	client := resty.New().
		SetTimeout(DefaultTimeout).
		SetRetryCount(DefaultRetries).
		SetRetryWaitTime(DefaultRetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	s := &HTTPSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// quotePayload is the provider response body.
type quotePayload struct {
	Exchange string   `json:"exchange"`
	Name     string   `json:"name"`
	Price    *float64 `json:"price"`
	Updated  *int64   `json:"updated"`
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, asset domain.AssetConfig) Result {
	start := time.Now()
	res := s.fetch(ctx, asset)
	observability.RecordQuoteFetch(asset.ID, res.IsAvailable(), time.Since(start).Seconds())

	if !res.IsAvailable() {
		s.log.Warn("live quote unavailable",
			logger.String("asset", asset.ID),
			logger.String("symbol", asset.LiveKey),
			logger.Error(res.Reason()))
	}
	return res
}

func (s *HTTPSource) fetch(ctx context.Context, asset domain.AssetConfig) Result {
	if err := s.limiter.Wait(ctx); err != nil {
		return Unavailable(fmt.Errorf("rate limiter: %w", err))
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", s.apiKey).
		SetHeader("Accept", "application/json").
		SetQueryParam("name", asset.LiveKey).
		Get(s.baseURL)
	if err != nil {
		return Unavailable(fmt.Errorf("request %s: %w", asset.LiveKey, err))
	}

	if resp.StatusCode() != http.StatusOK {
		return Unavailable(fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), truncate(resp.String(), 200)))
	}

	var payload quotePayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return Unavailable(fmt.Errorf("decode response: %w", err))
	}
	if payload.Price == nil || payload.Updated == nil {
		return Unavailable(fmt.Errorf("response missing price or updated"))
	}
	if !domain.ValidPrice(*payload.Price) {
		return Unavailable(fmt.Errorf("invalid price %v", *payload.Price))
	}
	if *payload.Updated <= 0 {
		return Unavailable(fmt.Errorf("invalid updated timestamp %d", *payload.Updated))
	}

	return Available(domain.PricePoint{
		Date:  domain.DateOf(time.Unix(*payload.Updated, 0)),
		Price: *payload.Price,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
