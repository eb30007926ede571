package api

import (
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/metrics"
	"commodity-forecast/internal/orchestrator"
	"commodity-forecast/internal/scheduler"
)

type assetDTO struct {
	ID            string `json:"id"`
	HistoricalKey string `json:"historical_key"`
	LiveKey       string `json:"live_key"`
}

type forecastDTO struct {
	Date           string    `json:"date"`
	Asset          string    `json:"asset"`
	PredictedPrice float64   `json:"predicted_price"`
	ActualPrice    float64   `json:"actual_price"`
	Error          float64   `json:"error"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newForecastDTOs(records []*domain.ForecastRecord) []forecastDTO {
	out := make([]forecastDTO, 0, len(records))
	for _, r := range records {
		out = append(out, forecastDTO{
			Date:           domain.FormatDate(r.Date),
			Asset:          r.Asset,
			PredictedPrice: r.PredictedPrice,
			ActualPrice:    r.ActualPrice,
			Error:          r.Error,
			UpdatedAt:      r.UpdatedAt,
		})
	}
	return out
}

type historyDTO struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}

func newHistoryDTOs(rows []*domain.HistoryRow) []historyDTO {
	out := make([]historyDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, historyDTO{Date: domain.FormatDate(r.Date), Price: r.Price, Source: r.Source.String()})
	}
	return out
}

type summaryDTO struct {
	Asset     string  `json:"asset"`
	Count     int     `json:"count"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	MAPE      float64 `json:"mape"`
	Bias      float64 `json:"bias"`
	MaxError  float64 `json:"max_error"`
	MinError  float64 `json:"min_error"`
	P50Error  float64 `json:"p50_error"`
	P90Error  float64 `json:"p90_error"`
	LastError float64 `json:"last_error"`
}

func newSummaryDTO(s *metrics.ErrorSummary) summaryDTO {
	return summaryDTO{
		Asset:     s.Asset,
		Count:     s.Count,
		From:      domain.FormatDate(s.From),
		To:        domain.FormatDate(s.To),
		MAE:       s.MAE,
		RMSE:      s.RMSE,
		MAPE:      s.MAPE,
		Bias:      s.Bias,
		MaxError:  s.MaxError,
		MinError:  s.MinError,
		P50Error:  s.P50Error,
		P90Error:  s.P90Error,
		LastError: s.LastError,
	}
}

type outcomeDTO struct {
	Asset      string  `json:"asset"`
	State      string  `json:"state"`
	Origin     string  `json:"origin,omitempty"`
	Error      string  `json:"error,omitempty"`
	Predicted  float64 `json:"predicted_price,omitempty"`
	Actual     float64 `json:"actual_price,omitempty"`
	DurationMS int64   `json:"duration_ms"`
}

// RunSummary is the JSON form of a pipeline run.
type RunSummary struct {
	RunID      string       `json:"run_id"`
	Model      string       `json:"model,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Outcomes   []outcomeDTO `json:"outcomes"`
}

// NewRunSummary converts a run result. Returns nil for a nil result.
func NewRunSummary(r *orchestrator.RunResult) *RunSummary {
	if r == nil {
		return nil
	}
	s := &RunSummary{
		RunID:      r.RunID,
		Model:      r.Model,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
		Succeeded:  len(r.Succeeded()),
		Failed:     len(r.Failed()),
		Outcomes:   make([]outcomeDTO, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		dto := outcomeDTO{
			Asset:      o.Asset,
			State:      string(o.State),
			Origin:     string(o.Origin),
			DurationMS: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			dto.Error = o.Err.Error()
		}
		if o.Record != nil {
			dto.Predicted = o.Record.PredictedPrice
			dto.Actual = o.Record.ActualPrice
		}
		s.Outcomes = append(s.Outcomes, dto)
	}
	return s
}

type statusDTO struct {
	Status    string                `json:"status"`
	StartedAt time.Time             `json:"started_at"`
	Uptime    string                `json:"uptime"`
	Assets    int                   `json:"assets"`
	LastRun   *RunSummary           `json:"last_run"`
	Jobs      []scheduler.JobStatus `json:"jobs"`
	Clients   int                   `json:"ws_clients"`
}
