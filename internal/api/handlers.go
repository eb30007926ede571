package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/metrics"
	"commodity-forecast/internal/scheduler"
)

type forecastsRequest struct {
	Asset string `query:"asset"`
	Limit int    `query:"limit" default:"50" validate:"min=1,max=1000"`
}

type historyRequest struct {
	Asset string `param:"asset" validate:"required"`
	From  string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To    string `query:"to" validate:"omitempty,datetime=2006-01-02"`
}

type errorsRequest struct {
	Asset string `query:"asset"`
	LastN int    `query:"last_n" default:"10" validate:"min=1,max=10000"`
}

func (s *Server) health(c echo.Context) error {
	return ok(c, map[string]string{"status": "ok"})
}

func (s *Server) status(c echo.Context) error {
	now := s.opts.Now()
	resp := statusDTO{
		Status:    "ok",
		StartedAt: s.startedAt,
		Uptime:    now.Sub(s.startedAt).Truncate(time.Second).String(),
		Assets:    s.opts.Registry.Len(),
		Jobs:      []scheduler.JobStatus{},
	}
	if s.opts.Runs != nil {
		resp.LastRun = NewRunSummary(s.opts.Runs.LastRun())
	}
	if s.opts.Jobs != nil {
		resp.Jobs = s.opts.Jobs.Status()
	}
	if s.opts.Hub != nil {
		resp.Clients = s.opts.Hub.Clients()
	}
	return ok(c, resp)
}

func (s *Server) assets(c echo.Context) error {
	assets := s.opts.Registry.Assets()
	out := make([]assetDTO, 0, len(assets))
	for _, a := range assets {
		out = append(out, assetDTO{ID: a.ID, HistoricalKey: a.HistoricalKey, LiveKey: a.LiveKey})
	}
	return ok(c, out)
}

func (s *Server) forecasts(c echo.Context) error {
	req := &forecastsRequest{}
	if errs := bindRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	if req.Asset != "" {
		if _, err := s.opts.Registry.Lookup(req.Asset); err != nil {
			return notFound(c, err.Error())
		}
	}

	records, err := s.opts.Forecasts.GetRecent(c.Request().Context(), req.Asset, req.Limit)
	if err != nil {
		s.log.Error("load forecasts failed", logger.String("asset", req.Asset), logger.Error(err))
		return internalError(c)
	}
	return ok(c, newForecastDTOs(records))
}

func (s *Server) history(c echo.Context) error {
	req := &historyRequest{}
	if errs := bindRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	if _, err := s.opts.Registry.Lookup(req.Asset); err != nil {
		return notFound(c, err.Error())
	}

	ctx := c.Request().Context()
	var (
		rows []*domain.HistoryRow
		err  error
	)
	if req.From == "" && req.To == "" {
		rows, err = s.opts.History.GetByAsset(ctx, req.Asset)
	} else {
		// Validation guarantees the layout.
		from, to := time.Time{}, s.opts.Now()
		if req.From != "" {
			from, _ = domain.ParseDate(req.From)
		}
		if req.To != "" {
			to, _ = domain.ParseDate(req.To)
		}
		if to.Before(from) {
			return badRequest(c, []FieldError{{Code: "ERR_RANGE", Field: "To", Message: "to must not be before from"}})
		}
		rows, err = s.opts.History.GetRange(ctx, req.Asset, from, to)
	}
	if err != nil {
		s.log.Error("load history failed", logger.String("asset", req.Asset), logger.Error(err))
		return internalError(c)
	}
	return ok(c, newHistoryDTOs(rows))
}

func (s *Server) errorSummaries(c echo.Context) error {
	req := &errorsRequest{}
	if errs := bindRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	ctx := c.Request().Context()

	if req.Asset != "" {
		if _, err := s.opts.Registry.Lookup(req.Asset); err != nil {
			return notFound(c, err.Error())
		}
		summary, err := s.aggregator.Summarize(ctx, req.Asset, req.LastN)
		if errors.Is(err, metrics.ErrNoRecords) {
			return ok(c, []summaryDTO{})
		}
		if err != nil {
			s.log.Error("summarize failed", logger.String("asset", req.Asset), logger.Error(err))
			return internalError(c)
		}
		return ok(c, []summaryDTO{newSummaryDTO(summary)})
	}

	summaries, err := s.aggregator.SummarizeAll(ctx, s.opts.Registry.IDs(), req.LastN)
	if err != nil {
		s.log.Error("summarize failed", logger.Error(err))
		return internalError(c)
	}
	out := make([]summaryDTO, 0, len(summaries))
	for _, sm := range summaries {
		out = append(out, newSummaryDTO(sm))
	}
	return ok(c, out)
}
