// Package api serves forecast results, history and error summaries over
// HTTP, plus a websocket feed of pipeline runs.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/metrics"
	"commodity-forecast/internal/observability"
	"commodity-forecast/internal/orchestrator"
	"commodity-forecast/internal/scheduler"
	"commodity-forecast/internal/storage"
)

// RunProvider exposes the most recent pipeline result.
type RunProvider interface {
	LastRun() *orchestrator.RunResult
}

// JobLister exposes scheduled job state.
type JobLister interface {
	Status() []scheduler.JobStatus
}

// Options configures the API server.
type Options struct {
	Registry  *domain.Registry
	Forecasts storage.ForecastStore
	History   storage.HistoryStore
	Runs      RunProvider // optional
	Jobs      JobLister   // optional
	Hub       *Hub        // optional, enables /ws
	Logger    *logger.Logger
	Now       func() time.Time
}

// Server is the read-only HTTP API.
type Server struct {
	echo       *echo.Echo
	opts       Options
	aggregator *metrics.Aggregator
	log        *logger.Logger
	startedAt  time.Time
}

// NewServer builds the echo instance and registers routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("api: registry is required")
	}
	if opts.Forecasts == nil || opts.History == nil {
		return nil, errors.New("api: forecast and history stores are required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(requestLogging(opts.Logger))

	s := &Server{
		echo:       e,
		opts:       opts,
		aggregator: metrics.NewAggregator(opts.Forecasts),
		log:        opts.Logger,
		startedAt:  opts.Now(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/status", s.status)
	s.echo.GET("/metrics", echo.WrapHandler(observability.Handler()))

	g := s.echo.Group("/api/v1")
	g.GET("/assets", s.assets)
	g.GET("/forecasts", s.forecasts)
	g.GET("/history/:asset", s.history)
	g.GET("/errors", s.errorSummaries)

	if s.opts.Hub != nil {
		s.echo.GET("/ws", s.opts.Hub.ServeWS)
	}
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr in the background.
func (s *Server) Start(addr string) {
	go func() {
		s.log.Info("http server listening", logger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", logger.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server and closes websocket clients.
func (s *Server) Stop(ctx context.Context) error {
	if s.opts.Hub != nil {
		s.opts.Hub.Close()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func requestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			log.Debug("http request",
				logger.String("method", c.Request().Method),
				logger.String("uri", c.Request().RequestURI),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}
