// Package server exposes the HTTP API: submission intake, leaderboard and
// book reads, cycle status, manual cycle triggering, and an SSE progress
// stream.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shelfrank/internal/config"
	"shelfrank/internal/cycle"
	"shelfrank/internal/logging"
	"shelfrank/internal/store"
)

type Server struct {
	cfg      config.Config
	logger   *logging.Logger
	runner   *cycle.Runner
	paths    store.Paths
	progress *Broadcaster
	limiters *limiterPool
	echo     *echo.Echo
}

func New(cfg config.Config, logger *logging.Logger, runner *cycle.Runner, progress *Broadcaster) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.WithComponent("server"),
		runner:   runner,
		paths:    runner.Paths(),
		progress: progress,
		limiters: newLimiterPool(cfg.Server.RatePerMin, cfg.Server.RateBurst),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				s.logger.Debugf("%s %s %d %dms", v.Method, v.URI, v.Status, v.Latency.Milliseconds())
			} else {
				s.logger.Warnf("%s %s %d %dms: %v", v.Method, v.URI, v.Status, v.Latency.Milliseconds(), v.Error)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))

	e.POST("/api/submissions", s.handleSubmit)
	e.GET("/api/leaderboard", s.handleLeaderboard)
	e.GET("/api/books/:id", s.handleBook)
	e.GET("/api/status", s.handleStatus)
	e.POST("/api/cycle", s.handleTriggerCycle)
	e.GET("/api/progress", s.handleProgress)
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo = e
	return s
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Infof("listening on %s", s.cfg.Server.ListenAddr)
	if err := s.echo.Start(s.cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
