// Package server exposes remedyd's HTTP surface: signal ingest, health, and
// Prometheus metrics, on an Echo router with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/remediation"
	"github.com/fyrsmithlabs/remedyd/internal/signal"
)

// Config holds server settings.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Server is the HTTP server.
type Server struct {
	cfg    Config
	svc    *remediation.Service
	echo   *echo.Echo
	logger *logging.Logger
}

// HealthResponse is the JSON response for /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// IngestResponse is the JSON response for POST /v1/signals.
type IngestResponse struct {
	Accepted   bool   `json:"accepted"`
	Suppressed bool   `json:"suppressed"`
	UnitKey    string `json:"unit_key,omitempty"`
}

// NewServer creates the HTTP server over the remediation service.
func NewServer(cfg Config, svc *remediation.Service, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{cfg: cfg, svc: svc, echo: e, logger: logger}
	s.registerRoutes()
	return s
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/v1/signals", s.handleSignal)
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: "remedyd"})
}

// handleSignal handles POST /v1/signals: validate, normalize, and run the
// signal through the remediation pipeline.
func (s *Server) handleSignal(c echo.Context) error {
	var sig signal.Signal
	if err := c.Bind(&sig); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed signal payload")
	}

	sig.Normalize(time.Now())
	if err := sig.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := logging.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))

	unit, err := s.svc.HandleSignal(ctx, &sig)
	if err != nil {
		s.logger.Error(ctx, "signal handling failed",
			zap.String("key", sig.Key()),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process signal")
	}

	resp := IngestResponse{Accepted: true, Suppressed: unit == nil}
	if unit != nil {
		resp.UnitKey = unit.Key
	}
	return c.JSON(http.StatusAccepted, resp)
}

// Start runs the server and blocks until the context is canceled, then
// shuts down gracefully within the configured timeout. Returns
// http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for registering extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
