package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/turtacn/fluoric/internal/app"
	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/fluoric/internal/interfaces/http/handlers"
)

// Server is the prediction API server.
type Server struct {
	srv    *http.Server
	rt     *app.Runtime
	logger logging.Logger
}

// NewServer wires handlers for rt. version is reported by /healthz.
func NewServer(rt *app.Runtime, version string) *Server {
	cfg := rt.Config.Server
	logger := rt.Logger.Named("http")

	checks := []handlers.HealthChecker{
		handlers.CheckFunc{Component: "models", Fn: rt.Models.LoadAll},
	}
	if rt.Cache != nil {
		checks = append(checks, handlers.CheckFunc{Component: "cache", Fn: rt.Cache.Ping})
	}
	health := handlers.NewHealthHandler(version, checks...)
	if rt.AppMetrics != nil {
		health.WithObserver(func(component string, healthy bool) {
			prometheus.SetHealth(rt.AppMetrics, component, healthy)
		})
	}

	predict := handlers.NewPredictionHandler(rt.Service, cfg.MaxRows, logger)
	if rt.AppMetrics != nil {
		predict.WithErrorObserver(func(code string) {
			prometheus.RecordError(rt.AppMetrics, "http", code)
		})
	}

	router := NewRouter(RouterConfig{
		PredictionHandler: predict,
		ModelHandler:      handlers.NewModelHandler(rt.Models),
		HealthHandler:     health,
		Logger:            logger,
		MetricsCollector:  rt.Collector,
		AppMetrics:        rt.AppMetrics,
	})

	return &Server{
		rt:     rt,
		logger: logger,
		srv: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler returns the route tree.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("HTTP server listening", logging.String("addr", l.Addr().String()))
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}

// Run listens on the configured address, serves until ctx is cancelled and
// then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(l) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.rt.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return <-errCh
}
