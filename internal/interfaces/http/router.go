package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/fluoric/internal/interfaces/http/handlers"
	"github.com/turtacn/fluoric/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	PredictionHandler *handlers.PredictionHandler
	ModelHandler      *handlers.ModelHandler
	HealthHandler     *handlers.HealthHandler

	Logger           logging.Logger
	LoggingConfig    *middleware.LoggingConfig
	MetricsCollector prometheus.MetricsCollector
	AppMetrics       *prometheus.AppMetrics
}

// NewRouter constructs the HTTP route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.Logger != nil {
		lc := middleware.DefaultLoggingConfig()
		if cfg.LoggingConfig != nil {
			lc = *cfg.LoggingConfig
		}
		r.Use(middleware.RequestLogging(cfg.Logger, lc))
	}
	if cfg.AppMetrics != nil {
		r.Use(middleware.Metrics(cfg.AppMetrics))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.PredictionHandler != nil {
			api.Post("/predict/{property}", cfg.PredictionHandler.Predict)
		}
		if cfg.ModelHandler != nil {
			api.Get("/models", cfg.ModelHandler.List)
		}
	})

	return r
}
