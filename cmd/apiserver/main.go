// Command apiserver serves the fluoric prediction API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/fluoric/internal/app"
	"github.com/turtacn/fluoric/internal/config"
	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/fluoric/internal/interfaces/http"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file (default: FLUORIC_* environment only)")
	port := flag.Int("port", 0, "HTTP port (overrides server.port)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, level, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return err
	}
	logger.Info("starting fluoric API server",
		logging.String("version", version),
		logging.String("addr", cfg.Server.Addr()))

	// Only the log level is reloaded; everything else needs a restart.
	if *configPath != "" {
		err := config.Watch(*configPath, func(next *config.Config) {
			if err := level.UnmarshalText([]byte(next.Log.Level)); err != nil {
				logger.Warn("ignoring invalid log level", logging.String("level", next.Log.Level))
				return
			}
			logger.Info("log level changed", logging.String("level", next.Log.Level))
		}, func(err error) {
			logger.Warn("config reload failed", logging.Err(err))
		})
		if err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	rt, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build runtime", logging.Err(err))
		return err
	}
	defer rt.Close()
	if rt.AppMetrics != nil {
		prometheus.SetBuildInfo(rt.AppMetrics, version, commit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Ready(ctx); err != nil {
		logger.Error("models failed to load", logging.Err(err))
		return err
	}
	if err := httpserver.NewServer(rt, version).Run(ctx); err != nil {
		logger.Error("HTTP server error", logging.Err(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
