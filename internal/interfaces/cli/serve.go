package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/prometheus"
	httpapi "github.com/turtacn/fluoric/internal/interfaces/http"
)

type serveOptions struct {
	host    string
	port    int
	preload bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().BoolVar(&opts.preload, "preload", true, "load every model before accepting requests")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if opts.host != "" {
		cliCtx.Config.Server.Host = opts.host
	}
	if opts.port != 0 {
		cliCtx.Config.Server.Port = opts.port
	}

	rt, err := cliCtx.Runtime()
	if err != nil {
		return err
	}
	if rt.AppMetrics != nil {
		prometheus.SetBuildInfo(rt.AppMetrics, Version, GitCommit)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.preload {
		if err := rt.Ready(ctx); err != nil {
			return err
		}
	}
	return httpapi.NewServer(rt, Version).Run(ctx)
}
