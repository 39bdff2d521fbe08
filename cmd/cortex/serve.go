package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yaya56vv/cortex/internal/gateway"
	"github.com/yaya56vv/cortex/internal/kernel"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestration kernel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			sys, err := kernel.Build(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := sys.Start(ctx); err != nil {
				sys.Close(context.Background())
				return err
			}

			srv, err := gateway.NewServer(gateway.Config{
				Host:            cfg.Server.Host,
				Port:            cfg.Server.Port,
				Kernel:          sys.Kernel,
				Registry:        sys.Registry,
				Timeline:        sys.Timeline,
				DB:              sys.DB,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				MetricsEnabled:  cfg.Observability.Metrics.Enabled,
				Logger:          sys.Logger.Slog(),
				Metrics:         sys.Metrics,
			})
			if err != nil {
				sys.Close(context.Background())
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			var serveErr error
			select {
			case serveErr = <-errCh:
			case <-ctx.Done():
				serveErr = srv.Close(context.Background())
				<-errCh
			}

			if closeErr := sys.Close(context.Background()); serveErr == nil {
				serveErr = closeErr
			}
			return serveErr
		},
	}
}
