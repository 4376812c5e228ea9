package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/leakwatch/leakwatch/internal/config"
	"github.com/leakwatch/leakwatch/internal/metrics"
	"github.com/leakwatch/leakwatch/internal/pipeline"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background connector and alert loops without the API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.ConnectorInterval <= 0 || cfg.AlertInterval <= 0 {
		return errors.New("CONNECTOR_INTERVAL and ALERT_INTERVAL must be > 0 to run the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	a, err := buildApp(cfg, pool)
	if err != nil {
		return err
	}

	metrics.StartListener(ctx, cfg.MetricsAddr)

	slog.Info("worker started", "connector_interval", cfg.ConnectorInterval, "alert_interval", cfg.AlertInterval)
	scheduler := pipeline.Scheduler{
		Runner:            a.runner,
		ConnectorInterval: cfg.ConnectorInterval,
		AlertInterval:     cfg.AlertInterval,
	}
	scheduler.Run(ctx)
	return nil
}
