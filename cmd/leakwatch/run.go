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
)

var runConnectorsCmd = &cobra.Command{
	Use:   "run-connectors",
	Short: "Run every active connector once and report per-connector outcomes.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(func(ctx context.Context, a *app) (map[string]string, error) {
			return a.runner.RunConnectors(ctx)
		}, "connector run finished")
	},
}

var runAlertsCmd = &cobra.Command{
	Use:   "run-alerts",
	Short: "Evaluate every active alert rule once and report per-rule outcomes.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(func(ctx context.Context, a *app) (map[string]string, error) {
			return a.runner.RunAlerts(ctx)
		}, "alert run finished")
	},
}

func runOnce(run func(context.Context, *app) (map[string]string, error), doneMessage string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	a, err := buildApp(cfg, pool)
	if err != nil {
		return err
	}

	results, runErr := run(ctx, a)
	for id, outcome := range results {
		slog.Info("outcome", "id", id, "outcome", outcome)
	}
	if runErr == nil {
		slog.Info(doneMessage, "count", len(results))
		return nil
	}
	if errors.Is(runErr, context.Canceled) {
		return &exitError{code: 130, err: runErr, silent: true}
	}
	return &exitError{code: 1, err: runErr}
}
