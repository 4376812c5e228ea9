package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/leakwatch/leakwatch/internal/config"
	httpapp "github.com/leakwatch/leakwatch/internal/http"
	"github.com/leakwatch/leakwatch/internal/http/handlers"
	"github.com/leakwatch/leakwatch/internal/metrics"
	"github.com/leakwatch/leakwatch/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background pipeline.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
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

	scheduler := pipeline.Scheduler{
		Runner:            a.runner,
		ConnectorInterval: cfg.ConnectorInterval,
		AlertInterval:     cfg.AlertInterval,
	}
	go scheduler.Run(ctx)

	metrics.StartListener(ctx, cfg.MetricsAddr)

	srv, err := httpapp.NewEchoServer(cfg, &handlers.Handlers{
		Cfg:          cfg,
		Store:        a.store,
		Runner:       a.runner,
		Dispatcher:   a.dispatcher,
		Connectors:   a.connectors,
		Integrations: a.integrations,
		Cipher:       a.cipher,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.HTTPAddr)
		errCh <- srv.Start(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
