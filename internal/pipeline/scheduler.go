package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler periodically invokes the connector and alert runs on independent
// intervals. It runs both immediately at startup, then ticks until the
// context is canceled.
type Scheduler struct {
	Runner            *Runner
	ConnectorInterval time.Duration
	AlertInterval     time.Duration
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.Runner == nil || s.ConnectorInterval <= 0 || s.AlertInterval <= 0 {
		return
	}

	s.runConnectors(ctx)
	s.runAlerts(ctx)

	connectorTicker := time.NewTicker(s.ConnectorInterval)
	defer connectorTicker.Stop()
	alertTicker := time.NewTicker(s.AlertInterval)
	defer alertTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-connectorTicker.C:
			s.runConnectors(ctx)
		case <-alertTicker.C:
			s.runAlerts(ctx)
		}
	}
}

func (s *Scheduler) runConnectors(ctx context.Context) {
	results, err := s.Runner.RunConnectors(ctx)
	if err != nil {
		slog.Error("scheduled connector run failed", "err", err)
		return
	}
	slog.Info("scheduled connector run finished", "connectors", len(results))
}

func (s *Scheduler) runAlerts(ctx context.Context) {
	results, err := s.Runner.RunAlerts(ctx)
	if err != nil {
		slog.Error("scheduled alert run failed", "err", err)
		return
	}
	slog.Info("scheduled alert run finished", "rules", len(results))
}
