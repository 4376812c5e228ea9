// Package pipeline orchestrates the ingestion-dedup-alert runs invoked by
// the external scheduler: load active connectors, fetch, dedupe-store, and
// separately load active rules, select recent findings, dispatch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leakwatch/leakwatch/internal/connectors"
	"github.com/leakwatch/leakwatch/internal/metrics"
	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/secrets"
)

// Outcome strings recorded per connector/rule in a run's result map.
const (
	OutcomeError      = "error"
	OutcomeNoFindings = "no_findings"
)

// recentFindingsLimit bounds how many findings a single alert dispatch
// summarizes.
const recentFindingsLimit = 50

// Store is the persistence surface the pipeline needs. The pgx-backed store
// implements it; tests use fakes.
type Store interface {
	ListActiveConnectors(ctx context.Context) ([]model.Connector, error)
	ListTargets(ctx context.Context, orgID string) ([]model.Target, error)
	SetConnectorStatus(ctx context.Context, id, status string) error
	InsertFindings(ctx context.Context, findings []model.Finding) (int, error)
	ListActiveAlertRules(ctx context.Context) ([]model.AlertRule, error)
	RecentFindings(ctx context.Context, orgID string, limit int) ([]model.Finding, error)
}

// Dispatcher delivers an alert for a rule. Implemented by the alerts package.
type Dispatcher interface {
	Dispatch(ctx context.Context, rule model.AlertRule, findings []model.Finding) error
	DispatchTest(ctx context.Context, rule model.AlertRule) error
}

// Runner executes connector and alert runs with per-item failure isolation:
// one broken connector or rule is recorded and skipped, never aborting the
// rest of the run.
type Runner struct {
	store      Store
	registry   *connectors.Registry
	cipher     *secrets.Cipher
	dispatcher Dispatcher
}

// NewRunner wires the pipeline dependencies.
func NewRunner(store Store, registry *connectors.Registry, cipher *secrets.Cipher, dispatcher Dispatcher) *Runner {
	return &Runner{store: store, registry: registry, cipher: cipher, dispatcher: dispatcher}
}

// RunConnectors executes every active connector once and returns an outcome
// per connector ID ("stored:<n>" or "error"). Each connector's status is also
// recorded on the connector itself. Safe to invoke repeatedly: already-stored
// findings dedupe away.
func (r *Runner) RunConnectors(ctx context.Context) (map[string]string, error) {
	conns, err := r.store.ListActiveConnectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active connectors: %w", err)
	}

	results := make(map[string]string, len(conns))
	for _, conn := range conns {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		start := time.Now()
		stored, runErr := r.runConnector(ctx, conn)
		metrics.ConnectorRunDuration.WithLabelValues(conn.Kind).Observe(time.Since(start).Seconds())

		status := fmt.Sprintf("stored:%d", stored)
		if runErr != nil {
			status = OutcomeError
			slog.Error("connector run failed", "connector_id", conn.ID, "kind", conn.Kind, "org_id", conn.OrgID, "err", runErr)
			metrics.ConnectorRunsTotal.WithLabelValues(conn.Kind, "failure").Inc()
		} else {
			slog.Info("connector run complete", "connector_id", conn.ID, "kind", conn.Kind, "org_id", conn.OrgID, "stored", stored)
			metrics.ConnectorRunsTotal.WithLabelValues(conn.Kind, "success").Inc()
		}
		results[conn.ID] = status

		if err := r.store.SetConnectorStatus(ctx, conn.ID, status); err != nil {
			slog.Error("record connector status failed", "connector_id", conn.ID, "err", err)
		}
	}
	return results, nil
}

// runConnector fetches and stores candidates for one connector.
func (r *Runner) runConnector(ctx context.Context, conn model.Connector) (int, error) {
	source, err := r.registry.Lookup(conn.Kind)
	if err != nil {
		return 0, err
	}
	targets, err := r.store.ListTargets(ctx, conn.OrgID)
	if err != nil {
		return 0, fmt.Errorf("list targets: %w", err)
	}

	findings, err := source.Fetch(ctx, connectors.FetchInput{
		OrgID:   conn.OrgID,
		Targets: targets,
		Config:  conn.Config,
		Secrets: r.cipher.DecryptMap(conn.Secrets),
	})
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	stored, err := r.store.InsertFindings(ctx, findings)
	if err != nil {
		return 0, fmt.Errorf("store findings: %w", err)
	}
	metrics.FindingsStoredTotal.WithLabelValues(conn.Kind).Add(float64(stored))
	metrics.FindingsDedupedTotal.WithLabelValues(conn.Kind).Add(float64(len(findings) - stored))
	return stored, nil
}

// TestConnector runs a single connector's fetch-and-store on demand, exactly
// like a scheduled run. Exposed to the API layer.
func (r *Runner) TestConnector(ctx context.Context, conn model.Connector) (int, error) {
	return r.runConnector(ctx, conn)
}

// RunAlerts executes every active alert rule once and returns an outcome per
// rule ID ("sent:<n>", "no_findings", or "error"). Each rule's most recent
// findings (bounded) are dispatched; rules with nothing to report are
// skipped.
func (r *Runner) RunAlerts(ctx context.Context) (map[string]string, error) {
	rules, err := r.store.ListActiveAlertRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active alert rules: %w", err)
	}

	results := make(map[string]string, len(rules))
	for _, rule := range rules {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		outcome, runErr := r.runAlert(ctx, rule)
		if runErr != nil {
			outcome = OutcomeError
			slog.Error("alert run failed", "rule_id", rule.ID, "org_id", rule.OrgID, "err", runErr)
			metrics.AlertRunsTotal.WithLabelValues("failure").Inc()
		} else {
			slog.Info("alert run complete", "rule_id", rule.ID, "org_id", rule.OrgID, "outcome", outcome)
			metrics.AlertRunsTotal.WithLabelValues("success").Inc()
		}
		results[rule.ID] = outcome
	}
	return results, nil
}

func (r *Runner) runAlert(ctx context.Context, rule model.AlertRule) (string, error) {
	findings, err := r.store.RecentFindings(ctx, rule.OrgID, recentFindingsLimit)
	if err != nil {
		return "", fmt.Errorf("recent findings: %w", err)
	}
	if len(findings) == 0 {
		return OutcomeNoFindings, nil
	}
	if err := r.dispatcher.Dispatch(ctx, rule, findings); err != nil {
		return "", fmt.Errorf("dispatch: %w", err)
	}
	return fmt.Sprintf("sent:%d", len(findings)), nil
}
