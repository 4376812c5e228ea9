// Package store is the Postgres persistence layer for all tenant entities.
// Queries are org-scoped except the pipeline reads, which span organizations
// by design. Each write commits on its own so one failed item never rolls
// back unrelated work.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leakwatch/leakwatch/internal/model"
)

// ErrNotFound is returned when an org-scoped lookup matches nothing.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Targets ---

func (s *Store) CreateTarget(ctx context.Context, t model.Target) (model.Target, error) {
	t.ID = uuid.NewString()
	metadata, err := encodeJSON(t.Metadata)
	if err != nil {
		return model.Target{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO targets (id, org_id, target_type, value, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		t.ID, t.OrgID, t.Type, t.Value, metadata)
	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return model.Target{}, fmt.Errorf("create target: %w", err)
	}
	return t, nil
}

func (s *Store) GetTarget(ctx context.Context, orgID, id string) (model.Target, error) {
	var t model.Target
	var metadata []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, target_type, value, metadata, created_at, updated_at
		FROM targets WHERE id = $1 AND org_id = $2`, id, orgID).
		Scan(&t.ID, &t.OrgID, &t.Type, &t.Value, &metadata, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Target{}, ErrNotFound
		}
		return model.Target{}, fmt.Errorf("get target: %w", err)
	}
	if t.Metadata, err = decodeJSONMap(metadata); err != nil {
		return model.Target{}, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *Store) ListTargets(ctx context.Context, orgID string) ([]model.Target, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, target_type, value, metadata, created_at, updated_at
		FROM targets WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		var t model.Target
		var metadata []byte
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Type, &t.Value, &metadata, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		if t.Metadata, err = decodeJSONMap(metadata); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *Store) UpdateTarget(ctx context.Context, t model.Target) (model.Target, error) {
	metadata, err := encodeJSON(t.Metadata)
	if err != nil {
		return model.Target{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE targets
		SET target_type = $3, value = $4, metadata = $5, updated_at = now()
		WHERE id = $1 AND org_id = $2
		RETURNING created_at, updated_at`,
		t.ID, t.OrgID, t.Type, t.Value, metadata)
	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Target{}, ErrNotFound
		}
		return model.Target{}, fmt.Errorf("update target: %w", err)
	}
	return t, nil
}

func (s *Store) DeleteTarget(ctx context.Context, orgID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Connectors ---

func (s *Store) CreateConnector(ctx context.Context, c model.Connector) (model.Connector, error) {
	c.ID = uuid.NewString()
	c.LastRunStatus = "never"
	config, err := encodeJSON(c.Config)
	if err != nil {
		return model.Connector{}, err
	}
	encryptedSecrets, err := encodeJSON(c.Secrets)
	if err != nil {
		return model.Connector{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO connectors (id, org_id, name, connector_type, config, secrets, is_active, last_run_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		c.ID, c.OrgID, c.Name, c.Kind, config, encryptedSecrets, c.Active, c.LastRunStatus)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return model.Connector{}, fmt.Errorf("create connector: %w", err)
	}
	return c, nil
}

const connectorColumns = `id, org_id, name, connector_type, config, secrets, is_active, last_run_status, created_at, updated_at`

func (s *Store) GetConnector(ctx context.Context, orgID, id string) (model.Connector, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+connectorColumns+` FROM connectors WHERE id = $1 AND org_id = $2`, id, orgID)
	c, err := scanConnector(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Connector{}, ErrNotFound
	}
	return c, err
}

func (s *Store) ListConnectors(ctx context.Context, orgID string) ([]model.Connector, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+connectorColumns+` FROM connectors WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	defer rows.Close()
	return collectConnectors(rows)
}

// ListActiveConnectors returns the active connectors of every organization;
// the pipeline iterates them in one run.
func (s *Store) ListActiveConnectors(ctx context.Context) ([]model.Connector, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+connectorColumns+` FROM connectors WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active connectors: %w", err)
	}
	defer rows.Close()
	return collectConnectors(rows)
}

func (s *Store) UpdateConnector(ctx context.Context, c model.Connector) (model.Connector, error) {
	config, err := encodeJSON(c.Config)
	if err != nil {
		return model.Connector{}, err
	}
	encryptedSecrets, err := encodeJSON(c.Secrets)
	if err != nil {
		return model.Connector{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE connectors
		SET name = $3, connector_type = $4, config = $5, secrets = $6, is_active = $7, updated_at = now()
		WHERE id = $1 AND org_id = $2
		RETURNING last_run_status, created_at, updated_at`,
		c.ID, c.OrgID, c.Name, c.Kind, config, encryptedSecrets, c.Active)
	if err := row.Scan(&c.LastRunStatus, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Connector{}, ErrNotFound
		}
		return model.Connector{}, fmt.Errorf("update connector: %w", err)
	}
	return c, nil
}

func (s *Store) DeleteConnector(ctx context.Context, orgID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM connectors WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete connector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetConnectorStatus(ctx context.Context, id, status string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE connectors SET last_run_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set connector status: %w", err)
	}
	return nil
}

// --- Findings ---

// InsertFindings persists candidates one by one, skipping any whose dedupe
// hash already exists anywhere in the store. The unique index on dedupe_hash
// makes the check-then-insert atomic; a conflict means "already seen", not an
// error. Returns how many candidates were actually stored.
func (s *Store) InsertFindings(ctx context.Context, findings []model.Finding) (int, error) {
	stored := 0
	for _, f := range findings {
		exposure, err := encodeStringArray(f.ExposureTypes)
		if err != nil {
			return stored, err
		}
		metadata, err := encodeJSON(f.Metadata)
		if err != nil {
			return stored, err
		}
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO findings (id, org_id, source, confidence, matched_entity, exposure_types, raw_snippet, severity, dedupe_hash, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (dedupe_hash) DO NOTHING`,
			uuid.NewString(), f.OrgID, f.Source, f.Confidence, f.MatchedEntity, exposure, f.RawSnippet, f.Severity, f.DedupeHash, metadata)
		if err != nil {
			return stored, fmt.Errorf("insert finding: %w", err)
		}
		stored += int(tag.RowsAffected())
	}
	return stored, nil
}

const findingColumns = `id, org_id, source, confidence, matched_entity, exposure_types, raw_snippet, severity, dedupe_hash, metadata, created_at`

// FindingFilter narrows a findings listing. Zero fields match everything.
type FindingFilter struct {
	Severity     string
	Source       string
	ExposureType string
	Limit        int
}

func (s *Store) ListFindings(ctx context.Context, orgID string, filter FindingFilter) ([]model.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE org_id = $1`
	args := []any{orgID}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if filter.ExposureType != "" {
		args = append(args, filter.ExposureType)
		query += fmt.Sprintf(" AND exposure_types ? $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()
	return collectFindings(rows)
}

func (s *Store) GetFinding(ctx context.Context, orgID, id string) (model.Finding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+findingColumns+` FROM findings WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return model.Finding{}, fmt.Errorf("get finding: %w", err)
	}
	defer rows.Close()

	findings, err := collectFindings(rows)
	if err != nil {
		return model.Finding{}, err
	}
	if len(findings) == 0 {
		return model.Finding{}, ErrNotFound
	}
	return findings[0], nil
}

// RecentFindings returns the organization's newest findings, newest first.
func (s *Store) RecentFindings(ctx context.Context, orgID string, limit int) ([]model.Finding, error) {
	return s.ListFindings(ctx, orgID, FindingFilter{Limit: limit})
}

// --- Alert rules ---

func (s *Store) CreateAlertRule(ctx context.Context, r model.AlertRule) (model.AlertRule, error) {
	r.ID = uuid.NewString()
	recipients, err := encodeJSON(r.Recipients)
	if err != nil {
		return model.AlertRule{}, err
	}
	filters, err := encodeJSON(r.Filters)
	if err != nil {
		return model.AlertRule{}, err
	}
	policy, err := encodeJSON(r.RedactionPolicy)
	if err != nil {
		return model.AlertRule{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO alert_rules (id, org_id, name, is_active, recipients, filters, redaction_policy, schedule)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		r.ID, r.OrgID, r.Name, r.Active, recipients, filters, policy, r.Schedule)
	if err := row.Scan(&r.CreatedAt, &r.UpdatedAt); err != nil {
		return model.AlertRule{}, fmt.Errorf("create alert rule: %w", err)
	}
	return r, nil
}

const alertRuleColumns = `id, org_id, name, is_active, recipients, filters, redaction_policy, schedule, created_at, updated_at`

func (s *Store) GetAlertRule(ctx context.Context, orgID, id string) (model.AlertRule, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+alertRuleColumns+` FROM alert_rules WHERE id = $1 AND org_id = $2`, id, orgID)
	r, err := scanAlertRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AlertRule{}, ErrNotFound
	}
	return r, err
}

func (s *Store) ListAlertRules(ctx context.Context, orgID string) ([]model.AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertRuleColumns+` FROM alert_rules WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	defer rows.Close()
	return collectAlertRules(rows)
}

func (s *Store) ListActiveAlertRules(ctx context.Context) ([]model.AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertRuleColumns+` FROM alert_rules WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active alert rules: %w", err)
	}
	defer rows.Close()
	return collectAlertRules(rows)
}

func (s *Store) UpdateAlertRule(ctx context.Context, r model.AlertRule) (model.AlertRule, error) {
	recipients, err := encodeJSON(r.Recipients)
	if err != nil {
		return model.AlertRule{}, err
	}
	filters, err := encodeJSON(r.Filters)
	if err != nil {
		return model.AlertRule{}, err
	}
	policy, err := encodeJSON(r.RedactionPolicy)
	if err != nil {
		return model.AlertRule{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE alert_rules
		SET name = $3, is_active = $4, recipients = $5, filters = $6, redaction_policy = $7, schedule = $8, updated_at = now()
		WHERE id = $1 AND org_id = $2
		RETURNING created_at, updated_at`,
		r.ID, r.OrgID, r.Name, r.Active, recipients, filters, policy, r.Schedule)
	if err := row.Scan(&r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AlertRule{}, ErrNotFound
		}
		return model.AlertRule{}, fmt.Errorf("update alert rule: %w", err)
	}
	return r, nil
}

func (s *Store) DeleteAlertRule(ctx context.Context, orgID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete alert rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Integrations ---

func (s *Store) CreateIntegration(ctx context.Context, i model.Integration) (model.Integration, error) {
	i.ID = uuid.NewString()
	i.LastTestStatus = "never"
	config, err := encodeJSON(i.Config)
	if err != nil {
		return model.Integration{}, err
	}
	encryptedSecrets, err := encodeJSON(i.Secrets)
	if err != nil {
		return model.Integration{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO integrations (id, org_id, name, integration_type, config, secrets, is_active, last_test_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		i.ID, i.OrgID, i.Name, i.Kind, config, encryptedSecrets, i.Active, i.LastTestStatus)
	if err := row.Scan(&i.CreatedAt, &i.UpdatedAt); err != nil {
		return model.Integration{}, fmt.Errorf("create integration: %w", err)
	}
	return i, nil
}

const integrationColumns = `id, org_id, name, integration_type, config, secrets, is_active, last_test_status, created_at, updated_at`

func (s *Store) GetIntegration(ctx context.Context, orgID, id string) (model.Integration, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE id = $1 AND org_id = $2`, id, orgID)
	i, err := scanIntegration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Integration{}, ErrNotFound
	}
	return i, err
}

func (s *Store) ListIntegrations(ctx context.Context, orgID string) ([]model.Integration, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var integrations []model.Integration
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		integrations = append(integrations, i)
	}
	return integrations, rows.Err()
}

func (s *Store) UpdateIntegration(ctx context.Context, i model.Integration) (model.Integration, error) {
	config, err := encodeJSON(i.Config)
	if err != nil {
		return model.Integration{}, err
	}
	encryptedSecrets, err := encodeJSON(i.Secrets)
	if err != nil {
		return model.Integration{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE integrations
		SET name = $3, integration_type = $4, config = $5, secrets = $6, is_active = $7, updated_at = now()
		WHERE id = $1 AND org_id = $2
		RETURNING last_test_status, created_at, updated_at`,
		i.ID, i.OrgID, i.Name, i.Kind, config, encryptedSecrets, i.Active)
	if err := row.Scan(&i.LastTestStatus, &i.CreatedAt, &i.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Integration{}, ErrNotFound
		}
		return model.Integration{}, fmt.Errorf("update integration: %w", err)
	}
	return i, nil
}

func (s *Store) DeleteIntegration(ctx context.Context, orgID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM integrations WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetIntegrationStatus(ctx context.Context, id, status string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE integrations SET last_test_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set integration status: %w", err)
	}
	return nil
}

// --- Audit log ---

func (s *Store) InsertAuditLog(ctx context.Context, entry model.AuditLog) error {
	payload, err := encodeJSON(entry.Payload)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, org_id, actor_id, action, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), entry.OrgID, entry.ActorID, entry.Action, payload)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, orgID string, limit int) ([]model.AuditLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, actor_id, action, payload, created_at
		FROM audit_logs WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2`,
		orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLog
	for rows.Next() {
		var e model.AuditLog
		var payload []byte
		if err := rows.Scan(&e.ID, &e.OrgID, &e.ActorID, &e.Action, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if e.Payload, err = decodeJSONMap(payload); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// encodeStringArray keeps the jsonb column an array: a nil slice becomes []
// so the `?` containment filter and the schema default line up.
func encodeStringArray(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return encoded, nil
}

func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return encoded, nil
}
