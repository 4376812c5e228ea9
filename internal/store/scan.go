package store

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
)

func scanConnector(row pgx.Row) (model.Connector, error) {
	var c model.Connector
	var config, encryptedSecrets []byte
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Kind, &config, &encryptedSecrets,
		&c.Active, &c.LastRunStatus, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Connector{}, err
	}
	if c.Config, err = decodeJSONMap(config); err != nil {
		return model.Connector{}, fmt.Errorf("scan connector: %w", err)
	}
	if c.Secrets, err = decodeJSONStrings(encryptedSecrets); err != nil {
		return model.Connector{}, fmt.Errorf("scan connector: %w", err)
	}
	return c, nil
}

func collectConnectors(rows pgx.Rows) ([]model.Connector, error) {
	var connectors []model.Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	return connectors, rows.Err()
}

func collectFindings(rows pgx.Rows) ([]model.Finding, error) {
	var findings []model.Finding
	for rows.Next() {
		var f model.Finding
		var exposure, metadata []byte
		err := rows.Scan(&f.ID, &f.OrgID, &f.Source, &f.Confidence, &f.MatchedEntity,
			&exposure, &f.RawSnippet, &f.Severity, &f.DedupeHash, &metadata, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		if len(exposure) > 0 {
			if err := json.Unmarshal(exposure, &f.ExposureTypes); err != nil {
				return nil, fmt.Errorf("scan finding: %w", err)
			}
		}
		if f.Metadata, err = decodeJSONMap(metadata); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func scanAlertRule(row pgx.Row) (model.AlertRule, error) {
	var r model.AlertRule
	var recipients, filters, policy []byte
	err := row.Scan(&r.ID, &r.OrgID, &r.Name, &r.Active, &recipients, &filters,
		&policy, &r.Schedule, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.AlertRule{}, err
	}
	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &r.Recipients); err != nil {
			return model.AlertRule{}, fmt.Errorf("scan alert rule: %w", err)
		}
	}
	if r.Filters, err = decodeJSONMap(filters); err != nil {
		return model.AlertRule{}, fmt.Errorf("scan alert rule: %w", err)
	}
	if len(policy) > 0 {
		var p redaction.Policy
		if err := json.Unmarshal(policy, &p); err != nil {
			return model.AlertRule{}, fmt.Errorf("scan alert rule: %w", err)
		}
		r.RedactionPolicy = p
	}
	return r, nil
}

func collectAlertRules(rows pgx.Rows) ([]model.AlertRule, error) {
	var rules []model.AlertRule
	for rows.Next() {
		r, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func scanIntegration(row pgx.Row) (model.Integration, error) {
	var i model.Integration
	var config, encryptedSecrets []byte
	err := row.Scan(&i.ID, &i.OrgID, &i.Name, &i.Kind, &config, &encryptedSecrets,
		&i.Active, &i.LastTestStatus, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return model.Integration{}, err
	}
	if i.Config, err = decodeJSONMap(config); err != nil {
		return model.Integration{}, fmt.Errorf("scan integration: %w", err)
	}
	if i.Secrets, err = decodeJSONStrings(encryptedSecrets); err != nil {
		return model.Integration{}, fmt.Errorf("scan integration: %w", err)
	}
	return i, nil
}

// decodeJSONMap turns a jsonb column into a map, treating NULL and empty
// objects as nil so callers can rely on omitempty.
func decodeJSONMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func decodeJSONStrings(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
