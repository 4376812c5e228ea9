// Package model holds the tenant-scoped entities shared by the store, the
// ingestion pipeline, and the API layer. Every entity is owned by exactly one
// organization, identified by an opaque string.
package model

import (
	"time"

	"github.com/leakwatch/leakwatch/internal/redaction"
)

// Connector kinds. The set is closed; the registry rejects anything else.
const (
	ConnectorDemo        = "demo"
	ConnectorHIBP        = "hibp"
	ConnectorDehashed    = "dehashed"
	ConnectorGenericRest = "generic_rest"
	ConnectorRSS         = "rss"
	ConnectorPublicPaste = "public_paste"
)

// Integration kinds.
const (
	IntegrationJira    = "jira"
	IntegrationO365    = "o365"
	IntegrationTrellix = "trellix"
	IntegrationWebhook = "webhook"
)

// Severity tiers, derived from exposure tags and never set by callers.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Target types. TargetOther covers free-form values (names, handles, ...).
const (
	TargetEmail  = "email"
	TargetDomain = "domain"
	TargetOther  = "other"
)

// Delivery channel keys used in Recipients and its per-channel overrides.
const (
	ChannelEmails   = "emails"
	ChannelPhones   = "phones"
	ChannelWebhooks = "webhooks"
)

// Target is one identifier an organization wants watched.
type Target struct {
	ID        string         `json:"id"`
	OrgID     string         `json:"org_id"`
	Type      string         `json:"target_type"`
	Value     string         `json:"value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// Finding is one observed exposure. Findings are immutable after creation and
// globally unique per DedupeHash.
type Finding struct {
	ID            string         `json:"id"`
	OrgID         string         `json:"org_id"`
	Source        string         `json:"source"`
	Confidence    int            `json:"confidence"`
	MatchedEntity string         `json:"matched_entity"`
	ExposureTypes []string       `json:"exposure_types"`
	RawSnippet    string         `json:"raw_snippet"`
	Severity      string         `json:"severity"`
	DedupeHash    string         `json:"dedupe_hash"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Connector is a configured source instance. Secrets holds ciphertext tokens;
// plaintext secret values never reach the store.
type Connector struct {
	ID            string            `json:"id"`
	OrgID         string            `json:"org_id"`
	Name          string            `json:"name"`
	Kind          string            `json:"connector_type"`
	Config        map[string]any    `json:"config,omitempty"`
	Secrets       map[string]string `json:"-"`
	Active        bool              `json:"is_active"`
	LastRunStatus string            `json:"last_run_status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at,omitempty"`
}

// Recipients maps delivery channels to destinations, with optional per-channel
// redaction overrides layered on top of the rule's default policy.
type Recipients struct {
	Emails    []string                    `json:"emails,omitempty"`
	Phones    []string                    `json:"phones,omitempty"`
	Webhooks  []string                    `json:"webhooks,omitempty"`
	Overrides map[string]redaction.Policy `json:"overrides,omitempty"`
}

// Override returns the redaction override for a channel, or the zero policy
// when none is configured.
func (r Recipients) Override(channel string) redaction.Policy {
	return r.Overrides[channel]
}

// AlertRule is a notification policy. Filters is stored but reserved for
// future finding selection. Schedule is informational; the actual trigger is
// the external scheduler.
type AlertRule struct {
	ID              string           `json:"id"`
	OrgID           string           `json:"org_id"`
	Name            string           `json:"name"`
	Active          bool             `json:"is_active"`
	Recipients      Recipients       `json:"recipients"`
	Filters         map[string]any   `json:"filters,omitempty"`
	RedactionPolicy redaction.Policy `json:"redaction_policy"`
	Schedule        string           `json:"schedule"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at,omitempty"`
}

// Integration is a configured outbound system (ticketing, chat, generic
// webhook). It mirrors Connector but is only exercised by the test/send path.
type Integration struct {
	ID             string            `json:"id"`
	OrgID          string            `json:"org_id"`
	Name           string            `json:"name"`
	Kind           string            `json:"integration_type"`
	Config         map[string]any    `json:"config,omitempty"`
	Secrets        map[string]string `json:"-"`
	Active         bool              `json:"is_active"`
	LastTestStatus string            `json:"last_test_status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at,omitempty"`
}

// AuditLog is one audit trail entry written by the API layer.
type AuditLog struct {
	ID        string         `json:"id"`
	OrgID     string         `json:"org_id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// KnownConnectorKind reports whether kind is part of the closed connector set.
func KnownConnectorKind(kind string) bool {
	switch kind {
	case ConnectorDemo, ConnectorHIBP, ConnectorDehashed, ConnectorGenericRest, ConnectorRSS, ConnectorPublicPaste:
		return true
	}
	return false
}

// KnownIntegrationKind reports whether kind is part of the closed integration set.
func KnownIntegrationKind(kind string) bool {
	switch kind {
	case IntegrationJira, IntegrationO365, IntegrationTrellix, IntegrationWebhook:
		return true
	}
	return false
}
