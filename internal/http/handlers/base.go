// Package handlers contains the JSON API handlers split by resource.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/leakwatch/leakwatch/internal/config"
	"github.com/leakwatch/leakwatch/internal/connectors"
	"github.com/leakwatch/leakwatch/internal/integrations"
	"github.com/leakwatch/leakwatch/internal/logging"
	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/secrets"
	"github.com/leakwatch/leakwatch/internal/store"
)

const (
	// HeaderOrgID carries the acting organization; every /api route requires it.
	HeaderOrgID = "X-Org-Id"
	// HeaderActorID optionally identifies the caller for the audit trail.
	HeaderActorID = "X-Actor-Id"

	contextKeyOrgID = "org_id"
	defaultActorID  = "api"

	auditLogLimit       = 100
	defaultFindingLimit = 100
)

// Store is the persistence surface the API needs. *store.Store satisfies it;
// tests substitute fakes.
type Store interface {
	CreateTarget(ctx context.Context, t model.Target) (model.Target, error)
	GetTarget(ctx context.Context, orgID, id string) (model.Target, error)
	ListTargets(ctx context.Context, orgID string) ([]model.Target, error)
	UpdateTarget(ctx context.Context, t model.Target) (model.Target, error)
	DeleteTarget(ctx context.Context, orgID, id string) error

	CreateConnector(ctx context.Context, c model.Connector) (model.Connector, error)
	GetConnector(ctx context.Context, orgID, id string) (model.Connector, error)
	ListConnectors(ctx context.Context, orgID string) ([]model.Connector, error)
	UpdateConnector(ctx context.Context, c model.Connector) (model.Connector, error)
	DeleteConnector(ctx context.Context, orgID, id string) error

	CreateAlertRule(ctx context.Context, r model.AlertRule) (model.AlertRule, error)
	GetAlertRule(ctx context.Context, orgID, id string) (model.AlertRule, error)
	ListAlertRules(ctx context.Context, orgID string) ([]model.AlertRule, error)
	UpdateAlertRule(ctx context.Context, r model.AlertRule) (model.AlertRule, error)
	DeleteAlertRule(ctx context.Context, orgID, id string) error

	CreateIntegration(ctx context.Context, i model.Integration) (model.Integration, error)
	GetIntegration(ctx context.Context, orgID, id string) (model.Integration, error)
	ListIntegrations(ctx context.Context, orgID string) ([]model.Integration, error)
	UpdateIntegration(ctx context.Context, i model.Integration) (model.Integration, error)
	DeleteIntegration(ctx context.Context, orgID, id string) error
	SetIntegrationStatus(ctx context.Context, id, status string) error

	ListFindings(ctx context.Context, orgID string, filter store.FindingFilter) ([]model.Finding, error)
	GetFinding(ctx context.Context, orgID, id string) (model.Finding, error)

	InsertAuditLog(ctx context.Context, entry model.AuditLog) error
	ListAuditLogs(ctx context.Context, orgID string, limit int) ([]model.AuditLog, error)
}

// ConnectorTester runs one connector end to end without the scheduler.
type ConnectorTester interface {
	TestConnector(ctx context.Context, conn model.Connector) (int, error)
}

// AlertTester sends a synthetic alert through a rule's channels.
type AlertTester interface {
	DispatchTest(ctx context.Context, rule model.AlertRule) error
}

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Cfg          config.Config
	Store        Store
	Runner       ConnectorTester
	Dispatcher   AlertTester
	Connectors   *connectors.Registry
	Integrations *integrations.Registry
	Cipher       *secrets.Cipher
}

// HandleHealthz reports liveness.
func (h *Handlers) HandleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// RequireOrg rejects API requests that do not identify an organization.
func RequireOrg(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		org := strings.TrimSpace(c.Request().Header.Get(HeaderOrgID))
		if org == "" {
			return echo.NewHTTPError(http.StatusBadRequest, HeaderOrgID+" header is required")
		}
		c.Set(contextKeyOrgID, org)
		return next(c)
	}
}

func orgID(c echo.Context) string {
	org, _ := c.Get(contextKeyOrgID).(string)
	return org
}

func actorID(c echo.Context) string {
	if actor := strings.TrimSpace(c.Request().Header.Get(HeaderActorID)); actor != "" {
		return actor
	}
	return defaultActorID
}

// audit records a mutation. Audit failures are logged, never surfaced; the
// mutation itself already succeeded.
func (h *Handlers) audit(c echo.Context, action string, payload map[string]any) {
	entry := model.AuditLog{
		OrgID:   orgID(c),
		ActorID: actorID(c),
		Action:  action,
		Payload: logging.RedactMap(payload),
	}
	if err := h.Store.InsertAuditLog(c.Request().Context(), entry); err != nil {
		slog.Error("audit log write failed", "action", action, "error", err)
	}
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, message)
	}
	return err
}
