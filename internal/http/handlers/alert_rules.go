package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
)

const defaultAlertSchedule = "0 */6 * * *"

type alertRuleRequest struct {
	Name            *string           `json:"name"`
	Active          *bool             `json:"is_active"`
	Recipients      *model.Recipients `json:"recipients"`
	Filters         map[string]any    `json:"filters"`
	RedactionPolicy *redaction.Policy `json:"redaction_policy"`
	Schedule        *string           `json:"schedule"`
}

func (h *Handlers) HandleCreateAlertRule(c echo.Context) error {
	var req alertRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" || req.Recipients == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "name and recipients are required")
	}

	rule := model.AlertRule{
		OrgID:      orgID(c),
		Name:       strings.TrimSpace(*req.Name),
		Active:     true,
		Recipients: *req.Recipients,
		Filters:    req.Filters,
		Schedule:   defaultAlertSchedule,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if req.RedactionPolicy != nil {
		rule.RedactionPolicy = *req.RedactionPolicy
	}
	if req.Schedule != nil && strings.TrimSpace(*req.Schedule) != "" {
		rule.Schedule = strings.TrimSpace(*req.Schedule)
	}

	created, err := h.Store.CreateAlertRule(c.Request().Context(), rule)
	if err != nil {
		return err
	}

	h.audit(c, "create_alert_rule", map[string]any{"rule": created.Name})
	return c.JSON(http.StatusCreated, created)
}

func (h *Handlers) HandleListAlertRules(c echo.Context) error {
	rules, err := h.Store.ListAlertRules(c.Request().Context(), orgID(c))
	if err != nil {
		return err
	}
	if rules == nil {
		rules = []model.AlertRule{}
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handlers) HandleUpdateAlertRule(c echo.Context) error {
	ctx := c.Request().Context()

	existing, err := h.Store.GetAlertRule(ctx, orgID(c), c.Param("id"))
	if err != nil {
		return notFoundOr(err, "alert rule not found")
	}

	var req alertRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if req.Recipients != nil {
		existing.Recipients = *req.Recipients
	}
	if req.Filters != nil {
		existing.Filters = req.Filters
	}
	if req.RedactionPolicy != nil {
		existing.RedactionPolicy = *req.RedactionPolicy
	}
	if req.Schedule != nil {
		existing.Schedule = strings.TrimSpace(*req.Schedule)
	}

	updated, err := h.Store.UpdateAlertRule(ctx, existing)
	if err != nil {
		return notFoundOr(err, "alert rule not found")
	}

	h.audit(c, "update_alert_rule", map[string]any{"rule": updated.ID})
	return c.JSON(http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteAlertRule(c echo.Context) error {
	id := c.Param("id")
	if err := h.Store.DeleteAlertRule(c.Request().Context(), orgID(c), id); err != nil {
		return notFoundOr(err, "alert rule not found")
	}
	h.audit(c, "delete_alert_rule", map[string]any{"rule": id})
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleTestAlertRule sends a synthetic alert through the rule's channels so
// operators can verify delivery without waiting for real findings.
func (h *Handlers) HandleTestAlertRule(c echo.Context) error {
	ctx := c.Request().Context()

	rule, err := h.Store.GetAlertRule(ctx, orgID(c), c.Param("id"))
	if err != nil {
		return notFoundOr(err, "alert rule not found")
	}

	if err := h.Dispatcher.DispatchTest(ctx, rule); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "alert test failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}
