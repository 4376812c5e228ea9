package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/leakwatch/leakwatch/internal/model"
)

const testMessage = "Leakwatch test"

type integrationRequest struct {
	Name    *string            `json:"name"`
	Kind    *string            `json:"integration_type"`
	Config  map[string]any     `json:"config"`
	Secrets *map[string]string `json:"secrets"`
	Active  *bool              `json:"is_active"`
}

func (h *Handlers) HandleCreateIntegration(c echo.Context) error {
	var req integrationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" || req.Kind == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "name and integration_type are required")
	}
	if _, err := h.Integrations.Lookup(*req.Kind); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown integration type")
	}

	integration := model.Integration{
		OrgID:  orgID(c),
		Name:   strings.TrimSpace(*req.Name),
		Kind:   *req.Kind,
		Config: req.Config,
		Active: true,
	}
	if req.Active != nil {
		integration.Active = *req.Active
	}
	if req.Secrets != nil {
		var err error
		if integration.Secrets, err = h.Cipher.EncryptMap(*req.Secrets); err != nil {
			return fmt.Errorf("encrypt secrets: %w", err)
		}
	}

	created, err := h.Store.CreateIntegration(c.Request().Context(), integration)
	if err != nil {
		return err
	}

	h.audit(c, "create_integration", map[string]any{"integration": created.Name})
	return c.JSON(http.StatusCreated, created)
}

func (h *Handlers) HandleListIntegrations(c echo.Context) error {
	integrations, err := h.Store.ListIntegrations(c.Request().Context(), orgID(c))
	if err != nil {
		return err
	}
	if integrations == nil {
		integrations = []model.Integration{}
	}
	return c.JSON(http.StatusOK, integrations)
}

func (h *Handlers) HandleUpdateIntegration(c echo.Context) error {
	ctx := c.Request().Context()

	existing, err := h.Store.GetIntegration(ctx, orgID(c), c.Param("id"))
	if err != nil {
		return notFoundOr(err, "integration not found")
	}

	var req integrationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.Kind != nil {
		if _, err := h.Integrations.Lookup(*req.Kind); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown integration type")
		}
		existing.Kind = *req.Kind
	}
	if req.Config != nil {
		existing.Config = req.Config
	}
	if req.Secrets != nil {
		if existing.Secrets, err = h.Cipher.EncryptMap(*req.Secrets); err != nil {
			return fmt.Errorf("encrypt secrets: %w", err)
		}
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	updated, err := h.Store.UpdateIntegration(ctx, existing)
	if err != nil {
		return notFoundOr(err, "integration not found")
	}

	h.audit(c, "update_integration", map[string]any{"integration": updated.ID})
	return c.JSON(http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteIntegration(c echo.Context) error {
	id := c.Param("id")
	if err := h.Store.DeleteIntegration(c.Request().Context(), orgID(c), id); err != nil {
		return notFoundOr(err, "integration not found")
	}
	h.audit(c, "delete_integration", map[string]any{"integration": id})
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleTestIntegration sends a fixed test payload and records the outcome on
// the integration's last_test_status.
func (h *Handlers) HandleTestIntegration(c echo.Context) error {
	ctx := c.Request().Context()

	integration, err := h.Store.GetIntegration(ctx, orgID(c), c.Param("id"))
	if err != nil {
		return notFoundOr(err, "integration not found")
	}
	sender, err := h.Integrations.Lookup(integration.Kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown integration type")
	}

	payload := map[string]any{"message": testMessage}
	sendErr := sender.Send(ctx, integration.Config, h.Cipher.DecryptMap(integration.Secrets), payload)

	status := "success"
	if sendErr != nil {
		status = "error"
	}
	if err := h.Store.SetIntegrationStatus(ctx, integration.ID, status); err != nil {
		slog.Error("set integration status", "integration", integration.ID, "error", err)
	}

	if sendErr != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "integration test failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}
