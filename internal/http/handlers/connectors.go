package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/leakwatch/leakwatch/internal/model"
)

type connectorRequest struct {
	Name    *string            `json:"name"`
	Kind    *string            `json:"connector_type"`
	Config  map[string]any     `json:"config"`
	Secrets *map[string]string `json:"secrets"`
	Active  *bool              `json:"is_active"`
}

func (h *Handlers) HandleCreateConnector(c echo.Context) error {
	var req connectorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" || req.Kind == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "name and connector_type are required")
	}
	kind, err := h.connectorKind(*req.Kind)
	if err != nil {
		return err
	}

	conn := model.Connector{
		OrgID:  orgID(c),
		Name:   strings.TrimSpace(*req.Name),
		Kind:   kind,
		Config: req.Config,
		Active: true,
	}
	if req.Active != nil {
		conn.Active = *req.Active
	}
	if req.Secrets != nil {
		if conn.Secrets, err = h.Cipher.EncryptMap(*req.Secrets); err != nil {
			return fmt.Errorf("encrypt secrets: %w", err)
		}
	}

	created, err := h.Store.CreateConnector(c.Request().Context(), conn)
	if err != nil {
		return err
	}

	h.audit(c, "create_connector", map[string]any{"connector": created.Name})
	return c.JSON(http.StatusCreated, created)
}

func (h *Handlers) HandleListConnectors(c echo.Context) error {
	connectors, err := h.Store.ListConnectors(c.Request().Context(), orgID(c))
	if err != nil {
		return err
	}
	if connectors == nil {
		connectors = []model.Connector{}
	}
	return c.JSON(http.StatusOK, connectors)
}

func (h *Handlers) HandleUpdateConnector(c echo.Context) error {
	ctx := c.Request().Context()

	existing, err := h.Store.GetConnector(ctx, orgID(c), c.Param("id"))
	if err != nil {
		return notFoundOr(err, "connector not found")
	}

	var req connectorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.Kind != nil {
		if existing.Kind, err = h.connectorKind(*req.Kind); err != nil {
			return err
		}
	}
	if req.Config != nil {
		existing.Config = req.Config
	}
	if req.Secrets != nil {
		// Secrets replace wholesale; partial secret edits resend the full map.
		if existing.Secrets, err = h.Cipher.EncryptMap(*req.Secrets); err != nil {
			return fmt.Errorf("encrypt secrets: %w", err)
		}
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	updated, err := h.Store.UpdateConnector(ctx, existing)
	if err != nil {
		return notFoundOr(err, "connector not found")
	}

	h.audit(c, "update_connector", map[string]any{"connector": updated.ID})
	return c.JSON(http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteConnector(c echo.Context) error {
	id := c.Param("id")
	if err := h.Store.DeleteConnector(c.Request().Context(), orgID(c), id); err != nil {
		return notFoundOr(err, "connector not found")
	}
	h.audit(c, "delete_connector", map[string]any{"connector": id})
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleTestConnector runs the connector once on demand, exactly like a
// scheduled run, and reports how many new findings it stored.
func (h *Handlers) HandleTestConnector(c echo.Context) error {
	ctx := c.Request().Context()

	conn, err := h.Store.GetConnector(ctx, orgID(c), c.Param("id"))
	if err != nil {
		return notFoundOr(err, "connector not found")
	}

	count, err := h.Runner.TestConnector(ctx, conn)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "connector test failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "findings": count})
}

// connectorKind validates the kind at configuration time so a bad value is a
// 400 here instead of a failed run later.
func (h *Handlers) connectorKind(raw string) (string, error) {
	src, err := h.Connectors.Lookup(raw)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "unknown connector type")
	}
	return src.Kind(), nil
}
