package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/leakwatch/leakwatch/internal/model"
)

type targetRequest struct {
	Type     *string        `json:"target_type"`
	Value    *string        `json:"value"`
	Metadata map[string]any `json:"metadata"`
}

func (h *Handlers) HandleCreateTarget(c echo.Context) error {
	var req targetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Type == nil || req.Value == nil || strings.TrimSpace(*req.Value) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "target_type and value are required")
	}

	target, err := h.Store.CreateTarget(c.Request().Context(), model.Target{
		OrgID:    orgID(c),
		Type:     *req.Type,
		Value:    strings.TrimSpace(*req.Value),
		Metadata: req.Metadata,
	})
	if err != nil {
		return err
	}

	h.audit(c, "create_target", map[string]any{"target": target.Value})
	return c.JSON(http.StatusCreated, target)
}

func (h *Handlers) HandleListTargets(c echo.Context) error {
	targets, err := h.Store.ListTargets(c.Request().Context(), orgID(c))
	if err != nil {
		return err
	}
	if targets == nil {
		targets = []model.Target{}
	}
	return c.JSON(http.StatusOK, targets)
}

func (h *Handlers) HandleUpdateTarget(c echo.Context) error {
	ctx := c.Request().Context()
	org := orgID(c)

	existing, err := h.Store.GetTarget(ctx, org, c.Param("id"))
	if err != nil {
		return notFoundOr(err, "target not found")
	}

	var req targetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Type != nil {
		existing.Type = *req.Type
	}
	if req.Value != nil {
		existing.Value = strings.TrimSpace(*req.Value)
	}
	if req.Metadata != nil {
		existing.Metadata = req.Metadata
	}

	updated, err := h.Store.UpdateTarget(ctx, existing)
	if err != nil {
		return notFoundOr(err, "target not found")
	}

	h.audit(c, "update_target", map[string]any{"target": updated.ID})
	return c.JSON(http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteTarget(c echo.Context) error {
	id := c.Param("id")
	if err := h.Store.DeleteTarget(c.Request().Context(), orgID(c), id); err != nil {
		return notFoundOr(err, "target not found")
	}
	h.audit(c, "delete_target", map[string]any{"target": id})
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}
