package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/leakwatch/leakwatch/internal/model"
)

func (h *Handlers) HandleListAuditLog(c echo.Context) error {
	entries, err := h.Store.ListAuditLogs(c.Request().Context(), orgID(c), auditLogLimit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []model.AuditLog{}
	}
	return c.JSON(http.StatusOK, entries)
}
