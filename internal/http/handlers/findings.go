package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/store"
)

func (h *Handlers) HandleListFindings(c echo.Context) error {
	filter := store.FindingFilter{
		Severity:     c.QueryParam("severity"),
		Source:       c.QueryParam("source"),
		ExposureType: c.QueryParam("exposure_type"),
		Limit:        defaultFindingLimit,
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		filter.Limit = n
	}

	findings, err := h.Store.ListFindings(c.Request().Context(), orgID(c), filter)
	if err != nil {
		return err
	}
	if findings == nil {
		findings = []model.Finding{}
	}
	return c.JSON(http.StatusOK, findings)
}

func (h *Handlers) HandleGetFinding(c echo.Context) error {
	finding, err := h.Store.GetFinding(c.Request().Context(), orgID(c), c.Param("id"))
	if err != nil {
		return notFoundOr(err, "finding not found")
	}
	return c.JSON(http.StatusOK, finding)
}
