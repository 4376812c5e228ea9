// Package httpapp wires the JSON API over echo.
package httpapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/leakwatch/leakwatch/internal/config"
	"github.com/leakwatch/leakwatch/internal/http/handlers"
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h *handlers.Handlers
	e *echo.Echo
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(cfg config.Config, h *handlers.Handlers) (*EchoServer, error) {
	es := &EchoServer{h: h, e: echo.New()}
	es.e.HideBanner = true
	es.e.HTTPErrorHandler = es.httpErrorHandler
	es.e.Use(middleware.Recover())
	es.registerRoutes()
	return es, nil
}

func (es *EchoServer) registerRoutes() {
	es.e.GET("/healthz", es.h.HandleHealthz)

	api := es.e.Group("/api", handlers.RequireOrg)
	api.POST("/targets", es.h.HandleCreateTarget)
	api.GET("/targets", es.h.HandleListTargets)
	api.PUT("/targets/:id", es.h.HandleUpdateTarget)
	api.DELETE("/targets/:id", es.h.HandleDeleteTarget)

	api.POST("/connectors", es.h.HandleCreateConnector)
	api.GET("/connectors", es.h.HandleListConnectors)
	api.PUT("/connectors/:id", es.h.HandleUpdateConnector)
	api.DELETE("/connectors/:id", es.h.HandleDeleteConnector)
	api.POST("/connectors/:id/test", es.h.HandleTestConnector)

	api.POST("/alert-rules", es.h.HandleCreateAlertRule)
	api.GET("/alert-rules", es.h.HandleListAlertRules)
	api.PUT("/alert-rules/:id", es.h.HandleUpdateAlertRule)
	api.DELETE("/alert-rules/:id", es.h.HandleDeleteAlertRule)
	api.POST("/alert-rules/:id/test", es.h.HandleTestAlertRule)

	api.POST("/integrations", es.h.HandleCreateIntegration)
	api.GET("/integrations", es.h.HandleListIntegrations)
	api.PUT("/integrations/:id", es.h.HandleUpdateIntegration)
	api.DELETE("/integrations/:id", es.h.HandleDeleteIntegration)
	api.POST("/integrations/:id/test", es.h.HandleTestIntegration)

	api.GET("/findings", es.h.HandleListFindings)
	api.GET("/findings/:id", es.h.HandleGetFinding)

	api.GET("/audit-log", es.h.HandleListAuditLog)
}

// httpErrorHandler keeps internal error details out of responses; clients get
// a generic message while the real error goes to the log.
func (es *EchoServer) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		if status < http.StatusInternalServerError {
			if msg, ok := httpErr.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(status)
			}
		}
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
	}

	if writeErr := c.JSON(status, map[string]string{"error": message}); writeErr != nil {
		slog.Error("write error response", "error", writeErr)
	}
}

// Start starts the HTTP server.
func (es *EchoServer) Start(addr string) error {
	return es.e.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (es *EchoServer) Shutdown(ctx context.Context) error {
	return es.e.Shutdown(ctx)
}
