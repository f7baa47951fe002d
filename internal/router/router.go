package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-seats/internal/handler"
	"github.com/iliyamo/study-room-seats/internal/metrics"
)

// RegisterRoutes registers routes that do not require authentication:
// liveness, readiness and the Prometheus scrape endpoint.  When m is
// non-nil every request is also counted by the metrics middleware.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, m *metrics.Metrics) {
	if m != nil {
		e.Use(m.Middleware())
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}
