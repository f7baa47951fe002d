package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is a liveness endpoint used by load balancers and monitoring.
// It returns a plain text "ok" with 200.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ready reports 503 until the database answers a ping.
func Ready(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "database unavailable"})
		}
		return c.String(http.StatusOK, "ready")
	}
}
