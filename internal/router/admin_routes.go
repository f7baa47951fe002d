package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-seats/internal/handler"
	"github.com/iliyamo/study-room-seats/internal/middleware"
)

// RegisterAdmin mounts the simulator controls under /v1/simulator.  All
// routes require a JWT carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, sim *handler.SimulatorHandler, jwtSecret string) {
	g := e.Group(
		"/v1/simulator",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	g.GET("/seats", sim.Seats)
	g.POST("/start", sim.Start)
	g.POST("/stop", sim.Stop)
	g.POST("/scenario/:name", sim.Scenario)
	g.PUT("/seats/:id", sim.Override)
}
