package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-seats/internal/handler"
	"github.com/iliyamo/study-room-seats/internal/middleware"
)

// RegisterStudent registers the seat endpoints under /v1.  Every route
// requires a valid JWT with the STUDENT or ADMIN role and passes through
// limit.  cache wraps only room utilization; seat lists change with every
// sensor tick.  Either middleware may be nil.
func RegisterStudent(e *echo.Echo, rooms *handler.RoomHandler, res *handler.ReservationHandler, jwtSecret string, limit, cache echo.MiddlewareFunc) {
	mws := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleStudent, middleware.RoleAdmin),
	}
	if limit != nil {
		mws = append(mws, limit)
	}
	g := e.Group("/v1", mws...)

	g.GET("/rooms/:id/seats", rooms.ListSeats)
	if cache != nil {
		g.GET("/rooms/:id/utilization", rooms.Utilization, cache)
	} else {
		g.GET("/rooms/:id/utilization", rooms.Utilization)
	}
	g.POST("/rooms/:id/recommendations", rooms.Recommendations)
	g.POST("/rooms/:id/allocate", rooms.Allocate)
	g.POST("/rooms/:id/seats/:seatId/reserve", rooms.Reserve)

	g.GET("/my-reservations", res.ListMine)
	g.POST("/reservations/:id/check-in", res.CheckIn)
	// Admins may cancel any reservation; the handler decides.
	g.DELETE("/reservations/:id", res.Cancel)
}
