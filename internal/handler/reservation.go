package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-seats/internal/middleware"
	"github.com/iliyamo/study-room-seats/internal/model"
)

// ReservationHandler serves the caller's reservations.
type ReservationHandler struct {
	Seats SeatWorkflows
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc SeatWorkflows) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Seats: svc}
}

// ListMine handles GET /v1/my-reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Seats.Reservations(c.Request().Context(), userID)
	if err != nil {
		return errorResponse(c, err, "failed to load reservations")
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CheckIn handles POST /v1/reservations/:id/check-in.
func (h *ReservationHandler) CheckIn(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID := strings.TrimSpace(c.Param("id"))
	if resID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Seats.CheckIn(c.Request().Context(), userID, resID)
	if err != nil {
		return errorResponse(c, err, "failed to check in")
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Cancel handles DELETE /v1/reservations/:id.  Admins may cancel any
// reservation; students only their own.  Returns 204 on success.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID := strings.TrimSpace(c.Param("id"))
	if resID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Seats.Cancel(c.Request().Context(), userID, resID, middleware.IsAdmin(c)); err != nil {
		return errorResponse(c, err, "failed to cancel reservation")
	}
	return c.NoContent(http.StatusNoContent)
}
