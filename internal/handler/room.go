package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/model"
	"github.com/iliyamo/study-room-seats/internal/service"
)

// SeatWorkflows is the part of service.SeatService used over HTTP.
type SeatWorkflows interface {
	Seats(ctx context.Context, roomID string) ([]model.Seat, error)
	Utilization(ctx context.Context, roomID string) (allocation.Utilization, error)
	Recommendations(ctx context.Context, roomID string, prefs allocation.Preferences, count int) ([]allocation.Result, error)
	Allocate(ctx context.Context, req service.AllocateRequest) (*service.Allocation, error)
	Reserve(ctx context.Context, req service.ReserveRequest) (*model.Reservation, error)
	CheckIn(ctx context.Context, userID, reservationID string) (*model.Reservation, error)
	Cancel(ctx context.Context, userID, reservationID string, asAdmin bool) error
	Reservations(ctx context.Context, userID string) ([]model.Reservation, error)
}

// maxReservationMinutes caps the duration a caller may request.
const maxReservationMinutes = 12 * 60

// RoomHandler serves seat browsing and allocation for one room at a time.
// All methods assume JWTAuth and RequireRole already ran.
type RoomHandler struct {
	Seats SeatWorkflows
}

// NewRoomHandler panics when svc is nil.
func NewRoomHandler(svc SeatWorkflows) *RoomHandler {
	if svc == nil {
		panic("nil service passed to NewRoomHandler")
	}
	return &RoomHandler{Seats: svc}
}

func roomID(c echo.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	return id, id != ""
}

// ListSeats handles GET /v1/rooms/:id/seats.
func (h *RoomHandler) ListSeats(c echo.Context) error {
	id, ok := roomID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	seats, err := h.Seats.Seats(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err, "failed to load seats")
	}
	if seats == nil {
		seats = []model.Seat{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": seats})
}

// Utilization handles GET /v1/rooms/:id/utilization.
func (h *RoomHandler) Utilization(c echo.Context) error {
	id, ok := roomID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	u, err := h.Seats.Utilization(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err, "failed to compute utilization")
	}
	return c.JSON(http.StatusOK, u)
}

// Recommendations handles POST /v1/rooms/:id/recommendations.  The body is
// a preferences object (may be empty); ?count defaults to 3.
func (h *RoomHandler) Recommendations(c echo.Context) error {
	id, ok := roomID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	count := allocation.DefaultRecommendations
	if raw := c.QueryParam("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "count must be between 1 and 50"})
		}
		count = n
	}
	var prefs allocation.Preferences
	if err := c.Bind(&prefs); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	recs, err := h.Seats.Recommendations(c.Request().Context(), id, prefs, count)
	if err != nil {
		return errorResponse(c, err, "failed to rank seats")
	}
	if recs == nil {
		recs = []allocation.Result{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": recs})
}

type allocateBody struct {
	Preferences     allocation.Preferences `json:"preferences"`
	StartTime       *time.Time             `json:"start_time"`
	DurationMinutes int                    `json:"duration_minutes"`
}

// Allocate handles POST /v1/rooms/:id/allocate.  It returns 201 with the
// reservation and the score breakdown, 404 for an unknown room and 409
// when every seat is taken.
func (h *RoomHandler) Allocate(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := roomID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	var body allocateBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.DurationMinutes < 0 || body.DurationMinutes > maxReservationMinutes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_minutes out of range"})
	}
	req := service.AllocateRequest{
		UserID:      userID,
		RoomID:      id,
		Preferences: body.Preferences,
		Duration:    time.Duration(body.DurationMinutes) * time.Minute,
	}
	if body.StartTime != nil {
		req.Start = *body.StartTime
	}
	out, err := h.Seats.Allocate(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err, "failed to allocate seat")
	}
	return c.JSON(http.StatusCreated, out)
}

type reserveBody struct {
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes"`
}

// Reserve handles POST /v1/rooms/:id/seats/:seatId/reserve for a seat the
// caller picked.  It returns 201 with the reservation and 409 when the
// seat is not available.
func (h *RoomHandler) Reserve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := roomID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	seatID := strings.TrimSpace(c.Param("seatId"))
	if seatID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	var body reserveBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.DurationMinutes < 0 || body.DurationMinutes > maxReservationMinutes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_minutes out of range"})
	}
	req := service.ReserveRequest{
		UserID:   userID,
		RoomID:   id,
		SeatID:   seatID,
		Duration: time.Duration(body.DurationMinutes) * time.Minute,
	}
	if body.StartTime != nil {
		req.Start = *body.StartTime
	}
	res, err := h.Seats.Reserve(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err, "failed to reserve seat")
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}
