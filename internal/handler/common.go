package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-room-seats/internal/middleware"
	"github.com/iliyamo/study-room-seats/internal/repository"
	"github.com/iliyamo/study-room-seats/internal/service"
	"github.com/iliyamo/study-room-seats/internal/simulator"
)

// getUserID returns the authenticated caller or an error when JWTAuth did
// not run.
func getUserID(c echo.Context) (string, error) {
	id, _, ok := middleware.Identity(c)
	if !ok {
		return "", errors.New("invalid user_id in context")
	}
	return id, nil
}

// errorResponse translates a domain error into the JSON error body.
// Unknown errors become 500 with fallback as the message.
func errorResponse(c echo.Context, err error, fallback string) error {
	status, msg := http.StatusInternalServerError, fallback
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		status, msg = http.StatusNotFound, "room not found"
	case errors.Is(err, repository.ErrReservationNotFound):
		status, msg = http.StatusNotFound, "reservation not found"
	case errors.Is(err, repository.ErrSeatNotFound):
		status, msg = http.StatusNotFound, "seat not found"
	case errors.Is(err, repository.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNoSeatAvailable):
		status, msg = http.StatusConflict, "no seat available"
	case errors.Is(err, service.ErrRoomUnavailable):
		status, msg = http.StatusConflict, "room not accepting reservations"
	case errors.Is(err, service.ErrSeatUnavailable):
		status, msg = http.StatusConflict, "seat not available"
	case errors.Is(err, service.ErrInvalidStart):
		status, msg = http.StatusBadRequest, "start_time too far in the future"
	case errors.Is(err, repository.ErrConflict):
		status, msg = http.StatusConflict, "conflict"
	case errors.Is(err, simulator.ErrUnknownSeat):
		status, msg = http.StatusNotFound, "simulated seat not found"
	case errors.Is(err, simulator.ErrInvalidState):
		status, msg = http.StatusBadRequest, "invalid seat state"
	case errors.Is(err, simulator.ErrUnknownScenario):
		status, msg = http.StatusBadRequest, "unknown scenario"
	case errors.Is(err, simulator.ErrClosed):
		status, msg = http.StatusConflict, "simulator closed"
	}
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"component": "http", "method": c.Request().Method, "path": c.Path(),
		}).WithError(err).Error(fallback)
	}
	return c.JSON(status, echo.Map{"error": msg})
}
