// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// reservation held by someone else. Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a conditional update finds the row in an
// unexpected state, such as reserving a seat that was taken between the
// read and the write. Handlers translate it into 409.
var ErrConflict = errors.New("conflict")

// Not-found sentinels, one per table.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrSeatNotFound        = errors.New("seat not found")
	ErrReservationNotFound = errors.New("reservation not found")
)
