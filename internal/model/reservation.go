package model

import (
	"time"

	"github.com/iliyamo/study-room-seats/internal/allocation"
)

// ReservationStatus mirrors the reservation_status enum.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCheckedIn ReservationStatus = "checked_in"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationNoShow    ReservationStatus = "no_show"
)

// Active reports whether the reservation still holds its seat.
func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationConfirmed || s == ReservationCheckedIn
}

// Reservation records a user's claim on one seat for a time window.
// AutoAssigned is true when the seat was chosen by the allocation
// engine rather than picked by the user.
//
// LastActivityAt starts at creation and moves on check-in.  The
// auto-release sweeper compares it against the configured threshold.
type Reservation struct {
	ID             string                  `json:"id"`      // reservations.id (uuid)
	UserID         string                  `json:"user_id"` // subject of the caller's JWT
	RoomID         string                  `json:"room_id"`
	SeatID         string                  `json:"seat_id"`
	Status         ReservationStatus       `json:"status"`
	AutoAssigned   bool                    `json:"auto_assigned"`
	Preferences    *allocation.Preferences `json:"preferences,omitempty"` // reservations.preferences (json)
	StartTime      time.Time               `json:"start_time"`
	EndTime        time.Time               `json:"end_time"`
	CheckedInAt    *time.Time              `json:"checked_in_at,omitempty"`
	CheckedOutAt   *time.Time              `json:"checked_out_at,omitempty"`
	LastActivityAt time.Time               `json:"last_activity_at"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}
