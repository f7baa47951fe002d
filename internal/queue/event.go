// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Queue names double as event types.
const (
	SeatReservedQueue = "seat.reserved"
	SeatReleasedQueue = "seat.released"
)

// Release reasons carried by seat.released events.
const (
	ReasonCancelled = "cancelled"
	ReasonNoShow    = "no_show"
)

// SeatEvent is published whenever a reservation takes or gives back a
// seat.  It contains enough information for downstream consumers to log,
// notify or feed analytics without querying the primary database.
type SeatEvent struct {
	EventID       string   `json:"event_id"`
	Type          string   `json:"type"`
	ReservationID string   `json:"reservation_id"`
	UserID        string   `json:"user_id"`
	RoomID        string   `json:"room_id"`
	SeatID        string   `json:"seat_id"`
	SeatNumber    string   `json:"seat_number,omitempty"`
	AutoAssigned  bool     `json:"auto_assigned"`
	Score         *float64 `json:"score,omitempty"`
	Reasons       []string `json:"reasons,omitempty"`
	Reason        string   `json:"reason,omitempty"` // release reason
	OccurredAt    string   `json:"occurred_at"`      // RFC3339, UTC
}

// NewSeatEvent stamps a fresh event id and timestamp.
func NewSeatEvent(eventType string, at time.Time) SeatEvent {
	return SeatEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}
