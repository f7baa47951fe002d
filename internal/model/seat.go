package model

import (
	"time"

	"github.com/iliyamo/study-room-seats/internal/allocation"
)

// Seat is a sensor-equipped seat inside a room.  SensorID links the row
// to the device (or simulated device) reporting its occupancy; seats
// without a sensor are never reconciled.
type Seat struct {
	ID               string                `json:"id"`                // seats.id (uuid)
	RoomID           string                `json:"room_id"`           // seats.room_id
	SeatNumber       string                `json:"seat_number"`       // e.g. A1, C4
	Status           allocation.SeatStatus `json:"status"`            // seats.status
	Features         allocation.Features   `json:"features"`          // seats.features (json)
	RowPosition      int                   `json:"row_position"`      // zero-based
	ColPosition      int                   `json:"col_position"`      // zero-based
	SensorID         *string               `json:"sensor_id"`         // seats.sensor_id (nullable)
	SensorConfidence float64               `json:"sensor_confidence"` // last fused confidence in [0,1]
	LastOccupiedAt   *time.Time            `json:"last_occupied_at"`  // nullable
	LastVacantAt     *time.Time            `json:"last_vacant_at"`    // nullable
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Allocation converts the stored seat into the engine's view of it.
func (s Seat) Allocation() allocation.Seat {
	return allocation.Seat{
		ID:               s.ID,
		SeatNumber:       s.SeatNumber,
		Status:           s.Status,
		Features:         s.Features,
		RowPosition:      s.RowPosition,
		ColPosition:      s.ColPosition,
		SensorConfidence: s.SensorConfidence,
		LastOccupiedAt:   s.LastOccupiedAt,
		LastVacantAt:     s.LastVacantAt,
	}
}

// AllocationSeats converts a slice of stored seats, preserving order.
func AllocationSeats(seats []Seat) []allocation.Seat {
	out := make([]allocation.Seat, len(seats))
	for i, s := range seats {
		out[i] = s.Allocation()
	}
	return out
}
