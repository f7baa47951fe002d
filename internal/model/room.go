package model

import "time"

// Room is a study room equipped with seat sensors.  Status is one of
// active, maintenance or closed; only active rooms accept allocations.
type Room struct {
	ID        string    `json:"id"`         // rooms.id (uuid)
	Name      string    `json:"name"`       // rooms.name
	Building  *string   `json:"building"`   // rooms.building (nullable)
	Floor     int       `json:"floor"`      // rooms.floor
	Capacity  int       `json:"capacity"`   // rooms.capacity
	Status    string    `json:"status"`     // rooms.status
	CreatedAt time.Time `json:"created_at"` // rooms.created_at
	UpdatedAt time.Time `json:"updated_at"` // rooms.updated_at
}

// Room status values.
const (
	RoomActive      = "active"
	RoomMaintenance = "maintenance"
	RoomClosed      = "closed"
)
