// Package allocation scores study room seats against user preferences and
// live sensor history, and summarises room utilization.
//
// Everything in this package is pure: no I/O, no goroutines. The only
// ambient input is the clock, which callers may replace with WithClock.
package allocation

import "time"

// SeatStatus mirrors the seat_status enum of the seats table verbatim.
type SeatStatus string

const (
	StatusAvailable   SeatStatus = "available"
	StatusReserved    SeatStatus = "reserved"
	StatusOccupied    SeatStatus = "occupied"
	StatusOffline     SeatStatus = "offline"
	StatusMaintenance SeatStatus = "maintenance"
)

// Valid reports whether s is one of the known seat statuses.
func (s SeatStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusOccupied, StatusOffline, StatusMaintenance:
		return true
	}
	return false
}

// Features are the capability flags stored with every seat.
type Features struct {
	HasWindow      bool `json:"hasWindow"`
	HasPowerOutlet bool `json:"hasPowerOutlet"`
	IsQuietZone    bool `json:"isQuietZone"`
	HasMonitor     bool `json:"hasMonitor"`
	IsAccessible   bool `json:"isAccessible"`
}

// Preferences holds optional user intents. A nil field means the user
// expressed no preference and the matching rule is skipped entirely.
type Preferences struct {
	PreferWindow      *bool `json:"preferWindow,omitempty"`
	PreferQuiet       *bool `json:"preferQuiet,omitempty"`
	PreferPowerOutlet *bool `json:"preferPowerOutlet,omitempty"`
	PreferMonitor     *bool `json:"preferMonitor,omitempty"`
	NeedsAccessible   *bool `json:"needsAccessible,omitempty"`
}

// Seat is a seat record as consumed by the engine. RowPosition and
// ColPosition are zero-based grid coordinates.
type Seat struct {
	ID               string     `json:"id"`
	SeatNumber       string     `json:"seatNumber"`
	Status           SeatStatus `json:"status"`
	Features         Features   `json:"features"`
	RowPosition      int        `json:"rowPosition"`
	ColPosition      int        `json:"colPosition"`
	SensorConfidence float64    `json:"sensorConfidence"`
	LastOccupiedAt   *time.Time `json:"lastOccupiedAt,omitempty"`
	LastVacantAt     *time.Time `json:"lastVacantAt,omitempty"`
}

// Result is the score of one candidate seat together with the reasons that
// contributed to it, in evaluation order.
type Result struct {
	SeatID     string   `json:"seatId"`
	SeatNumber string   `json:"seatNumber"`
	Score      float64  `json:"score"`
	Reasons    []string `json:"reasons"`
}

// Bool returns a pointer to b. It keeps preference literals short.
func Bool(b bool) *bool { return &b }

func isSet(p *bool) bool { return p != nil && *p }
