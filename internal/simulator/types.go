// Package simulator emulates a grid of ESP32 seat nodes, each fusing a PIR
// motion sensor with an ultrasonic range finder, and publishes a batch of
// synthetic readings for the whole grid on every tick.
package simulator

import (
	"errors"
	"time"
)

// State is the internal occupancy state of a simulated seat.
type State string

const (
	StateVacant        State = "vacant"
	StateOccupied      State = "occupied"
	StateTransitioning State = "transitioning"
	StateOffline       State = "offline"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateVacant, StateOccupied, StateTransitioning, StateOffline:
		return true
	}
	return false
}

// Sensor types carried in SensorReading.SensorType.
const (
	SensorPIR        = "pir"
	SensorUltrasonic = "ultrasonic"
	SensorCombined   = "combined"
)

var (
	ErrUnknownSeat     = errors.New("simulator: unknown seat")
	ErrInvalidState    = errors.New("simulator: invalid state")
	ErrUnknownScenario = errors.New("simulator: unknown scenario")
	ErrClosed          = errors.New("simulator: closed")
)

// SimulatedSeat is a read-only snapshot of one simulated seat.
type SimulatedSeat struct {
	ID                   string    `json:"id"`
	SeatNumber           string    `json:"seatNumber"`
	Row                  int       `json:"row"`
	Col                  int       `json:"col"`
	State                State     `json:"state"`
	LastStateChange      time.Time `json:"lastStateChange"`
	OccupancyProbability float64   `json:"occupancyProbability"`
}

// ReadingValue is the fused sensor payload. Distance is in centimetres.
// RFIDTag is set only by nodes with a badge reader; the simulator has none.
type ReadingValue struct {
	Detected bool   `json:"detected"`
	Distance *int   `json:"distance,omitempty"`
	Motion   *bool  `json:"motion,omitempty"`
	RFIDTag  string `json:"rfidTag,omitempty"`
}

// SensorReading is what consumers observe for a seat on every tick.
type SensorReading struct {
	SeatID       string       `json:"seatId"`
	SensorType   string       `json:"sensorType"`
	Value        ReadingValue `json:"value"`
	Confidence   float64      `json:"confidence"`
	BatteryLevel int          `json:"batteryLevel"`
	RSSI         int          `json:"rssi"`
	IsOnline     bool         `json:"isOnline"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Listener receives every reading batch. Returning an error only gets it
// logged; it never stops delivery to other listeners.
type Listener interface {
	OnReadings(readings []SensorReading) error
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(readings []SensorReading) error

// OnReadings calls f(readings).
func (f ListenerFunc) OnReadings(readings []SensorReading) error { return f(readings) }
