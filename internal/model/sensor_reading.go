package model

import (
	"encoding/json"
	"time"
)

// SensorReading is one persisted sensor sample.  Value keeps the raw
// sensor payload as JSON so readings from different sensor types share
// one table.
type SensorReading struct {
	ID           uint64          `json:"id"`      // sensor_readings.id
	SeatID       string          `json:"seat_id"` // stored seat, not the simulator id
	SensorType   string          `json:"sensor_type"`
	Value        json.RawMessage `json:"value"`
	Confidence   float64         `json:"confidence"`
	BatteryLevel int             `json:"battery_level"`
	RSSI         int             `json:"rssi"`
	IsOnline     bool            `json:"is_online"`
	Timestamp    time.Time       `json:"timestamp"`
}
