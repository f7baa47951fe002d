package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/study-room-seats/internal/model"
)

// ReadingRepo stores raw sensor readings.
type ReadingRepo struct {
	db *sql.DB
}

// NewReadingRepo constructs a ReadingRepo.
func NewReadingRepo(db *sql.DB) *ReadingRepo { return &ReadingRepo{db: db} }

// InsertBatch writes all readings in a single statement.  Passing an
// empty slice has no effect and returns nil.
func (r *ReadingRepo) InsertBatch(ctx context.Context, readings []model.SensorReading) error {
	if len(readings) == 0 {
		return nil
	}
	query := `INSERT INTO sensor_readings
	          (seat_id, sensor_type, value, confidence, battery_level, rssi, is_online, timestamp) VALUES `
	args := make([]interface{}, 0, len(readings)*8)
	for i, rd := range readings {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, rd.SeatID, rd.SensorType, string(rd.Value), rd.Confidence,
			rd.BatteryLevel, rd.RSSI, rd.IsOnline, rd.Timestamp.UTC())
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}
