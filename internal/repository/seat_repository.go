package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/model"
)

const seatColumns = `id, room_id, seat_number, status, features, row_position, col_position,
	sensor_id, sensor_confidence, last_occupied_at, last_vacant_at, created_at, updated_at`

// SeatRepo provides methods to work with seats in the database.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// DB exposes the handle so callers can open transactions spanning
// several repositories.
func (r *SeatRepo) DB() *sql.DB { return r.db }

// ListByRoom retrieves all seats of a room ordered by grid position.
func (r *SeatRepo) ListByRoom(ctx context.Context, roomID string) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE room_id = ? ORDER BY row_position, col_position`
	rows, err := r.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

// CreateBatchTx inserts seats in one statement.  Seats without an ID get
// a fresh UUID; an empty slice is a no-op.
func (r *SeatRepo) CreateBatchTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	now := time.Now().UTC()
	var (
		sb   strings.Builder
		args = make([]interface{}, 0, len(seats)*10)
	)
	sb.WriteString(`INSERT INTO seats (id, room_id, seat_number, status, features, row_position,
	                col_position, sensor_id, created_at, updated_at) VALUES `)
	for i := range seats {
		s := &seats[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.Status == "" {
			s.Status = allocation.StatusAvailable
		}
		features, err := json.Marshal(s.Features)
		if err != nil {
			return fmt.Errorf("seat %s features: %w", s.SeatNumber, err)
		}
		var sensor sql.NullString
		if s.SensorID != nil {
			sensor = sql.NullString{String: *s.SensorID, Valid: true}
		}
		s.CreatedAt, s.UpdatedAt = now, now
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(" + placeholders(10) + ")")
		args = append(args, s.ID, s.RoomID, s.SeatNumber, s.Status, string(features),
			s.RowPosition, s.ColPosition, sensor, now, now)
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// ListAvailableForUpdateTx locks and returns the available seats of a
// room so the caller can allocate one without racing other requests.
func (r *SeatRepo) ListAvailableForUpdateTx(ctx context.Context, tx *sql.Tx, roomID string) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats
	      WHERE room_id = ? AND status = ?
	      ORDER BY row_position, col_position
	      FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, roomID, allocation.StatusAvailable)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

// GetForUpdateTx locks and returns one seat.
func (r *SeatRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE id = ? FOR UPDATE`
	s, err := scanSeat(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStatusTx moves a seat to status `to` only when it currently holds
// one of the `from` statuses.  It returns ErrConflict when nothing matched.
func (r *SeatRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, seatID string, to allocation.SeatStatus, from ...allocation.SeatStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("update seat %s: no source status given", seatID)
	}
	q := `UPDATE seats SET status = ? WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
	args := make([]interface{}, 0, len(from)+2)
	args = append(args, to, seatID)
	for _, s := range from {
		args = append(args, s)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ReadingUpdate is the seat state derived from one sensor reading.
// From is the status the decision was based on; the write only lands
// while the seat still holds it.  OccupiedAt and VacantAt are set only
// when the status transitions.
type ReadingUpdate struct {
	SeatID     string
	From       allocation.SeatStatus
	Status     allocation.SeatStatus
	Confidence float64
	OccupiedAt *time.Time
	VacantAt   *time.Time
}

// ApplyReading persists a reconciled reading.  It reports false when the
// seat moved away from u.From in the meantime (a reservation committed
// between read and write, for example); the next reading re-evaluates it.
// Seats under maintenance are never written.
func (r *SeatRepo) ApplyReading(ctx context.Context, u ReadingUpdate) (bool, error) {
	if u.From == "" {
		return false, fmt.Errorf("apply reading to seat %s: no source status given", u.SeatID)
	}
	if u.From == allocation.StatusMaintenance {
		return false, nil
	}
	const q = `UPDATE seats
	           SET status = ?, sensor_confidence = ?,
	               last_occupied_at = COALESCE(?, last_occupied_at),
	               last_vacant_at = COALESCE(?, last_vacant_at)
	           WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q,
		u.Status, u.Confidence, nullTime(u.OccupiedAt), nullTime(u.VacantAt),
		u.SeatID, u.From,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StatusCounts aggregates the seats of one room.
type StatusCounts struct {
	Total    int
	Occupied int
	Reserved int
}

// CountByStatus returns the seat totals used for utilization.
func (r *SeatRepo) CountByStatus(ctx context.Context, roomID string) (StatusCounts, error) {
	const q = `SELECT COUNT(*),
	                  COALESCE(SUM(status = 'occupied'), 0),
	                  COALESCE(SUM(status = 'reserved'), 0)
	           FROM seats WHERE room_id = ?`
	var c StatusCounts
	if err := r.db.QueryRowContext(ctx, q, roomID).Scan(&c.Total, &c.Occupied, &c.Reserved); err != nil {
		return StatusCounts{}, err
	}
	return c, nil
}

func collectSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	var result []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSeat(row scanner) (model.Seat, error) {
	var (
		s        model.Seat
		status   string
		features sql.NullString
		sensorID sql.NullString
		occupied sql.NullTime
		vacant   sql.NullTime
	)
	if err := row.Scan(
		&s.ID, &s.RoomID, &s.SeatNumber, &status, &features, &s.RowPosition, &s.ColPosition,
		&sensorID, &s.SensorConfidence, &occupied, &vacant, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Seat{}, ErrSeatNotFound
		}
		return model.Seat{}, err
	}
	s.Status = allocation.SeatStatus(status)
	if features.Valid && strings.TrimSpace(features.String) != "" {
		if err := json.Unmarshal([]byte(features.String), &s.Features); err != nil {
			return model.Seat{}, fmt.Errorf("seat %s features: %w", s.ID, err)
		}
	}
	if sensorID.Valid {
		id := sensorID.String
		s.SensorID = &id
	}
	if occupied.Valid {
		t := occupied.Time.UTC()
		s.LastOccupiedAt = &t
	}
	if vacant.Valid {
		t := vacant.Time.UTC()
		s.LastVacantAt = &t
	}
	return s, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
