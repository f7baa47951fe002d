package repository

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

const reservationColumns = `id, user_id, room_id, seat_id, status, auto_assigned, preferences,
	start_time, end_time, checked_in_at, checked_out_at, last_activity_at, created_at, updated_at`

// ReservationRepo provides persistence for seat reservations.  All
// timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the handle for transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new reservation within the scope of an existing
// transaction.  An empty ID is replaced with a fresh UUID and written
// back to res, as are the creation timestamps.  The caller must commit
// or rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	var prefs interface{}
	if res.Preferences != nil {
		b, err := json.Marshal(res.Preferences)
		if err != nil {
			return fmt.Errorf("marshal preferences: %w", err)
		}
		prefs = string(b)
	}
	const q = `INSERT INTO reservations
	           (id, user_id, room_id, seat_id, status, auto_assigned, preferences,
	            start_time, end_time, last_activity_at, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		res.ID, res.UserID, res.RoomID, res.SeatID, res.Status, res.AutoAssigned, prefs,
		res.StartTime.UTC(), res.EndTime.UTC(), res.LastActivityAt.UTC(),
		res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	); err != nil {
		return err
	}
	return nil
}

// GetByID loads one reservation or returns ErrReservationNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	return scanReservation(r.db.QueryRowContext(ctx, q, id))
}

// GetForUpdateTx loads and row-locks a reservation inside tx.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	return scanReservation(tx.QueryRowContext(ctx, q, id))
}

// ListByUser returns the caller's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = ? ORDER BY start_time DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ListAwaitingCheckIn returns confirmed reservations that have started by
// now and whose holder has not checked in yet.  The auto-release sweeper
// decides which are stale.
func (r *ReservationRepo) ListAwaitingCheckIn(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE status = ? AND checked_in_at IS NULL AND start_time <= ?
	      ORDER BY last_activity_at`
	rows, err := r.db.QueryContext(ctx, q, model.ReservationConfirmed, now.UTC())
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// Transition is a conditional status change of one reservation.
type Transition struct {
	ID         string
	From       model.ReservationStatus
	To         model.ReservationStatus
	At         time.Time
	CheckedIn  bool // stamp checked_in_at
	CheckedOut bool // stamp checked_out_at
}

// TransitionTx applies t when the reservation still holds t.From and
// returns ErrConflict otherwise.  last_activity_at always moves to t.At.
func (r *ReservationRepo) TransitionTx(ctx context.Context, tx *sql.Tx, t Transition) error {
	set := []string{"status = ?", "last_activity_at = ?", "updated_at = ?"}
	at := t.At.UTC()
	args := []interface{}{t.To, at, at}
	if t.CheckedIn {
		set = append(set, "checked_in_at = ?")
		args = append(args, at)
	}
	if t.CheckedOut {
		set = append(set, "checked_out_at = ?")
		args = append(args, at)
	}
	q := `UPDATE reservations SET ` + strings.Join(set, ", ") + ` WHERE id = ? AND status = ?`
	args = append(args, t.ID, t.From)
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

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanReservation(row scanner) (*model.Reservation, error) {
	var (
		res        model.Reservation
		status     string
		prefs      sql.NullString
		checkedIn  sql.NullTime
		checkedOut sql.NullTime
	)
	err := row.Scan(
		&res.ID, &res.UserID, &res.RoomID, &res.SeatID, &status, &res.AutoAssigned, &prefs,
		&res.StartTime, &res.EndTime, &checkedIn, &checkedOut, &res.LastActivityAt,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	if prefs.Valid && strings.TrimSpace(prefs.String) != "" && prefs.String != "null" {
		var p allocation.Preferences
		if err := json.Unmarshal([]byte(prefs.String), &p); err != nil {
			return nil, fmt.Errorf("reservation %s preferences: %w", res.ID, err)
		}
		res.Preferences = &p
	}
	if checkedIn.Valid {
		t := checkedIn.Time.UTC()
		res.CheckedInAt = &t
	}
	if checkedOut.Valid {
		t := checkedOut.Time.UTC()
		res.CheckedOutAt = &t
	}
	return &res, nil
}
