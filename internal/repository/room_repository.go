package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/study-room-seats/internal/model"
)

// RoomRepo reads study rooms.  Rooms are created only by the seed command;
// the HTTP API never edits them.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// GetByID returns the room or ErrRoomNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	const q = `SELECT id, name, building, floor, capacity, status, created_at, updated_at
	           FROM rooms WHERE id = ?`
	var (
		room     model.Room
		building sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&room.ID, &room.Name, &building, &room.Floor, &room.Capacity,
		&room.Status, &room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if building.Valid {
		b := building.String
		room.Building = &b
	}
	return &room, nil
}

// CreateTx inserts room inside tx.  An empty ID is replaced with a fresh
// UUID and the timestamps are written back.
func (r *RoomRepo) CreateTx(ctx context.Context, tx *sql.Tx, room *model.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Status == "" {
		room.Status = model.RoomActive
	}
	now := time.Now().UTC()
	room.CreatedAt, room.UpdatedAt = now, now
	const q = `INSERT INTO rooms (id, name, building, floor, capacity, status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var building sql.NullString
	if room.Building != nil {
		building = sql.NullString{String: *room.Building, Valid: true}
	}
	_, err := tx.ExecContext(ctx, q,
		room.ID, room.Name, building, room.Floor, room.Capacity, room.Status, now, now)
	return err
}
