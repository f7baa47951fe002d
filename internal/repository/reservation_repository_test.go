package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/model"
)

var reservationCols = []string{
	"id", "user_id", "room_id", "seat_id", "status", "auto_assigned", "preferences",
	"start_time", "end_time", "checked_in_at", "checked_out_at", "last_activity_at", "created_at", "updated_at",
}

func TestReservationRepo_CreateTx_AssignsID(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO reservations`).
		WithArgs(sqlmock.AnyArg(), "u1", "room-1", "s1", "confirmed", true, `{"preferWindow":true}`,
			now, now.Add(2*time.Hour), now, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	res := &model.Reservation{
		UserID:         "u1",
		RoomID:         "room-1",
		SeatID:         "s1",
		Status:         model.ReservationConfirmed,
		AutoAssigned:   true,
		Preferences:    &allocation.Preferences{PreferWindow: allocation.Bool(true)},
		StartTime:      now,
		EndTime:        now.Add(2 * time.Hour),
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, NewReservationRepo(db).CreateTx(context.Background(), tx, res))
	require.NoError(t, tx.Commit())
	assert.Len(t, res.ID, 36)
}

func TestReservationRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM reservations WHERE id = \?`).WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(reservationCols).AddRow(
			"r1", "u1", "room-1", "s1", "checked_in", true, `{"preferQuiet":true}`,
			now, now.Add(time.Hour), now.Add(5*time.Minute), nil, now.Add(5*time.Minute), now, now))
	mock.ExpectQuery(`FROM reservations WHERE id = \?`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(reservationCols))

	repo := NewReservationRepo(db)
	res, err := repo.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCheckedIn, res.Status)
	require.NotNil(t, res.Preferences)
	assert.Equal(t, allocation.Bool(true), res.Preferences.PreferQuiet)
	assert.Nil(t, res.Preferences.PreferWindow)
	require.NotNil(t, res.CheckedInAt)
	assert.Nil(t, res.CheckedOutAt)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestReservationRepo_ListAwaitingCheckIn(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`WHERE status = \? AND checked_in_at IS NULL AND start_time <= \?`).
		WithArgs("confirmed", now).
		WillReturnRows(sqlmock.NewRows(reservationCols).
			AddRow("r1", "u1", "room-1", "s1", "confirmed", false, nil, now, now, nil, nil, now, now, now).
			AddRow("r2", "u2", "room-1", "s2", "confirmed", true, "null", now, now, nil, nil, now, now, now))

	list, err := NewReservationRepo(db).ListAwaitingCheckIn(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].Preferences)
	assert.Nil(t, list[1].Preferences)
}

func TestReservationRepo_TransitionTx(t *testing.T) {
	at := time.Date(2025, 3, 10, 14, 10, 0, 0, time.UTC)
	tests := []struct {
		name     string
		tr       Transition
		query    string
		args     []driver.Value
		affected int64
		wantErr  error
	}{
		{
			name:     "check in stamps checked_in_at",
			tr:       Transition{ID: "r1", From: model.ReservationConfirmed, To: model.ReservationCheckedIn, At: at, CheckedIn: true},
			query:    `UPDATE reservations SET status = ?, last_activity_at = ?, updated_at = ?, checked_in_at = ? WHERE id = ? AND status = ?`,
			args:     []driver.Value{"checked_in", at, at, at, "r1", "confirmed"},
			affected: 1,
		},
		{
			name:     "cancel after check in stamps checked_out_at",
			tr:       Transition{ID: "r1", From: model.ReservationCheckedIn, To: model.ReservationCancelled, At: at, CheckedOut: true},
			query:    `UPDATE reservations SET status = ?, last_activity_at = ?, updated_at = ?, checked_out_at = ? WHERE id = ? AND status = ?`,
			args:     []driver.Value{"cancelled", at, at, at, "r1", "checked_in"},
			affected: 1,
		},
		{
			name:     "stale status conflicts",
			tr:       Transition{ID: "r1", From: model.ReservationConfirmed, To: model.ReservationNoShow, At: at},
			query:    `UPDATE reservations SET status = ?, last_activity_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			args:     []driver.Value{"no_show", at, at, "r1", "confirmed"},
			affected: 0,
			wantErr:  ErrConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(tt.query)).
				WithArgs(tt.args...).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectRollback()

			tx, err := db.Begin()
			require.NoError(t, err)
			err = NewReservationRepo(db).TransitionTx(context.Background(), tx, tt.tr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, tx.Rollback())
		})
	}
}

func TestReadingRepo_InsertBatch(t *testing.T) {
	db, mock := newMock(t)
	ts := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`VALUES (?, ?, ?, ?, ?, ?, ?, ?),(?, ?, ?, ?, ?, ?, ?, ?)`)).
		WithArgs(
			"s1", "fusion", `{"detected":true}`, 0.9, 88, -52, true, ts,
			"s2", "fusion", `{"detected":false}`, 0.0, 0, 0, false, ts,
		).
		WillReturnResult(sqlmock.NewResult(2, 2))

	repo := NewReadingRepo(db)
	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	require.NoError(t, repo.InsertBatch(context.Background(), []model.SensorReading{
		{SeatID: "s1", SensorType: "fusion", Value: []byte(`{"detected":true}`), Confidence: 0.9, BatteryLevel: 88, RSSI: -52, IsOnline: true, Timestamp: ts},
		{SeatID: "s2", SensorType: "fusion", Value: []byte(`{"detected":false}`), Timestamp: ts},
	}))
}
