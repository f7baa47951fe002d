package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/model"
)

func TestRoomRepo_CreateTx(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO rooms`).
		WithArgs(sqlmock.AnyArg(), "Reading Room", nil, 1, 12, "active", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	room := &model.Room{Name: "Reading Room", Floor: 1, Capacity: 12}
	require.NoError(t, NewRoomRepo(db).CreateTx(context.Background(), tx, room))
	require.NoError(t, tx.Commit())

	assert.Len(t, room.ID, 36)
	assert.Equal(t, model.RoomActive, room.Status)
	assert.False(t, room.CreatedAt.IsZero())
}

func TestSeatRepo_CreateBatchTx(t *testing.T) {
	db, mock := newMock(t)
	sensor := "seat-0-0"
	seats := []model.Seat{
		{RoomID: "room-1", SeatNumber: "A1", Features: allocation.Features{HasWindow: true}, SensorID: &sensor},
		{ID: "fixed", RoomID: "room-1", SeatNumber: "A2", ColPosition: 1, Status: allocation.StatusMaintenance},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO seats .* VALUES \(\?(, \?){9}\), \(\?(, \?){9}\)`).
		WithArgs(
			sqlmock.AnyArg(), "room-1", "A1", "available",
			`{"hasWindow":true,"hasPowerOutlet":false,"isQuietZone":false,"hasMonitor":false,"isAccessible":false}`,
			0, 0, "seat-0-0", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"fixed", "room-1", "A2", "maintenance", sqlmock.AnyArg(),
			0, 1, nil, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, NewSeatRepo(db).CreateBatchTx(context.Background(), tx, seats))
	require.NoError(t, tx.Commit())

	assert.Len(t, seats[0].ID, 36)
	assert.Equal(t, "fixed", seats[1].ID)
	assert.Equal(t, allocation.StatusAvailable, seats[0].Status)
}

func TestSeatRepo_CreateBatchTx_Empty(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.NoError(t, NewSeatRepo(db).CreateBatchTx(context.Background(), tx, nil))
	require.NoError(t, tx.Rollback())
}
