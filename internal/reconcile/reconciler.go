package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/metrics"
	"github.com/iliyamo/study-room-seats/internal/model"
	"github.com/iliyamo/study-room-seats/internal/repository"
	"github.com/iliyamo/study-room-seats/internal/simulator"
)

// SeatStore is the seat persistence the reconciler needs.
type SeatStore interface {
	ListByRoom(ctx context.Context, roomID string) ([]model.Seat, error)
	ApplyReading(ctx context.Context, u repository.ReadingUpdate) (bool, error)
}

// ReadingStore persists raw readings.
type ReadingStore interface {
	InsertBatch(ctx context.Context, readings []model.SensorReading) error
}

// Reconciler maps simulated seats onto the stored seats of one room by
// sensor id and applies every reading batch to them.  It implements
// simulator.Listener.
type Reconciler struct {
	RoomID   string
	Seats    SeatStore
	Readings ReadingStore // optional
	Metrics  *metrics.Metrics
	Timeout  time.Duration
	Log      *logrus.Entry
}

// NewReconciler returns a reconciler for roomID with a 5s write budget
// per batch.
func NewReconciler(roomID string, seats SeatStore, readings ReadingStore, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		RoomID:   roomID,
		Seats:    seats,
		Readings: readings,
		Metrics:  m,
		Timeout:  5 * time.Second,
		Log:      logrus.WithFields(logrus.Fields{"component": "reconciler", "room": roomID}),
	}
}

var _ simulator.Listener = (*Reconciler)(nil)

// OnReadings applies one batch.  Readings for sensors without a stored
// seat are dropped; failures on one seat do not stop the others.
func (r *Reconciler) OnReadings(batch []simulator.SensorReading) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()
	return r.Apply(ctx, batch)
}

// Apply is OnReadings with a caller-supplied context.
func (r *Reconciler) Apply(ctx context.Context, batch []simulator.SensorReading) error {
	if len(batch) == 0 {
		return nil
	}
	seats, err := r.Seats.ListByRoom(ctx, r.RoomID)
	if err != nil {
		return fmt.Errorf("reconcile: list seats: %w", err)
	}
	bySensor := make(map[string]model.Seat, len(seats))
	for _, s := range seats {
		if s.SensorID != nil {
			bySensor[*s.SensorID] = s
		}
	}

	var (
		errs     []error
		records  = make([]model.SensorReading, 0, len(batch))
		online   int
		unmapped int
	)
	for _, rd := range batch {
		seat, ok := bySensor[rd.SeatID]
		if !ok {
			unmapped++
			continue
		}
		if rd.IsOnline {
			online++
		}
		rec, err := record(seat.ID, rd)
		if err != nil {
			errs = append(errs, err)
		} else {
			records = append(records, rec)
		}
		if err := r.applyOne(ctx, seat, rd); err != nil {
			errs = append(errs, err)
		}
	}
	r.Metrics.Readings(true, online)
	r.Metrics.Readings(false, len(records)-online)
	if unmapped > 0 {
		r.Log.Debugf("reconciler: %d readings without a stored seat", unmapped)
	}

	if r.Readings != nil && len(records) > 0 {
		if err := r.Readings.InsertBatch(ctx, records); err != nil {
			errs = append(errs, fmt.Errorf("reconcile: store readings: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Reconciler) applyOne(ctx context.Context, seat model.Seat, rd simulator.SensorReading) error {
	if seat.Status == allocation.StatusMaintenance {
		return nil
	}
	next := NextStatus(seat.Status, rd)
	if next == seat.Status && rd.Confidence == seat.SensorConfidence {
		return nil
	}
	u := repository.ReadingUpdate{SeatID: seat.ID, From: seat.Status, Status: next, Confidence: rd.Confidence}
	if next != seat.Status {
		ts := rd.Timestamp.UTC()
		if next == allocation.StatusOccupied {
			u.OccupiedAt = &ts
		}
		if seat.Status == allocation.StatusOccupied {
			u.VacantAt = &ts
		}
	}
	applied, err := r.Seats.ApplyReading(ctx, u)
	if err != nil {
		return fmt.Errorf("reconcile: seat %s: %w", seat.SeatNumber, err)
	}
	if !applied {
		r.Log.WithField("seat", seat.SeatNumber).Debug("reconciler: seat changed since read, skipped")
		return nil
	}
	if next != seat.Status {
		r.Metrics.Transition(string(seat.Status), string(next))
		r.Log.WithFields(logrus.Fields{
			"seat": seat.SeatNumber, "from": seat.Status, "to": next,
		}).Debug("reconciler: seat status changed")
	}
	return nil
}

func record(seatID string, rd simulator.SensorReading) (model.SensorReading, error) {
	value, err := json.Marshal(rd.Value)
	if err != nil {
		return model.SensorReading{}, fmt.Errorf("reconcile: encode reading %s: %w", rd.SeatID, err)
	}
	return model.SensorReading{
		SeatID:       seatID,
		SensorType:   rd.SensorType,
		Value:        value,
		Confidence:   rd.Confidence,
		BatteryLevel: rd.BatteryLevel,
		RSSI:         rd.RSSI,
		IsOnline:     rd.IsOnline,
		Timestamp:    rd.Timestamp,
	}, nil
}
