package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/metrics"
	"github.com/iliyamo/study-room-seats/internal/model"
	"github.com/iliyamo/study-room-seats/internal/queue"
	"github.com/iliyamo/study-room-seats/internal/repository"
)

var (
	// ErrNoSeatAvailable is returned by Allocate when the room has no
	// available seat left.
	ErrNoSeatAvailable = errors.New("no seat available")
	// ErrRoomUnavailable is returned for rooms that are closed or under
	// maintenance.
	ErrRoomUnavailable = errors.New("room not accepting reservations")
	// ErrInvalidStart is returned when a reservation would start too far
	// in the future; seats are held from the moment they are reserved.
	ErrInvalidStart = errors.New("reservation start too far in the future")
	// ErrSeatUnavailable is returned by Reserve when the chosen seat is
	// not available.
	ErrSeatUnavailable = errors.New("seat not available")
)

// DefaultReservationLength is used when an allocation request names no
// duration.
const DefaultReservationLength = 2 * time.Hour

// MaxStartLead is how far ahead of now a reservation may start.
const MaxStartLead = 15 * time.Minute

// SeatService runs the seat workflows that touch more than one table.
// Each write runs inside a single transaction; events are published
// only after commit and their failure never fails the request.
type SeatService struct {
	db           *sql.DB
	rooms        *repository.RoomRepo
	seats        *repository.SeatRepo
	reservations *repository.ReservationRepo
	engine       *allocation.Engine
	pub          EventPublisher
	metrics      *metrics.Metrics
	log          *logrus.Entry
	now          func() time.Time
}

// Option configures a SeatService.
type Option func(*SeatService)

// WithPublisher sets the event publisher.  Without one events are dropped.
func WithPublisher(p EventPublisher) Option { return func(s *SeatService) { s.pub = p } }

// WithMetrics sets the collectors used for allocation and release counts.
func WithMetrics(m *metrics.Metrics) Option { return func(s *SeatService) { s.metrics = m } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *SeatService) { s.now = now } }

// NewSeatService wires the service over db.  engine must not be nil.
func NewSeatService(db *sql.DB, engine *allocation.Engine, opts ...Option) *SeatService {
	if db == nil || engine == nil {
		panic("nil dependency passed to NewSeatService")
	}
	s := &SeatService{
		db:           db,
		rooms:        repository.NewRoomRepo(db),
		seats:        repository.NewSeatRepo(db),
		reservations: repository.NewReservationRepo(db),
		engine:       engine,
		log:          logrus.WithField("component", "seat-service"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seats returns the seats of an existing room.
func (s *SeatService) Seats(ctx context.Context, roomID string) ([]model.Seat, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.seats.ListByRoom(ctx, roomID)
}

// Utilization summarises the current occupancy of a room.
func (s *SeatService) Utilization(ctx context.Context, roomID string) (allocation.Utilization, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return allocation.Utilization{}, err
	}
	c, err := s.seats.CountByStatus(ctx, roomID)
	if err != nil {
		return allocation.Utilization{}, err
	}
	return allocation.CalculateUtilization(c.Total, c.Occupied, c.Reserved), nil
}

// Recommendations ranks the room's available seats for prefs.
func (s *SeatService) Recommendations(ctx context.Context, roomID string, prefs allocation.Preferences, count int) ([]allocation.Result, error) {
	seats, err := s.Seats(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.engine.Recommendations(model.AllocationSeats(seats), prefs, count), nil
}

// Reservations lists the caller's reservations, newest first.
func (s *SeatService) Reservations(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

// AllocateRequest describes an auto-assignment.
type AllocateRequest struct {
	UserID      string
	RoomID      string
	Preferences allocation.Preferences
	Start       time.Time     // zero means now
	Duration    time.Duration // zero means DefaultReservationLength
}

// Allocation is the outcome of a successful auto-assignment.
type Allocation struct {
	Reservation model.Reservation `json:"reservation"`
	Result      allocation.Result `json:"allocation"`
}

// Allocate picks the best available seat, reserves it and records an
// auto-assigned reservation in one transaction.
func (s *SeatService) Allocate(ctx context.Context, req AllocateRequest) (*Allocation, error) {
	w, err := s.window(req.Start, req.Duration)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}

	var out *Allocation
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		candidates, err := s.seats.ListAvailableForUpdateTx(ctx, tx, req.RoomID)
		if err != nil {
			return fmt.Errorf("list available seats: %w", err)
		}
		best, ok := s.engine.AllocateSeat(model.AllocationSeats(candidates), req.Preferences)
		if !ok {
			s.metrics.Allocation("no_seat")
			return ErrNoSeatAvailable
		}
		prefs := req.Preferences
		res, err := s.holdTx(ctx, tx, req.UserID, req.RoomID, best.SeatID, &prefs, w)
		if err != nil {
			return err
		}
		out = &Allocation{Reservation: *res, Result: *best}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Allocation("assigned")

	score := out.Result.Score
	s.reserved(ctx, out.Reservation, out.Result.SeatNumber, &score, out.Result.Reasons)
	s.log.WithFields(logrus.Fields{
		"reservation": out.Reservation.ID, "seat": out.Result.SeatNumber, "score": score,
	}).Info("seat-service: seat auto-assigned")
	return out, nil
}

// ReserveRequest names the seat a user picked by hand.
type ReserveRequest struct {
	UserID   string
	RoomID   string
	SeatID   string
	Start    time.Time     // zero means now
	Duration time.Duration // zero means DefaultReservationLength
}

// Reserve holds the named seat for the user.  The seat must belong to
// the room and be available; otherwise ErrSeatUnavailable is returned.
func (s *SeatService) Reserve(ctx context.Context, req ReserveRequest) (*model.Reservation, error) {
	w, err := s.window(req.Start, req.Duration)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}

	var (
		out        *model.Reservation
		seatNumber string
	)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		seat, err := s.seats.GetForUpdateTx(ctx, tx, req.SeatID)
		if err != nil {
			return err
		}
		if seat.RoomID != req.RoomID {
			return repository.ErrSeatNotFound
		}
		if seat.Status != allocation.StatusAvailable {
			return ErrSeatUnavailable
		}
		res, err := s.holdTx(ctx, tx, req.UserID, req.RoomID, seat.ID, nil, w)
		if err != nil {
			return err
		}
		out, seatNumber = res, seat.SeatNumber
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Allocation("manual")

	s.reserved(ctx, *out, seatNumber, nil, nil)
	s.log.WithFields(logrus.Fields{
		"reservation": out.ID, "seat": seatNumber,
	}).Info("seat-service: seat reserved")
	return out, nil
}

type reservationWindow struct {
	now, start, end time.Time
}

// window resolves a requested start and duration against the clock.
func (s *SeatService) window(start time.Time, length time.Duration) (reservationWindow, error) {
	now := s.now().UTC()
	if start.IsZero() {
		start = now
	}
	start = start.UTC()
	if start.After(now.Add(MaxStartLead)) {
		return reservationWindow{}, ErrInvalidStart
	}
	if length <= 0 {
		length = DefaultReservationLength
	}
	return reservationWindow{now: now, start: start, end: start.Add(length)}, nil
}

func (s *SeatService) requireActiveRoom(ctx context.Context, roomID string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status != model.RoomActive {
		return ErrRoomUnavailable
	}
	return nil
}

// holdTx flips an available seat to reserved and records the
// confirmed reservation.  prefs is nil for hand-picked seats.
func (s *SeatService) holdTx(ctx context.Context, tx *sql.Tx, userID, roomID, seatID string, prefs *allocation.Preferences, w reservationWindow) (*model.Reservation, error) {
	if err := s.seats.UpdateStatusTx(ctx, tx, seatID, allocation.StatusReserved, allocation.StatusAvailable); err != nil {
		return nil, fmt.Errorf("reserve seat %s: %w", seatID, err)
	}
	res := model.Reservation{
		UserID:         userID,
		RoomID:         roomID,
		SeatID:         seatID,
		Status:         model.ReservationConfirmed,
		AutoAssigned:   prefs != nil,
		Preferences:    prefs,
		StartTime:      w.start,
		EndTime:        w.end,
		LastActivityAt: w.now,
		CreatedAt:      w.now,
		UpdatedAt:      w.now,
	}
	if err := s.reservations.CreateTx(ctx, tx, &res); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	return &res, nil
}

// CheckIn marks the caller's confirmed reservation as checked in and the
// seat as occupied.
func (s *SeatService) CheckIn(ctx context.Context, userID, reservationID string) (*model.Reservation, error) {
	var out *model.Reservation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.GetForUpdateTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != userID {
			return repository.ErrForbidden
		}
		if res.Status != model.ReservationConfirmed && res.Status != model.ReservationPending {
			return repository.ErrConflict
		}
		now := s.now().UTC()
		if err := s.reservations.TransitionTx(ctx, tx, repository.Transition{
			ID: res.ID, From: res.Status, To: model.ReservationCheckedIn, At: now, CheckedIn: true,
		}); err != nil {
			return err
		}
		// The seat may already read occupied from its sensor.
		if err := s.seats.UpdateStatusTx(ctx, tx, res.SeatID, allocation.StatusOccupied,
			allocation.StatusReserved, allocation.StatusAvailable); err != nil && !errors.Is(err, repository.ErrConflict) {
			return err
		}
		res.Status = model.ReservationCheckedIn
		res.CheckedInAt = &now
		res.LastActivityAt = now
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel ends an active reservation and frees its seat.  Only the holder
// may cancel unless asAdmin is set.
func (s *SeatService) Cancel(ctx context.Context, userID, reservationID string, asAdmin bool) error {
	var released *model.Reservation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.GetForUpdateTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != userID && !asAdmin {
			return repository.ErrForbidden
		}
		if !res.Status.Active() {
			return repository.ErrConflict
		}
		if err := s.reservations.TransitionTx(ctx, tx, repository.Transition{
			ID: res.ID, From: res.Status, To: model.ReservationCancelled, At: s.now(),
			CheckedOut: res.Status == model.ReservationCheckedIn,
		}); err != nil {
			return err
		}
		if err := s.freeSeat(ctx, tx, res.SeatID); err != nil {
			return err
		}
		released = res
		return nil
	})
	if err != nil {
		return err
	}
	s.released(ctx, *released, queue.ReasonCancelled)
	return nil
}

// AwaitingCheckIn lists reservations that could be auto-released.
func (s *SeatService) AwaitingCheckIn(ctx context.Context) ([]model.Reservation, error) {
	return s.reservations.ListAwaitingCheckIn(ctx, s.now())
}

// ReleaseNoShow marks an unclaimed reservation no_show and frees its seat.
// It returns repository.ErrConflict when the holder checked in or
// cancelled in the meantime.
func (s *SeatService) ReleaseNoShow(ctx context.Context, res model.Reservation) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.reservations.TransitionTx(ctx, tx, repository.Transition{
			ID: res.ID, From: model.ReservationConfirmed, To: model.ReservationNoShow, At: s.now(),
		}); err != nil {
			return err
		}
		return s.freeSeat(ctx, tx, res.SeatID)
	})
	if err != nil {
		return err
	}
	s.released(ctx, res, queue.ReasonNoShow)
	return nil
}

// freeSeat returns a held seat to available.  A seat the sensors have
// since moved elsewhere is left alone.
func (s *SeatService) freeSeat(ctx context.Context, tx *sql.Tx, seatID string) error {
	err := s.seats.UpdateStatusTx(ctx, tx, seatID, allocation.StatusAvailable,
		allocation.StatusReserved, allocation.StatusOccupied)
	if err != nil && !errors.Is(err, repository.ErrConflict) {
		return err
	}
	return nil
}

func (s *SeatService) reserved(ctx context.Context, res model.Reservation, seatNumber string, score *float64, reasons []string) {
	ev := queue.NewSeatEvent(queue.SeatReservedQueue, res.CreatedAt)
	ev.ReservationID = res.ID
	ev.UserID = res.UserID
	ev.RoomID = res.RoomID
	ev.SeatID = res.SeatID
	ev.SeatNumber = seatNumber
	ev.AutoAssigned = res.AutoAssigned
	ev.Score = score
	ev.Reasons = reasons
	s.publish(ctx, ev)
}

func (s *SeatService) released(ctx context.Context, res model.Reservation, reason string) {
	s.metrics.Release(reason)
	ev := queue.NewSeatEvent(queue.SeatReleasedQueue, s.now())
	ev.ReservationID = res.ID
	ev.UserID = res.UserID
	ev.RoomID = res.RoomID
	ev.SeatID = res.SeatID
	ev.AutoAssigned = res.AutoAssigned
	ev.Reason = reason
	s.publish(ctx, ev)
	s.log.WithFields(logrus.Fields{"reservation": res.ID, "reason": reason}).Info("seat-service: seat released")
}

func (s *SeatService) publish(ctx context.Context, ev queue.SeatEvent) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Warnf("seat-service: publish %s failed: %v", ev.Type, err)
	}
}

func (s *SeatService) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
