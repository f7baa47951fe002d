package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Timer is a pending one-shot action.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. The default uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Option customises a Simulator.
type Option func(*Simulator)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithScheduler sets the scheduler used for delayed state transitions.
func WithScheduler(sch Scheduler) Option {
	return func(s *Simulator) { s.sched = sch }
}

// WithLogger sets the log entry used for listener failures and lifecycle
// messages.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Simulator) { s.log = l }
}

// seat is the mutable per-seat record. target and pending describe an
// in-flight transition; gen invalidates callbacks of superseded transitions.
type seat struct {
	SimulatedSeat
	target  State
	delay   time.Duration
	pending Timer
	gen     uint64
}

type subscription struct {
	id uint64
	l  Listener
}

// Simulator owns a fixed grid of simulated seats. Seat state is guarded by
// a mutex because transition timers fire on their own goroutines; listeners
// are always invoked outside the lock, one after another.
type Simulator struct {
	cfg   Config
	now   func() time.Time
	sched Scheduler
	log   *logrus.Entry

	mu      sync.Mutex
	rng     *rand.Rand
	seats   []*seat
	byID    map[string]*seat
	running bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}

	subMu  sync.Mutex
	subs   []subscription
	nextID uint64
}

// New builds a simulator for cfg. Seats are initialised immediately: each
// starts occupied with probability cfg.InitialOccupied, with an occupancy
// propensity drawn from [0.3, 0.7] that never changes afterwards.
func New(cfg Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:   cfg,
		now:   time.Now,
		sched: realScheduler{},
		log:   logrus.WithField("component", "simulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(seed))
	s.initSeats()
	return s, nil
}

func (s *Simulator) initSeats() {
	now := s.now()
	s.seats = make([]*seat, 0, s.cfg.Rows*s.cfg.Cols)
	s.byID = make(map[string]*seat, s.cfg.Rows*s.cfg.Cols)
	for row := 0; row < s.cfg.Rows; row++ {
		for col := 0; col < s.cfg.Cols; col++ {
			state := StateVacant
			if s.rng.Float64() < s.cfg.InitialOccupied {
				state = StateOccupied
			}
			st := &seat{SimulatedSeat: SimulatedSeat{
				ID:                   SeatID(row, col),
				SeatNumber:           SeatNumber(row, col),
				Row:                  row,
				Col:                  col,
				State:                state,
				LastStateChange:      now.Add(-time.Duration(s.rng.Float64() * float64(time.Hour))),
				OccupancyProbability: 0.3 + s.rng.Float64()*0.4,
			}}
			s.seats = append(s.seats, st)
			s.byID[st.ID] = st
		}
	}
}

// SeatID is the stable identifier of the seat at row, col.
func SeatID(row, col int) string { return fmt.Sprintf("seat-%d-%d", row, col) }

// SeatNumber is the human label of the seat at row, col, e.g. "B3".
func SeatNumber(row, col int) string { return fmt.Sprintf("%c%d", rune('A'+row), col+1) }

// Config returns the configuration the simulator was built with.
func (s *Simulator) Config() Config { return s.cfg }

// Start begins periodic emission. One batch is produced and delivered
// synchronously before Start returns; later batches follow every
// cfg.Interval. Calling Start on a running simulator does nothing.
func (s *Simulator) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	for _, st := range s.seats {
		if st.State == StateTransitioning && st.target != "" && st.pending == nil {
			s.armLocked(st, st.target, st.delay)
		}
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	s.log.WithField("interval", s.cfg.Interval).Info("simulator: started")
	s.Tick()
	go s.loop(stop, done)
	return nil
}

// Stop halts periodic emission and cancels in-flight transitions. Seat
// state is kept; seats caught mid-transition resume it on the next Start.
// Stop waits for the tick loop to exit, so it must not be called from a
// Listener.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for _, st := range s.seats {
		if st.pending != nil {
			st.pending.Stop()
			st.pending = nil
			st.gen++
		}
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.log.Info("simulator: stopped")
}

// Close stops the simulator, drops pending transitions and removes every
// listener. A closed simulator cannot be restarted.
func (s *Simulator) Close() {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	for _, st := range s.seats {
		st.target = ""
	}
	s.mu.Unlock()

	s.subMu.Lock()
	s.subs = nil
	s.subMu.Unlock()
}

// Running reports whether periodic emission is active.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			select {
			case <-stop:
				return
			default:
			}
			s.Tick()
		}
	}
}

// Subscribe registers l for every future batch and returns a function that
// removes it again. The returned function is safe to call more than once.
func (s *Simulator) Subscribe(l Listener) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, l: l})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Tick advances every seat by one step, synthesises a reading per seat and
// delivers the batch to all listeners. It returns the batch.
//
// On a stopped simulator Tick arms no timers: a transition begun by one
// Tick settles on the next, or is armed by Start.
func (s *Simulator) Tick() []SensorReading {
	s.mu.Lock()
	readings := make([]SensorReading, 0, len(s.seats))
	for _, st := range s.seats {
		s.stepLocked(st)
		readings = append(readings, s.readingLocked(st))
	}
	s.mu.Unlock()

	s.notify(readings)
	return readings
}

func (s *Simulator) stepLocked(st *seat) {
	if !s.running && st.State == StateTransitioning && st.target != "" && st.pending == nil {
		s.settleLocked(st)
		return
	}
	r := s.rng.Float64()
	cfg := s.cfg

	if r < cfg.OfflineProbability {
		s.cancelLocked(st)
		st.State = StateOffline
		return
	}
	if st.State == StateOffline {
		if r > cfg.RestoreProbability {
			st.State = StateVacant
			st.LastStateChange = s.now()
		}
		return
	}
	if r >= cfg.ChangeProbability {
		return
	}
	switch {
	case st.State == StateVacant && r < st.OccupancyProbability*cfg.VacantGate:
		st.State = StateTransitioning
		s.armLocked(st, StateOccupied, cfg.OccupyDelay)
	case st.State == StateOccupied && r < cfg.OccupiedGate:
		st.State = StateTransitioning
		s.armLocked(st, StateVacant, cfg.VacateDelay)
	}
}

// armLocked schedules st to settle into target after delay. The callback
// is ignored if the seat's generation moved on in the meantime. While
// stopped only the target is recorded.
func (s *Simulator) armLocked(st *seat, target State, delay time.Duration) {
	st.gen++
	gen := st.gen
	st.target = target
	st.delay = delay
	if !s.running {
		return
	}
	st.pending = s.sched.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if st.gen != gen {
			return
		}
		s.settleLocked(st)
	})
}

func (s *Simulator) settleLocked(st *seat) {
	st.State = st.target
	st.LastStateChange = s.now()
	st.pending = nil
	st.target = ""
}

func (s *Simulator) cancelLocked(st *seat) {
	if st.pending != nil {
		st.pending.Stop()
		st.pending = nil
	}
	st.target = ""
	st.gen++
}

func (s *Simulator) readingLocked(st *seat) SensorReading {
	online := st.State != StateOffline
	detected := st.State == StateOccupied || st.State == StateTransitioning

	motion := detected && s.rng.Float64() > s.cfg.MotionMiss
	var distance float64
	if detected {
		distance = 30 + s.rng.Float64()*50
	} else {
		distance = 150 + s.rng.Float64()*100
	}
	near := distance < 100

	var confidence float64
	switch {
	case motion && near:
		confidence = 0.95 + s.rng.Float64()*0.05
	case motion || near:
		confidence = 0.7 + s.rng.Float64()*0.15
	default:
		confidence = 0.85 + s.rng.Float64()*0.1
	}
	confidence = math.Min(1, math.Max(0, roundHalfUp(confidence*100)/100))

	battery := int(roundHalfUp(100 - s.rng.Float64()*30))
	if battery < s.cfg.MinBattery {
		battery = s.cfg.MinBattery
	}
	rssi := int(roundHalfUp(float64(s.cfg.RSSIBase) - s.rng.Float64()*float64(s.cfg.RSSIFluctuation)))
	dist := int(roundHalfUp(distance))

	return SensorReading{
		SeatID:     st.ID,
		SensorType: SensorCombined,
		Value: ReadingValue{
			Detected: detected,
			Distance: &dist,
			Motion:   &motion,
		},
		Confidence:   confidence,
		BatteryLevel: battery,
		RSSI:         rssi,
		IsOnline:     online,
		Timestamp:    s.now(),
	}
}

func (s *Simulator) notify(readings []SensorReading) {
	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		s.deliver(sub, readings)
	}
}

func (s *Simulator) deliver(sub subscription, readings []SensorReading) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("listener", sub.id).Errorf("simulator: listener panicked: %v", r)
		}
	}()
	if err := sub.l.OnReadings(readings); err != nil {
		s.log.WithField("listener", sub.id).WithError(err).Warn("simulator: listener failed")
	}
}

// SetSeatState forces a seat into state, bypassing the probability rules
// and cancelling any in-flight transition for that seat.
func (s *Simulator) SetSeatState(seatID string, state State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byID[seatID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSeat, seatID)
	}
	s.setLocked(st, state)
	return nil
}

func (s *Simulator) setLocked(st *seat, state State) {
	s.cancelLocked(st)
	st.State = state
	st.LastStateChange = s.now()
}

// Seats returns a snapshot of every seat in grid order.
func (s *Simulator) Seats() []SimulatedSeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SimulatedSeat, len(s.seats))
	for i, st := range s.seats {
		out[i] = st.SimulatedSeat
	}
	return out
}

// SeatStates returns a snapshot keyed by seat id.
func (s *Simulator) SeatStates() map[string]SimulatedSeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]SimulatedSeat, len(s.seats))
	for _, st := range s.seats {
		out[st.ID] = st.SimulatedSeat
	}
	return out
}

// Seat returns a snapshot of one seat.
func (s *Simulator) Seat(seatID string) (SimulatedSeat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byID[seatID]
	if !ok {
		return SimulatedSeat{}, false
	}
	return st.SimulatedSeat, true
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(v float64) float64 { return math.Floor(v + 0.5) }
