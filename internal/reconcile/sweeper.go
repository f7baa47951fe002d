package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/model"
	"github.com/iliyamo/study-room-seats/internal/repository"
)

// Releaser lists and releases reservations awaiting check-in.
type Releaser interface {
	AwaitingCheckIn(ctx context.Context) ([]model.Reservation, error)
	ReleaseNoShow(ctx context.Context, res model.Reservation) error
}

// Sweeper periodically releases confirmed reservations whose holder has
// been inactive for longer than Threshold.  Inactivity is counted from
// the later of the reservation start and the last activity.
type Sweeper struct {
	Source    Releaser
	Engine    *allocation.Engine
	Threshold time.Duration
	Interval  time.Duration
	Log       *logrus.Entry
}

// NewSweeper returns a sweeper; non-positive durations fall back to the
// engine default threshold and a one minute interval.
func NewSweeper(src Releaser, engine *allocation.Engine, threshold, interval time.Duration) *Sweeper {
	if threshold <= 0 {
		threshold = allocation.DefaultAutoRelease
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		Source:    src,
		Engine:    engine,
		Threshold: threshold,
		Interval:  interval,
		Log:       logrus.WithField("component", "sweeper"),
	}
}

// Run sweeps once immediately and then every Interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		if n, err := s.Sweep(ctx); err != nil {
			s.Log.Warnf("sweeper: %v", err)
		} else if n > 0 {
			s.Log.Infof("sweeper: released %d reservations", n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Sweep releases every stale reservation and returns how many it freed.
// Reservations that changed state under it are skipped silently.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	pending, err := s.Source.AwaitingCheckIn(ctx)
	if err != nil {
		return 0, err
	}
	var (
		released int
		errs     []error
	)
	for _, res := range pending {
		if !s.Engine.ShouldAutoRelease(inactiveSince(res), s.Threshold) {
			continue
		}
		err := s.Source.ReleaseNoShow(ctx, res)
		switch {
		case err == nil:
			released++
		case errors.Is(err, repository.ErrConflict):
		default:
			errs = append(errs, err)
		}
	}
	return released, errors.Join(errs...)
}

func inactiveSince(res model.Reservation) time.Time {
	if res.StartTime.After(res.LastActivityAt) {
		return res.StartTime
	}
	return res.LastActivityAt
}
