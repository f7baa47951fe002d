package allocation

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Weights collects the scoring constants. DefaultWeights returns the values
// used in production; tests and experiments may tune a copy.
type Weights struct {
	Base              float64
	FeatureMatch      float64
	AccessiblePenalty float64
	SensorConfidence  float64
	HighConfidence    float64
	MediumConfidence  float64
	CooldownPenalty   float64
	Cooldown          time.Duration
	VacancyBonus      float64
	LongVacancy       time.Duration
	PositionPeakRow   int
	PositionSpan      int
	PositionFactor    float64
	PositionReasonAt  float64
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Base:              50,
		FeatureMatch:      20,
		AccessiblePenalty: 100,
		SensorConfidence:  15,
		HighConfidence:    0.9,
		MediumConfidence:  0.7,
		CooldownPenalty:   30,
		Cooldown:          5 * time.Minute,
		VacancyBonus:      10,
		LongVacancy:       30 * time.Minute,
		PositionPeakRow:   2,
		PositionSpan:      5,
		PositionFactor:    2,
		PositionReasonAt:  5,
	}
}

// DefaultRecommendations is the result count used when a caller asks for
// zero or fewer recommendations.
const DefaultRecommendations = 3

// DefaultAutoRelease is the inactivity threshold used when a caller passes a
// non-positive threshold to ShouldAutoRelease.
const DefaultAutoRelease = 30 * time.Minute

// Engine scores seats. The zero value is not usable; call NewEngine.
type Engine struct {
	w   Weights
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now as the engine's notion of the current time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWeights replaces the default scoring weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.w = w }
}

// NewEngine returns an engine using DefaultWeights and the wall clock unless
// overridden by opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{w: DefaultWeights(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the weights in use.
func (e *Engine) Weights() Weights { return e.w }

// AllocateSeat returns the best available candidate. The boolean is false
// when no candidate has status available. Equal scores keep input order, so
// the earliest candidate wins a tie.
func (e *Engine) AllocateSeat(candidates []Seat, prefs Preferences) (*Result, bool) {
	ranked := e.rank(candidates, prefs)
	if len(ranked) == 0 {
		return nil, false
	}
	best := ranked[0]
	return &best, true
}

// Recommendations returns up to count available seats ordered by
// descending score. A non-positive count means DefaultRecommendations.
func (e *Engine) Recommendations(seats []Seat, prefs Preferences, count int) []Result {
	if count <= 0 {
		count = DefaultRecommendations
	}
	ranked := e.rank(seats, prefs)
	if len(ranked) > count {
		ranked = ranked[:count]
	}
	return ranked
}

// ShouldAutoRelease reports whether strictly more than threshold has passed
// since lastActivityAt. A non-positive threshold means DefaultAutoRelease.
func (e *Engine) ShouldAutoRelease(lastActivityAt time.Time, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultAutoRelease
	}
	return e.now().Sub(lastActivityAt) > threshold
}

func (e *Engine) rank(seats []Seat, prefs Preferences) []Result {
	out := make([]Result, 0, len(seats))
	for _, s := range seats {
		if s.Status != StatusAvailable {
			continue
		}
		out = append(out, e.Score(s, prefs))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Score evaluates a single seat. It does not look at the seat's status;
// filtering to available seats is the caller's job (AllocateSeat and
// Recommendations do it).
func (e *Engine) Score(seat Seat, prefs Preferences) Result {
	w := e.w
	now := e.now()
	score := w.Base
	reasons := make([]string, 0, 6)

	f := seat.Features
	if isSet(prefs.PreferWindow) && f.HasWindow {
		score += w.FeatureMatch
		reasons = append(reasons, "Window seat preference matched")
	}
	if isSet(prefs.PreferQuiet) && f.IsQuietZone {
		score += w.FeatureMatch
		reasons = append(reasons, "Quiet zone preference matched")
	}
	if isSet(prefs.PreferPowerOutlet) && f.HasPowerOutlet {
		score += w.FeatureMatch
		reasons = append(reasons, "Power outlet available")
	}
	if isSet(prefs.PreferMonitor) && f.HasMonitor {
		score += w.FeatureMatch
		reasons = append(reasons, "Monitor available")
	}
	if isSet(prefs.NeedsAccessible) {
		if f.IsAccessible {
			score += 2 * w.FeatureMatch
			reasons = append(reasons, "Accessible seat")
		} else {
			score -= w.AccessiblePenalty
			reasons = append(reasons, "Not accessible - lower priority")
		}
	}

	switch {
	case seat.SensorConfidence >= w.HighConfidence:
		score += w.SensorConfidence
		reasons = append(reasons, "High sensor confidence")
	case seat.SensorConfidence >= w.MediumConfidence:
		score += w.SensorConfidence / 2
		reasons = append(reasons, "Medium sensor confidence")
	default:
		score -= w.SensorConfidence
		reasons = append(reasons, "Low sensor confidence")
	}

	if seat.LastOccupiedAt != nil {
		since := now.Sub(*seat.LastOccupiedAt)
		if since < w.Cooldown {
			score -= w.CooldownPenalty
			reasons = append(reasons, fmt.Sprintf("Recently vacated (%dmin ago)", int(math.Round(since.Minutes()))))
		}
	}

	if seat.LastVacantAt != nil && now.Sub(*seat.LastVacantAt) > w.LongVacancy {
		score += w.VacancyBonus
		reasons = append(reasons, "Long vacancy period - well rested")
	}

	dist := seat.RowPosition - w.PositionPeakRow
	if dist < 0 {
		dist = -dist
	}
	rowScore := float64(max(0, w.PositionSpan-dist)) * w.PositionFactor
	score += rowScore
	if rowScore > w.PositionReasonAt {
		reasons = append(reasons, "Optimal row position")
	}

	return Result{
		SeatID:     seat.ID,
		SeatNumber: seat.SeatNumber,
		Score:      math.Max(0, score),
		Reasons:    reasons,
	}
}
