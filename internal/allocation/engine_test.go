package allocation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(WithClock(func() time.Time { return fixedNow }))
}

func ago(d time.Duration) *time.Time {
	t := fixedNow.Add(-d)
	return &t
}

// seat returns an available seat in row 0 with full sensor confidence, which
// scores base(50) + confidence(15) + position(6) = 71 without preferences.
func seat(id string) Seat {
	return Seat{ID: id, SeatNumber: id, Status: StatusAvailable, SensorConfidence: 1.0}
}

func TestAllocateSeat_NoAvailableSeats(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		name  string
		seats []Seat
	}{
		{"nil input", nil},
		{"empty input", []Seat{}},
		{"all unavailable", []Seat{
			{ID: "a", Status: StatusReserved},
			{ID: "b", Status: StatusOccupied},
			{ID: "c", Status: StatusOffline},
			{ID: "d", Status: StatusMaintenance},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := e.AllocateSeat(tt.seats, Preferences{})
			assert.False(t, ok)
			assert.Nil(t, res)
		})
	}
}

func TestAllocateSeat_PicksHighestScore(t *testing.T) {
	e := newTestEngine()
	plain := seat("plain")
	window := seat("window")
	window.Features.HasWindow = true
	taken := seat("taken")
	taken.Features.HasWindow = true
	taken.Features.HasMonitor = true
	taken.Status = StatusReserved

	res, ok := e.AllocateSeat([]Seat{plain, taken, window}, Preferences{PreferWindow: Bool(true), PreferMonitor: Bool(true)})
	require.True(t, ok)
	assert.Equal(t, "window", res.SeatID)
	assert.Equal(t, 91.0, res.Score)
}

func TestAllocateSeat_TieKeepsInputOrder(t *testing.T) {
	e := newTestEngine()
	seats := []Seat{seat("s3"), seat("s1"), seat("s2")}

	res, ok := e.AllocateSeat(seats, Preferences{})
	require.True(t, ok)
	assert.Equal(t, "s3", res.SeatID)
}

func TestScore_BaselineAndPosition(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		row        int
		want       float64
		wantReason bool
	}{
		{0, 71, true},
		{1, 73, true},
		{2, 75, true},
		{3, 73, true},
		{4, 71, true},
		{5, 69, false},
		{6, 67, false},
		{7, 65, false},
		{12, 65, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("row_%d", tt.row), func(t *testing.T) {
			s := seat("x")
			s.RowPosition = tt.row
			res := e.Score(s, Preferences{})
			assert.Equal(t, tt.want, res.Score)
			assert.Equal(t, tt.wantReason, contains(res.Reasons, "Optimal row position"))
		})
	}
}

func TestScore_FeatureMatches(t *testing.T) {
	e := newTestEngine()
	s := seat("x")
	s.RowPosition = 5 // position bonus 4, no reason
	s.Features = Features{HasWindow: true, HasPowerOutlet: true, IsQuietZone: true, HasMonitor: true}

	res := e.Score(s, Preferences{
		PreferWindow:      Bool(true),
		PreferQuiet:       Bool(true),
		PreferPowerOutlet: Bool(true),
		PreferMonitor:     Bool(true),
	})
	assert.Equal(t, 50.0+80+15+4, res.Score)
	assert.Equal(t, []string{
		"Window seat preference matched",
		"Quiet zone preference matched",
		"Power outlet available",
		"Monitor available",
		"High sensor confidence",
	}, res.Reasons)
}

func TestScore_AbsentOrFalsePreferenceIsNotScored(t *testing.T) {
	e := newTestEngine()
	s := seat("x")
	s.Features = Features{HasWindow: true}
	noAccess := seat("y")

	unset := e.Score(s, Preferences{})
	falsePref := e.Score(s, Preferences{PreferWindow: Bool(false), NeedsAccessible: Bool(false)})
	falseAccess := e.Score(noAccess, Preferences{NeedsAccessible: Bool(false)})

	assert.Equal(t, 71.0, unset.Score)
	assert.Equal(t, unset, falsePref)
	assert.Equal(t, 71.0, falseAccess.Score)
	assert.NotContains(t, falseAccess.Reasons, "Not accessible - lower priority")
}

func TestScore_Accessibility(t *testing.T) {
	e := newTestEngine()
	prefs := Preferences{NeedsAccessible: Bool(true), PreferPowerOutlet: Bool(true)}

	accessible := seat("acc")
	accessible.Features = Features{IsAccessible: true, HasPowerOutlet: true}
	plain := seat("plain")
	plain.Features = Features{HasPowerOutlet: true}

	a := e.Score(accessible, prefs)
	p := e.Score(plain, prefs)
	assert.Equal(t, 50.0+20+40+15+6, a.Score)
	assert.Equal(t, 0.0, p.Score) // 50+20-100+15+6 clamps to zero
	assert.Contains(t, a.Reasons, "Accessible seat")
	assert.Contains(t, p.Reasons, "Not accessible - lower priority")

	res, ok := e.AllocateSeat([]Seat{plain, accessible}, prefs)
	require.True(t, ok)
	assert.Equal(t, "acc", res.SeatID)
}

func TestScore_ConfidenceTiers(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		confidence float64
		delta      float64
		reason     string
	}{
		{1.0, 15, "High sensor confidence"},
		{0.9, 15, "High sensor confidence"},
		{0.89, 7.5, "Medium sensor confidence"},
		{0.7, 7.5, "Medium sensor confidence"},
		{0.69, -15, "Low sensor confidence"},
		{0, -15, "Low sensor confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			s := seat("x")
			s.RowPosition = 2
			s.SensorConfidence = tt.confidence
			res := e.Score(s, Preferences{})
			assert.Equal(t, 50+10+tt.delta, res.Score)
			assert.Equal(t, []string{tt.reason, "Optimal row position"}, res.Reasons)
		})
	}
}

func TestScore_Cooldown(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		name   string
		since  time.Duration
		delta  float64
		reason string
	}{
		{"just vacated", 20 * time.Second, -30, "Recently vacated (0min ago)"},
		{"rounds half up", 150 * time.Second, -30, "Recently vacated (3min ago)"},
		{"inside window", 4*time.Minute + 50*time.Second, -30, "Recently vacated (5min ago)"},
		{"at threshold", 5 * time.Minute, 0, ""},
		{"long ago", time.Hour, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seat("x")
			s.LastOccupiedAt = ago(tt.since)
			res := e.Score(s, Preferences{})
			assert.Equal(t, 71+tt.delta, res.Score)
			if tt.reason != "" {
				assert.Contains(t, res.Reasons, tt.reason)
			} else {
				for _, r := range res.Reasons {
					assert.NotContains(t, r, "Recently vacated")
				}
			}
		})
	}
}

func TestScore_LongVacancyBonus(t *testing.T) {
	e := newTestEngine()
	long := seat("long")
	long.LastVacantAt = ago(31 * time.Minute)
	edge := seat("edge")
	edge.LastVacantAt = ago(30 * time.Minute)

	assert.Equal(t, 81.0, e.Score(long, Preferences{}).Score)
	assert.Contains(t, e.Score(long, Preferences{}).Reasons, "Long vacancy period - well rested")
	assert.Equal(t, 71.0, e.Score(edge, Preferences{}).Score)
}

func TestScore_ReasonOrder(t *testing.T) {
	e := newTestEngine()
	s := seat("x")
	s.RowPosition = 2
	s.SensorConfidence = 0.75
	s.Features.IsQuietZone = true
	s.LastOccupiedAt = ago(time.Minute)
	s.LastVacantAt = ago(2 * time.Hour)

	res := e.Score(s, Preferences{PreferQuiet: Bool(true)})
	assert.Equal(t, []string{
		"Quiet zone preference matched",
		"Medium sensor confidence",
		"Recently vacated (1min ago)",
		"Long vacancy period - well rested",
		"Optimal row position",
	}, res.Reasons)
	assert.Equal(t, 50+20+7.5-30+10+10, res.Score)
}

func TestScore_ClampedAtZero(t *testing.T) {
	e := newTestEngine()
	s := seat("worst")
	s.RowPosition = 40
	s.SensorConfidence = 0.1
	s.LastOccupiedAt = ago(time.Minute)

	res := e.Score(s, Preferences{NeedsAccessible: Bool(true)})
	assert.Equal(t, 0.0, res.Score)
	assert.Len(t, res.Reasons, 3)
}

func TestRecommendations(t *testing.T) {
	e := newTestEngine()
	var seats []Seat
	for row := 0; row < 5; row++ {
		s := seat(fmt.Sprintf("r%d", row))
		s.RowPosition = row
		seats = append(seats, s)
	}
	seats = append(seats, Seat{ID: "busy", Status: StatusOccupied, RowPosition: 2, SensorConfidence: 1})

	t.Run("top three", func(t *testing.T) {
		got := e.Recommendations(seats, Preferences{}, 3)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"r2", "r1", "r3"}, ids(got))
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
		}
	})
	t.Run("default count", func(t *testing.T) {
		assert.Len(t, e.Recommendations(seats, Preferences{}, 0), DefaultRecommendations)
	})
	t.Run("fewer candidates than count", func(t *testing.T) {
		got := e.Recommendations(seats, Preferences{}, 10)
		assert.Len(t, got, 5)
		assert.NotContains(t, ids(got), "busy")
	})
	t.Run("nothing available", func(t *testing.T) {
		got := e.Recommendations(seats[5:], Preferences{}, 3)
		assert.Empty(t, got)
	})
}

func TestShouldAutoRelease(t *testing.T) {
	e := newTestEngine()
	assert.True(t, e.ShouldAutoRelease(fixedNow.Add(-31*time.Minute), 30*time.Minute))
	assert.False(t, e.ShouldAutoRelease(fixedNow.Add(-29*time.Minute), 30*time.Minute))
	assert.False(t, e.ShouldAutoRelease(fixedNow.Add(-30*time.Minute), 30*time.Minute))
	assert.True(t, e.ShouldAutoRelease(fixedNow.Add(-31*time.Minute), 0))
	assert.True(t, e.ShouldAutoRelease(fixedNow.Add(-11*time.Minute), 10*time.Minute))
}

func TestSeatStatusValid(t *testing.T) {
	assert.True(t, StatusMaintenance.Valid())
	assert.False(t, SeatStatus("selected").Valid())
}

func ids(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.SeatID
	}
	return out
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
