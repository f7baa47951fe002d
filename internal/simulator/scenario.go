package simulator

import "fmt"

// Scenario names a deterministic occupancy preset used for demos and tests.
type Scenario string

const (
	ScenarioMorningRush     Scenario = "morning_rush"
	ScenarioAfternoonSteady Scenario = "afternoon_steady"
	ScenarioEveningQuiet    Scenario = "evening_quiet"
	ScenarioRandom          Scenario = "random"
)

// Scenarios lists the built-in presets.
func Scenarios() []Scenario {
	return []Scenario{ScenarioMorningRush, ScenarioAfternoonSteady, ScenarioEveningQuiet, ScenarioRandom}
}

// occupiedAt reports whether seat index i is occupied under a fixed
// pattern. The random preset is handled separately.
func (sc Scenario) occupiedAt(i int) (bool, bool) {
	switch sc {
	case ScenarioMorningRush:
		return i%10 < 7, true
	case ScenarioAfternoonSteady:
		return i%2 == 0, true
	case ScenarioEveningQuiet:
		return i%5 == 0, true
	}
	return false, false
}

// ApplyScenario overwrites every seat with occupied or vacant according to
// the preset, walking seats in grid order. Each seat is set as with
// SetSeatState, so pending transitions are cancelled. The random preset
// occupies each seat independently with probability 0.4.
func (s *Simulator) ApplyScenario(sc Scenario) error {
	if sc != ScenarioRandom {
		if _, ok := sc.occupiedAt(0); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownScenario, sc)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, st := range s.seats {
		var occupied bool
		if sc == ScenarioRandom {
			occupied = s.rng.Float64() > 0.6
		} else {
			occupied, _ = sc.occupiedAt(i)
		}
		state := StateVacant
		if occupied {
			state = StateOccupied
		}
		s.setLocked(st, state)
	}
	s.log.WithField("scenario", string(sc)).Info("simulator: scenario applied")
	return nil
}
