package simulator

import (
	"fmt"
	"time"
)

// Config controls the grid size and the stochastic behaviour of the
// simulation. The grid is fixed once a Simulator is built.
type Config struct {
	Rows     int           `yaml:"rows"`
	Cols     int           `yaml:"cols"`
	Interval time.Duration `yaml:"interval"`
	// Seed drives the random source. Zero seeds from the wall clock.
	Seed int64 `yaml:"seed"`

	InitialOccupied    float64 `yaml:"initial_occupied"`
	OfflineProbability float64 `yaml:"offline_probability"`
	RestoreProbability float64 `yaml:"restore_probability"`
	ChangeProbability  float64 `yaml:"change_probability"`
	VacantGate         float64 `yaml:"vacant_gate"`
	OccupiedGate       float64 `yaml:"occupied_gate"`
	MotionMiss         float64 `yaml:"motion_miss"`

	OccupyDelay time.Duration `yaml:"occupy_delay"`
	VacateDelay time.Duration `yaml:"vacate_delay"`

	MinBattery      int `yaml:"min_battery"`
	RSSIBase        int `yaml:"rssi_base"`
	RSSIFluctuation int `yaml:"rssi_fluctuation"`
}

// DefaultConfig is a 5x6 study room ticking every three seconds.
func DefaultConfig() Config {
	return Config{
		Rows:               5,
		Cols:               6,
		Interval:           3 * time.Second,
		InitialOccupied:    0.3,
		OfflineProbability: 0.02,
		RestoreProbability: 0.5,
		ChangeProbability:  0.15,
		VacantGate:         0.3,
		OccupiedGate:       0.1,
		MotionMiss:         0.1,
		OccupyDelay:        2000 * time.Millisecond,
		VacateDelay:        1500 * time.Millisecond,
		MinBattery:         10,
		RSSIBase:           -50,
		RSSIFluctuation:    10,
	}
}

// Validate checks that the grid is non-empty, durations are positive and
// every probability lies in [0,1].
func (c Config) Validate() error {
	if c.Rows <= 0 || c.Cols <= 0 {
		return fmt.Errorf("simulator: grid must be at least 1x1, got %dx%d", c.Rows, c.Cols)
	}
	if c.Rows > 26 {
		return fmt.Errorf("simulator: at most 26 rows are supported, got %d", c.Rows)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("simulator: interval must be positive, got %s", c.Interval)
	}
	if c.OccupyDelay < 0 || c.VacateDelay < 0 {
		return fmt.Errorf("simulator: transition delays must not be negative")
	}
	probs := map[string]float64{
		"initial_occupied":    c.InitialOccupied,
		"offline_probability": c.OfflineProbability,
		"restore_probability": c.RestoreProbability,
		"change_probability":  c.ChangeProbability,
		"vacant_gate":         c.VacantGate,
		"occupied_gate":       c.OccupiedGate,
		"motion_miss":         c.MotionMiss,
	}
	for name, p := range probs {
		if p < 0 || p > 1 {
			return fmt.Errorf("simulator: %s must be within [0,1], got %v", name, p)
		}
	}
	return nil
}
