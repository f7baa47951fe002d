package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/study-room-seats/internal/simulator"
)

// LoadSimulatorConfig starts from simulator.DefaultConfig and applies the
// SIM_* environment overrides.
func LoadSimulatorConfig() simulator.Config {
	c := simulator.DefaultConfig()
	c.Rows = envInt("SIM_ROWS", c.Rows)
	c.Cols = envInt("SIM_COLS", c.Cols)
	c.Interval = envDur("SIM_INTERVAL", c.Interval)
	c.Seed = int64(envInt("SIM_SEED", int(c.Seed)))
	c.OfflineProbability = envFloat("SIM_OFFLINE_PROBABILITY", c.OfflineProbability)
	c.ChangeProbability = envFloat("SIM_CHANGE_PROBABILITY", c.ChangeProbability)
	c.InitialOccupied = envFloat("SIM_INITIAL_OCCUPIED", c.InitialOccupied)
	return c
}

// LoadSimulatorFile overlays the YAML document at path on base.  Unknown
// keys are rejected so a typo cannot silently fall back to a default.
func LoadSimulatorFile(path string, base simulator.Config) (simulator.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read simulator config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	cfg := base
	if err := dec.Decode(&cfg); err != nil {
		return base, fmt.Errorf("parse simulator config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}
