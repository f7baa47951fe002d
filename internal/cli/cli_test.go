package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/study-room-seats/internal/simulator"
	"github.com/iliyamo/study-room-seats/internal/utils"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.FatalLevel)
	}
	os.Exit(m.Run())
}

func TestSeedLayout(t *testing.T) {
	seats := seedLayout("room-1", 5, 6)
	require.Len(t, seats, 30)

	first := seats[0]
	assert.Equal(t, "A1", first.SeatNumber)
	require.NotNil(t, first.SensorID)
	assert.Equal(t, "seat-0-0", *first.SensorID)
	assert.True(t, first.Features.HasWindow)
	assert.True(t, first.Features.IsAccessible)
	assert.True(t, first.Features.HasPowerOutlet)
	assert.False(t, first.Features.IsQuietZone)

	c3 := seats[2] // A3
	assert.True(t, c3.Features.HasMonitor)
	assert.False(t, c3.Features.HasWindow)

	last := seats[29] // E6
	assert.Equal(t, "E6", last.SeatNumber)
	assert.Equal(t, "seat-4-5", *last.SensorID)
	assert.True(t, last.Features.IsQuietZone)
	assert.False(t, last.Features.IsAccessible)

	for _, s := range seats {
		assert.Equal(t, "room-1", s.RoomID)
	}
}

func TestSeedLayoutMatchesSimulator(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.Seed, cfg.Interval = 3, time.Hour
	sim, err := simulator.New(cfg)
	require.NoError(t, err)
	defer sim.Close()

	seats := seedLayout("r", cfg.Rows, cfg.Cols)
	simSeats := sim.Seats()
	require.Len(t, seats, len(simSeats))
	for i := range seats {
		assert.Equal(t, simSeats[i].ID, *seats[i].SensorID)
		assert.Equal(t, simSeats[i].SeatNumber, seats[i].SeatNumber)
	}
}

func TestReadingPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newReadingPrinter(&buf)
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	require.NoError(t, p.OnReadings([]simulator.SensorReading{
		{SeatID: "seat-0-0", SensorType: "fused", IsOnline: true, Confidence: 0.95, Timestamp: now},
		{SeatID: "seat-0-1", SensorType: "fused", Timestamp: now},
	}))

	sc := bufio.NewScanner(&buf)
	var ids []string
	for sc.Scan() {
		var r simulator.SensorReading
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		ids = append(ids, r.SeatID)
	}
	assert.Equal(t, []string{"seat-0-0", "seat-0-1"}, ids)
}

func TestSimulatorConfig(t *testing.T) {
	t.Setenv("SIM_ROWS", "3")
	t.Setenv("SIM_COLS", "4")

	cfg, err := simulatorConfig("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Rows)
	assert.Equal(t, 4, cfg.Cols)

	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cols: 8\ninterval: 500ms\n"), 0o600))
	cfg, err = simulatorConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Rows)
	assert.Equal(t, 8, cfg.Cols)
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)

	t.Setenv("SIM_ROWS", "0")
	_, err = simulatorConfig("")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--sub", "student-7", "--role", "admin", "--ttl", "5m", "--log", "fatal"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())

	var tok utils.AccessToken
	require.NoError(t, json.Unmarshal(out.Bytes(), &tok))
	assert.NotEmpty(t, tok.Token)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), tok.Exp, 10*time.Second)
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { logrus.SetLevel(logrus.FatalLevel) })
	setupLogging("debug")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	t.Setenv("LOG_LEVEL", "warn")
	setupLogging("")
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
}
