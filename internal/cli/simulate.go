package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/study-room-seats/internal/config"
	"github.com/iliyamo/study-room-seats/internal/simulator"
	"github.com/iliyamo/study-room-seats/internal/telemetry"
)

var (
	simConfigPath string // --config YAML overlay
	simScenario   string // preset applied before the first tick
	simTicks      int    // 0 runs until interrupted
	simQuiet      bool   // suppress JSON lines on stdout
	simMQTT       bool   // publish to the broker from MQTT_* even if MQTT_ENABLED is unset
)

// simulateCmd runs the occupancy simulator standalone, printing each
// reading as a JSON line and optionally publishing to MQTT.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the seat occupancy simulator",
	Run: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
		cfg, err := simulatorConfig(simConfigPath)
		if err != nil {
			logrus.Fatalf("Failed to load simulator config: %v", err)
		}
		sim, err := simulator.New(cfg)
		if err != nil {
			logrus.Fatalf("Invalid simulator config: %v", err)
		}
		defer sim.Close()

		if !simQuiet {
			sim.Subscribe(newReadingPrinter(cmd.OutOrStdout()))
		}

		mcfg := config.LoadMQTTConfig()
		if simMQTT || mcfg.Enabled {
			client, err := telemetry.Connect(mcfg)
			if err != nil {
				logrus.Fatalf("MQTT unavailable: %v", err)
			}
			defer client.Disconnect(250)
			attachMQTT(client, mcfg, sim)
		}

		if simScenario != "" {
			if err := sim.ApplyScenario(simulator.Scenario(simScenario)); err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		if simTicks > 0 {
			for i := 0; i < simTicks; i++ {
				sim.Tick()
			}
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := sim.Start(); err != nil {
			logrus.Fatalf("Failed to start simulator: %v", err)
		}
		<-ctx.Done()
		logrus.Info("simulate: interrupted, stopping")
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "", "Path to a simulator YAML file overriding SIM_* settings")
	simulateCmd.Flags().StringVar(&simScenario, "scenario", "", "Scenario applied before the first tick (morning_rush, afternoon_steady, evening_quiet, random)")
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 0, "Emit this many batches and exit (0 runs until interrupted)")
	simulateCmd.Flags().BoolVar(&simQuiet, "quiet", false, "Do not print readings")
	simulateCmd.Flags().BoolVar(&simMQTT, "mqtt", false, "Publish readings to the MQTT broker")
}

// simulatorConfig applies SIM_* variables and then the optional YAML file.
func simulatorConfig(path string) (simulator.Config, error) {
	cfg := config.LoadSimulatorConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}
	return config.LoadSimulatorFile(path, cfg)
}

// attachMQTT publishes every batch to the broker and applies overrides
// arriving on the room's admin topic.
func attachMQTT(client mqtt.Client, cfg config.MQTTConfig, sim *simulator.Simulator) {
	sim.Subscribe(telemetry.NewPublisher(client, cfg.RoomID, cfg.QoS))
	if err := telemetry.SubscribeOverrides(client, cfg.RoomID, cfg.QoS, cfg.ConnectTimeout, sim); err != nil {
		logrus.Warnf("mqtt: override subscription failed: %v", err)
	}
}

// readingPrinter writes each reading as one JSON document per line.
type readingPrinter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newReadingPrinter(w io.Writer) *readingPrinter {
	return &readingPrinter{enc: json.NewEncoder(w)}
}

func (p *readingPrinter) OnReadings(readings []simulator.SensorReading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range readings {
		if err := p.enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
