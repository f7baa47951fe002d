package cli

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/config"
	"github.com/iliyamo/study-room-seats/internal/database"
	"github.com/iliyamo/study-room-seats/internal/handler"
	"github.com/iliyamo/study-room-seats/internal/metrics"
	"github.com/iliyamo/study-room-seats/internal/middleware"
	"github.com/iliyamo/study-room-seats/internal/queue"
	"github.com/iliyamo/study-room-seats/internal/reconcile"
	"github.com/iliyamo/study-room-seats/internal/repository"
	"github.com/iliyamo/study-room-seats/internal/router"
	"github.com/iliyamo/study-room-seats/internal/service"
	"github.com/iliyamo/study-room-seats/internal/simulator"
	"github.com/iliyamo/study-room-seats/internal/telemetry"
)

var (
	serveNoConsumer bool // skip the RabbitMQ audit consumer
	serveNoSweeper  bool // skip the auto-release sweeper
)

// serveCmd runs the HTTP API together with its background workers.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the seat allocation API",
	Run: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
		cfg := config.Load()
		if cfg.LogLevel != "" && logLevel == "" {
			setupLogging(cfg.LogLevel)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := serve(ctx, cfg); err != nil {
			logrus.Fatalf("serve: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoConsumer, "no-consumer", false, "Do not run the seat event audit consumer")
	serveCmd.Flags().BoolVar(&serveNoSweeper, "no-sweeper", false, "Do not auto-release stale reservations")
}

// serve blocks until ctx is cancelled, then shuts the server down.
func serve(ctx context.Context, cfg config.Config) error {
	log := logrus.WithField("component", "server")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	m := metrics.New()
	engine := allocation.NewEngine()
	seats := service.NewSeatService(db, engine,
		service.WithPublisher(service.NewRabbitPublisher(cfg.AMQPURL)),
		service.WithMetrics(m),
	)

	var wg sync.WaitGroup
	runBackground := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warnf("%s stopped: %v", name, err)
			}
		}()
	}
	if !serveNoConsumer {
		runBackground("audit consumer", func(ctx context.Context) error {
			return queue.StartAuditConsumer(ctx, cfg.AMQPURL)
		})
	}
	if !serveNoSweeper {
		sweeper := reconcile.NewSweeper(seats, engine, cfg.AutoRelease, cfg.AutoReleaseSweep)
		runBackground("sweeper", sweeper.Run)
	}

	mcfg := config.LoadMQTTConfig()
	var client mqtt.Client
	if mcfg.Enabled {
		if client, err = telemetry.Connect(mcfg); err != nil {
			logrus.WithField("component", "mqtt").Warnf("mqtt: disabled: %v", err)
		} else {
			defer client.Disconnect(250)
			if err := telemetry.SubscribeBadges(client, mcfg.RoomID, mcfg.QoS, mcfg.ConnectTimeout, seats); err != nil {
				logrus.WithField("component", "mqtt").Warnf("mqtt: badge subscription failed: %v", err)
			}
		}
	}

	sim, err := embeddedSimulator(cfg, db, m, client, mcfg)
	if err != nil {
		return err
	}
	if sim != nil {
		defer sim.Close()
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	e := newEcho(cfg, db, m, rdb, seats, sim)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
	wg.Wait()
	log.Info("stopped")
	return nil
}

// newEcho builds the HTTP server.  sim may be nil, in which case the
// admin simulator routes are not mounted.
func newEcho(cfg config.Config, db *sql.DB, m *metrics.Metrics, rdb *redis.Client, seats *service.SeatService, sim *simulator.Simulator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, db, m)
	router.RegisterStudent(e,
		handler.NewRoomHandler(seats),
		handler.NewReservationHandler(seats),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, m),
	)
	if sim != nil {
		router.RegisterAdmin(e, handler.NewSimulatorHandler(sim), cfg.JWTSecret)
	}
	return e
}

// embeddedSimulator drives the seats of cfg.SimulatorRoomID from an
// in-process simulator.  Readings are reconciled into the database,
// counted, and mirrored to MQTT when client is set.  It returns a nil
// simulator when no room is configured.
func embeddedSimulator(cfg config.Config, db *sql.DB, m *metrics.Metrics, client mqtt.Client, mcfg config.MQTTConfig) (*simulator.Simulator, error) {
	if cfg.SimulatorRoomID == "" {
		return nil, nil
	}
	sim, err := simulator.New(config.LoadSimulatorConfig(),
		simulator.WithLogger(logrus.WithFields(logrus.Fields{"component": "simulator", "room": cfg.SimulatorRoomID})))
	if err != nil {
		return nil, err
	}
	rec := reconcile.NewReconciler(cfg.SimulatorRoomID, repository.NewSeatRepo(db), repository.NewReadingRepo(db), m)
	sim.Subscribe(rec)
	sim.Subscribe(simulator.ListenerFunc(func([]simulator.SensorReading) error {
		m.SimulatorTick()
		return nil
	}))
	if client != nil {
		attachMQTT(client, mcfg, sim)
	}
	if err := sim.Start(); err != nil {
		sim.Close()
		return nil, err
	}
	return sim, nil
}
