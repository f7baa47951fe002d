package cli

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/config"
	"github.com/iliyamo/study-room-seats/internal/database"
	"github.com/iliyamo/study-room-seats/internal/model"
	"github.com/iliyamo/study-room-seats/internal/repository"
	"github.com/iliyamo/study-room-seats/internal/simulator"
)

var (
	seedRoomID   string
	seedName     string
	seedBuilding string
	seedFloor    int
	seedRows     int
	seedCols     int
)

// seedCmd provisions a room whose seats carry the simulator's sensor ids,
// so `serve` with SIMULATOR_ROOM_ID drives it end to end.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a study room with a grid of sensor-equipped seats",
	Run: func(cmd *cobra.Command, args []string) {
		if seedRows < 1 || seedRows > 26 || seedCols < 1 {
			logrus.Fatalf("Grid must be 1..26 rows by at least one column, got %dx%d", seedRows, seedCols)
		}
		config.LoadDotEnv()
		cfg := config.Load()
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			logrus.Fatalf("Failed to connect to the database: %v", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.EnsureSchema(ctx, db); err != nil {
			logrus.Fatalf("Failed to prepare schema: %v", err)
		}

		room := &model.Room{ID: seedRoomID, Name: seedName, Floor: seedFloor, Capacity: seedRows * seedCols}
		if seedBuilding != "" {
			room.Building = &seedBuilding
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			logrus.Fatalf("Failed to begin transaction: %v", err)
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		if err := repository.NewRoomRepo(db).CreateTx(ctx, tx, room); err != nil {
			logrus.Fatalf("Failed to create room: %v", err)
		}
		seats := seedLayout(room.ID, seedRows, seedCols)
		if err := repository.NewSeatRepo(db).CreateBatchTx(ctx, tx, seats); err != nil {
			logrus.Fatalf("Failed to create seats: %v", err)
		}
		if err := tx.Commit(); err != nil {
			logrus.Fatalf("Failed to commit: %v", err)
		}
		committed = true
		logrus.WithFields(logrus.Fields{"room": room.ID, "seats": len(seats)}).Info("seed: room created")
		cmd.Println(room.ID)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedRoomID, "room", "", "Room id (a UUID is generated when empty)")
	seedCmd.Flags().StringVar(&seedName, "name", "Study Room", "Room name")
	seedCmd.Flags().StringVar(&seedBuilding, "building", "", "Building name")
	seedCmd.Flags().IntVar(&seedFloor, "floor", 1, "Floor number")
	seedCmd.Flags().IntVar(&seedRows, "rows", 5, "Seat rows (at most 26)")
	seedCmd.Flags().IntVar(&seedCols, "cols", 6, "Seats per row")
}

// seedLayout builds the demo grid: window seats on both outer columns,
// outlets on even rows, a quiet zone from the fourth row back, monitors in
// the two middle columns and accessible seats at the front corners.  Seat
// and sensor ids match simulator.SeatNumber and simulator.SeatID.
func seedLayout(roomID string, rows, cols int) []model.Seat {
	seats := make([]model.Seat, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sensor := simulator.SeatID(r, c)
			outer := c == 0 || c == cols-1
			seats = append(seats, model.Seat{
				RoomID:      roomID,
				SeatNumber:  simulator.SeatNumber(r, c),
				Status:      allocation.StatusAvailable,
				RowPosition: r,
				ColPosition: c,
				SensorID:    &sensor,
				Features: allocation.Features{
					HasWindow:      outer,
					HasPowerOutlet: r%2 == 0,
					IsQuietZone:    r >= 3,
					HasMonitor:     c == cols/2-1 || c == cols/2,
					IsAccessible:   r == 0 && outer,
				},
			})
		}
	}
	return seats
}
