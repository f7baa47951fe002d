package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables the service reads and writes.  Enum values
// mirror allocation.SeatStatus and model.ReservationStatus verbatim.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		name        VARCHAR(120) NOT NULL,
		building    VARCHAR(120) NULL,
		floor       INT          NOT NULL DEFAULT 0,
		capacity    INT          NOT NULL DEFAULT 0,
		status      ENUM('active','maintenance','closed') NOT NULL DEFAULT 'active',
		created_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS seats (
		id                CHAR(36)    NOT NULL PRIMARY KEY,
		room_id           CHAR(36)    NOT NULL,
		seat_number       VARCHAR(8)  NOT NULL,
		status            ENUM('available','reserved','occupied','offline','maintenance') NOT NULL DEFAULT 'available',
		features          JSON        NULL,
		row_position      INT         NOT NULL,
		col_position      INT         NOT NULL,
		sensor_id         VARCHAR(64) NULL,
		sensor_confidence DOUBLE      NOT NULL DEFAULT 0.5,
		last_occupied_at  DATETIME    NULL,
		last_vacant_at    DATETIME    NULL,
		created_at        DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_seats_room_number (room_id, seat_number),
		UNIQUE KEY uq_seats_sensor (sensor_id),
		CONSTRAINT fk_seats_room FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id               CHAR(36)    NOT NULL PRIMARY KEY,
		user_id          VARCHAR(64) NOT NULL,
		room_id          CHAR(36)    NOT NULL,
		seat_id          CHAR(36)    NOT NULL,
		status           ENUM('pending','confirmed','checked_in','completed','cancelled','no_show') NOT NULL DEFAULT 'confirmed',
		auto_assigned    BOOLEAN     NOT NULL DEFAULT FALSE,
		preferences      JSON        NULL,
		start_time       DATETIME    NOT NULL,
		end_time         DATETIME    NOT NULL,
		checked_in_at    DATETIME    NULL,
		checked_out_at   DATETIME    NULL,
		last_activity_at DATETIME    NOT NULL,
		created_at       DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_reservations_status (status, last_activity_at),
		CONSTRAINT fk_reservations_seat FOREIGN KEY (seat_id) REFERENCES seats(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS sensor_readings (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		seat_id       CHAR(36)    NOT NULL,
		sensor_type   VARCHAR(16) NOT NULL,
		value         JSON        NOT NULL,
		confidence    DOUBLE      NOT NULL,
		battery_level INT         NOT NULL,
		rssi          INT         NOT NULL,
		is_online     BOOLEAN     NOT NULL,
		timestamp     DATETIME(3) NOT NULL,
		KEY idx_readings_seat_time (seat_id, timestamp)
	)`,
}

// EnsureSchema creates any missing table.  Existing tables are left alone.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
