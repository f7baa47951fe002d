// Package reconcile folds sensor readings into stored seat state and
// releases reservations whose holder never showed up.
package reconcile

import (
	"github.com/iliyamo/study-room-seats/internal/allocation"
	"github.com/iliyamo/study-room-seats/internal/simulator"
)

// NextStatus derives a seat's status from its current status and the
// latest reading.  Reserved seats stay reserved while someone sits in
// them; only check-in or release moves them on.  Maintenance is sticky.
func NextStatus(current allocation.SeatStatus, r simulator.SensorReading) allocation.SeatStatus {
	switch {
	case current == allocation.StatusMaintenance:
		return current
	case !r.IsOnline:
		return allocation.StatusOffline
	case r.Value.Detected && current != allocation.StatusReserved:
		return allocation.StatusOccupied
	case !r.Value.Detected && (current == allocation.StatusOccupied || current == allocation.StatusOffline):
		return allocation.StatusAvailable
	}
	return current
}
