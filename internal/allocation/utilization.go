package allocation

import "math"

// Utilization tiers. UtilizationUndefined is reported for rooms without
// seats, where every rate would otherwise be NaN.
const (
	UtilizationCritical  = "Critical"
	UtilizationHigh      = "High"
	UtilizationModerate  = "Moderate"
	UtilizationLow       = "Low"
	UtilizationUndefined = "Undefined"
)

// Utilization summarises how busy a room is. Rates are percentages rounded
// to one decimal place.
type Utilization struct {
	OccupancyRate    float64 `json:"occupancyRate"`
	ReservationRate  float64 `json:"reservationRate"`
	AvailabilityRate float64 `json:"availabilityRate"`
	UtilizationScore string  `json:"utilizationScore"`
}

// CalculateUtilization derives occupancy, reservation and availability rates
// and classifies occupied+reserved against the tier thresholds (lower bound
// inclusive). A room with no seats yields zero rates and
// UtilizationUndefined. Availability never drops below zero even when the
// counts overshoot the total.
func CalculateUtilization(totalSeats, occupiedSeats, reservedSeats int) Utilization {
	if totalSeats <= 0 {
		return Utilization{UtilizationScore: UtilizationUndefined}
	}
	total := float64(totalSeats)
	occupancy := float64(occupiedSeats) / total * 100
	reservation := float64(reservedSeats) / total * 100
	availability := float64(totalSeats-occupiedSeats-reservedSeats) / total * 100

	return Utilization{
		OccupancyRate:    roundTenth(occupancy),
		ReservationRate:  roundTenth(reservation),
		AvailabilityRate: math.Max(0, roundTenth(availability)),
		UtilizationScore: classify(occupancy + reservation),
	}
}

func classify(pct float64) string {
	switch {
	case pct >= 90:
		return UtilizationCritical
	case pct >= 70:
		return UtilizationHigh
	case pct >= 40:
		return UtilizationModerate
	default:
		return UtilizationLow
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
