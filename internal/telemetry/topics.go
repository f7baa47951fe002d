// Package telemetry fans simulated sensor readings out over MQTT using
// the smartroom/{room}/... topic tree and accepts admin overrides back.
package telemetry

import "fmt"

const topicRoot = "smartroom"

// OccupancyTopic carries fused occupancy readings of one seat.
func OccupancyTopic(room, seat string) string {
	return fmt.Sprintf("%s/%s/seat/%s/occupancy", topicRoot, room, seat)
}

// RSSITopic carries radio and battery health of one seat node.
func RSSITopic(room, seat string) string {
	return fmt.Sprintf("%s/%s/seat/%s/rssi", topicRoot, room, seat)
}

// StatusTopic carries online/offline notices of one seat node.
func StatusTopic(room, seat string) string {
	return fmt.Sprintf("%s/%s/seat/%s/status", topicRoot, room, seat)
}

// BadgeTopic carries RFID badge taps of one user.
func BadgeTopic(room, user string) string {
	return fmt.Sprintf("%s/%s/user/%s/badge", topicRoot, room, user)
}

// OverrideTopic receives admin state overrides for a room.
func OverrideTopic(room string) string {
	return fmt.Sprintf("%s/%s/admin/override", topicRoot, room)
}
