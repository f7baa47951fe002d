package config

import (
	"os"
	"time"
)

// MQTTConfig describes the broker that receives simulated seat readings.
type MQTTConfig struct {
	Enabled        bool
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	RoomID         string // first segment after smartroom/ in every topic
	ConnectTimeout time.Duration
}

// LoadMQTTConfig reads MQTT_* variables.  Publishing is off unless
// MQTT_ENABLED is set.
func LoadMQTTConfig() MQTTConfig {
	qos := envInt("MQTT_QOS", 0)
	if qos < 0 || qos > 2 {
		qos = 0
	}
	return MQTTConfig{
		Enabled:        envBool("MQTT_ENABLED", false),
		Broker:         getenv("MQTT_BROKER", "tcp://localhost:1883"),
		ClientID:       getenv("MQTT_CLIENT_ID", "seat-simulator"),
		Username:       os.Getenv("MQTT_USERNAME"),
		Password:       os.Getenv("MQTT_PASSWORD"),
		QoS:            byte(qos),
		RoomID:         getenv("MQTT_ROOM_ID", "room-001"),
		ConnectTimeout: envDur("MQTT_CONNECT_TIMEOUT", 5*time.Second),
	}
}
