package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-room-seats/internal/simulator"
)

// Subscriber is the part of mqtt.Client used to receive messages.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// SeatOverrider applies an admin override to one simulated seat.
type SeatOverrider interface {
	SetSeatState(seatID string, state simulator.State) error
}

// OverrideMessage is the payload accepted on the override topic.
type OverrideMessage struct {
	SeatID string          `json:"seatId"`
	State  simulator.State `json:"state"`
}

// HandleOverride decodes payload and applies it to sim.
func HandleOverride(sim SeatOverrider, payload []byte) error {
	var msg OverrideMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("override: decode: %w", err)
	}
	if msg.SeatID == "" {
		return fmt.Errorf("override: missing seatId")
	}
	return sim.SetSeatState(msg.SeatID, msg.State)
}

// SubscribeOverrides routes messages on the room's override topic to sim.
// It gives up when the broker does not acknowledge within timeout.
func SubscribeOverrides(c Subscriber, room string, qos byte, timeout time.Duration, sim SeatOverrider) error {
	log := logrus.WithFields(logrus.Fields{"component": "mqtt", "room": room})
	return subscribe(c, OverrideTopic(room), qos, timeout, func(_ mqtt.Client, m mqtt.Message) {
		if err := HandleOverride(sim, m.Payload()); err != nil {
			log.Warnf("mqtt: %v", err)
		}
	})
}

func subscribe(c Subscriber, topic string, qos byte, timeout time.Duration, cb mqtt.MessageHandler) error {
	token := c.Subscribe(topic, qos, cb)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt: subscribe %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	return nil
}
