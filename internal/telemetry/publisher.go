package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-room-seats/internal/config"
	"github.com/iliyamo/study-room-seats/internal/simulator"
)

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// OccupancyMessage is published on the occupancy topic.
type OccupancyMessage struct {
	Detected   bool      `json:"detected"`
	Distance   *int      `json:"distance,omitempty"`
	Motion     *bool     `json:"motion,omitempty"`
	RFIDTag    string    `json:"rfidTag,omitempty"`
	Confidence float64   `json:"confidence"`
	SensorType string    `json:"sensorType"`
	Timestamp  time.Time `json:"timestamp"`
}

// HealthMessage is published on the rssi topic.
type HealthMessage struct {
	RSSI         int       `json:"rssi"`
	BatteryLevel int       `json:"batteryLevel"`
	Timestamp    time.Time `json:"timestamp"`
}

// StatusMessage is published on the status topic.
type StatusMessage struct {
	Online    bool      `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher implements simulator.Listener by publishing each reading to
// its seat topics.  At QoS 1 and 2 each publish waits up to timeout for
// the broker; at QoS 0 it never waits.
type Publisher struct {
	client  Client
	room    string
	qos     byte
	timeout time.Duration
	log     *logrus.Entry
}

// NewPublisher returns a publisher for room.
func NewPublisher(client Client, room string, qos byte) *Publisher {
	return &Publisher{
		client:  client,
		room:    room,
		qos:     qos,
		timeout: 2 * time.Second,
		log:     logrus.WithFields(logrus.Fields{"component": "mqtt", "room": room}),
	}
}

var _ simulator.Listener = (*Publisher)(nil)

// OnReadings publishes occupancy and health for online seats and a
// status notice for offline ones.
func (p *Publisher) OnReadings(readings []simulator.SensorReading) error {
	var errs []error
	for _, r := range readings {
		if !r.IsOnline {
			errs = append(errs, p.publish(StatusTopic(p.room, r.SeatID), StatusMessage{Online: false, Timestamp: r.Timestamp}))
			continue
		}
		errs = append(errs,
			p.publish(OccupancyTopic(p.room, r.SeatID), OccupancyMessage{
				Detected:   r.Value.Detected,
				Distance:   r.Value.Distance,
				Motion:     r.Value.Motion,
				RFIDTag:    r.Value.RFIDTag,
				Confidence: r.Confidence,
				SensorType: r.SensorType,
				Timestamp:  r.Timestamp,
			}),
			p.publish(RSSITopic(p.room, r.SeatID), HealthMessage{
				RSSI: r.RSSI, BatteryLevel: r.BatteryLevel, Timestamp: r.Timestamp,
			}),
		)
	}
	return errors.Join(errs...)
}

func (p *Publisher) publish(topic string, msg interface{}) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mqtt: marshal %s: %w", topic, err)
	}
	token := p.client.Publish(topic, p.qos, false, payload)
	if p.qos == 0 {
		// Nothing is acknowledged at QoS 0; report only failures the
		// client already knows about.
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt: publish %s: %w", topic, err)
			}
		default:
		}
		return nil
	}
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt: publish %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// Connect dials the broker described by cfg.
func Connect(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	log := logrus.WithField("component", "mqtt")
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("mqtt: connection lost: %v", err)
	})
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	log.Infof("mqtt: connected to %s", cfg.Broker)
	return c, nil
}
