package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-room-seats/internal/model"
)

// BadgeCheckIn checks a user in to one of their reservations.
type BadgeCheckIn interface {
	CheckIn(ctx context.Context, userID, reservationID string) (*model.Reservation, error)
}

// BadgeMessage is the payload of a badge tap at a seat reader.
type BadgeMessage struct {
	ReservationID string    `json:"reservationId"`
	RFIDTag       string    `json:"rfidTag,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// badgeUser extracts {user} from smartroom/{room}/user/{user}/badge.
func badgeUser(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != topicRoot || parts[2] != "user" || parts[4] != "badge" || parts[3] == "" {
		return "", false
	}
	return parts[3], true
}

// HandleBadge checks the tapping user in to the reservation named in
// payload.  The user comes from the topic, never from the payload.
func HandleBadge(ctx context.Context, svc BadgeCheckIn, topic string, payload []byte) (*model.Reservation, error) {
	user, ok := badgeUser(topic)
	if !ok {
		return nil, fmt.Errorf("badge: unexpected topic %q", topic)
	}
	var msg BadgeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("badge: decode: %w", err)
	}
	if msg.ReservationID == "" {
		return nil, fmt.Errorf("badge: missing reservationId")
	}
	return svc.CheckIn(ctx, user, msg.ReservationID)
}

// SubscribeBadges checks users in as their badge taps arrive on any
// user's badge topic of room.  Each check-in gets timeout to complete.
func SubscribeBadges(c Subscriber, room string, qos byte, timeout time.Duration, svc BadgeCheckIn) error {
	log := logrus.WithFields(logrus.Fields{"component": "mqtt", "room": room})
	return subscribe(c, BadgeTopic(room, "+"), qos, timeout, func(_ mqtt.Client, m mqtt.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := HandleBadge(ctx, svc, m.Topic(), m.Payload())
		if err != nil {
			log.Warnf("mqtt: %v", err)
			return
		}
		log.WithField("reservation", res.ID).Info("mqtt: badge check-in")
	})
}
