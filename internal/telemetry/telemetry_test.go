package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/study-room-seats/internal/model"
	"github.com/iliyamo/study-room-seats/internal/repository"
	"github.com/iliyamo/study-room-seats/internal/simulator"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.FatalLevel)
	}
	os.Exit(m.Run())
}

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

// pendingToken is never acknowledged.
type pendingToken struct{}

func (pendingToken) Wait() bool { select {} }
func (pendingToken) WaitTimeout(d time.Duration) bool {
	time.Sleep(d)
	return false
}
func (pendingToken) Done() <-chan struct{} { return make(chan struct{}) }
func (pendingToken) Error() error          { return nil }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu    sync.Mutex
	msgs  []message
	err   error
	token mqtt.Token
}

func (f *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message{topic: topic, qos: qos, payload: payload.([]byte)})
	if f.token != nil {
		return f.token
	}
	return doneToken{err: f.err}
}

type fakeSubscriber struct {
	topic string
	qos   byte
	cb    mqtt.MessageHandler
	token mqtt.Token
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	f.topic, f.qos, f.cb = topic, qos, cb
	if f.token != nil {
		return f.token
	}
	return doneToken{}
}

type inbound struct {
	topic   string
	payload []byte
}

func (m inbound) Duplicate() bool   { return false }
func (m inbound) Qos() byte         { return 0 }
func (m inbound) Retained() bool    { return false }
func (m inbound) Topic() string     { return m.topic }
func (m inbound) MessageID() uint16 { return 0 }
func (m inbound) Payload() []byte   { return m.payload }
func (m inbound) Ack()              {}

func TestTopics(t *testing.T) {
	assert.Equal(t, "smartroom/room-001/seat/seat-0-1/occupancy", OccupancyTopic("room-001", "seat-0-1"))
	assert.Equal(t, "smartroom/room-001/seat/seat-0-1/rssi", RSSITopic("room-001", "seat-0-1"))
	assert.Equal(t, "smartroom/room-001/seat/seat-0-1/status", StatusTopic("room-001", "seat-0-1"))
	assert.Equal(t, "smartroom/room-001/user/u7/badge", BadgeTopic("room-001", "u7"))
	assert.Equal(t, "smartroom/room-001/admin/override", OverrideTopic("room-001"))
}

func TestPublisher_RoutesByOnlineState(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "room-001", 1)
	ts := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	dist := 45

	err := p.OnReadings([]simulator.SensorReading{
		{SeatID: "seat-0-0", SensorType: simulator.SensorCombined, IsOnline: true, Confidence: 0.9,
			Value: simulator.ReadingValue{Detected: true, Distance: &dist, RFIDTag: "04:A2:19"}, RSSI: -55, BatteryLevel: 80, Timestamp: ts},
		{SeatID: "seat-0-1", IsOnline: false, Timestamp: ts},
	})
	require.NoError(t, err)
	require.Len(t, client.msgs, 3)

	assert.Equal(t, "smartroom/room-001/seat/seat-0-0/occupancy", client.msgs[0].topic)
	assert.Equal(t, byte(1), client.msgs[0].qos)
	var occ OccupancyMessage
	require.NoError(t, json.Unmarshal(client.msgs[0].payload, &occ))
	assert.True(t, occ.Detected)
	require.NotNil(t, occ.Distance)
	assert.Equal(t, 45, *occ.Distance)
	assert.Equal(t, "04:A2:19", occ.RFIDTag)
	assert.Equal(t, 0.9, occ.Confidence)

	assert.Equal(t, "smartroom/room-001/seat/seat-0-0/rssi", client.msgs[1].topic)
	assert.JSONEq(t, `{"rssi":-55,"batteryLevel":80,"timestamp":"2025-03-10T14:00:00Z"}`, string(client.msgs[1].payload))

	assert.Equal(t, "smartroom/room-001/seat/seat-0-1/status", client.msgs[2].topic)
	assert.JSONEq(t, `{"online":false,"timestamp":"2025-03-10T14:00:00Z"}`, string(client.msgs[2].payload))
}

func TestPublisher_ReportsBrokerErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := NewPublisher(client, "room-001", 0)
	err := p.OnReadings([]simulator.SensorReading{{SeatID: "seat-0-0", IsOnline: false}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestPublisher_QoS0DoesNotWaitForBroker(t *testing.T) {
	client := &fakeClient{token: pendingToken{}}
	p := NewPublisher(client, "room-001", 0)
	p.timeout = time.Second

	start := time.Now()
	err := p.OnReadings([]simulator.SensorReading{
		{SeatID: "seat-0-0", IsOnline: true},
		{SeatID: "seat-0-1", IsOnline: false},
	})
	require.NoError(t, err)
	assert.Len(t, client.msgs, 3)
	assert.Less(t, time.Since(start), p.timeout)
}

func TestPublisher_QoS1WaitsForAck(t *testing.T) {
	client := &fakeClient{token: pendingToken{}}
	p := NewPublisher(client, "room-001", 1)
	p.timeout = 10 * time.Millisecond

	err := p.OnReadings([]simulator.SensorReading{{SeatID: "seat-0-1", IsOnline: false}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

type overrides struct {
	calls map[string]simulator.State
	err   error
}

func (o *overrides) SetSeatState(id string, st simulator.State) error {
	if o.err != nil {
		return o.err
	}
	if o.calls == nil {
		o.calls = map[string]simulator.State{}
	}
	o.calls[id] = st
	return nil
}

func TestHandleOverride(t *testing.T) {
	o := &overrides{}
	require.NoError(t, HandleOverride(o, []byte(`{"seatId":"seat-1-2","state":"offline"}`)))
	assert.Equal(t, simulator.StateOffline, o.calls["seat-1-2"])

	assert.Error(t, HandleOverride(o, []byte(`{`)))
	assert.Error(t, HandleOverride(o, []byte(`{"state":"vacant"}`)))

	o.err = simulator.ErrUnknownSeat
	assert.ErrorIs(t, HandleOverride(o, []byte(`{"seatId":"nope","state":"vacant"}`)), simulator.ErrUnknownSeat)
}

func TestSubscribeOverrides(t *testing.T) {
	sub := &fakeSubscriber{}
	o := &overrides{}
	require.NoError(t, SubscribeOverrides(sub, "room-001", 1, time.Second, o))
	assert.Equal(t, "smartroom/room-001/admin/override", sub.topic)
	assert.Equal(t, byte(1), sub.qos)

	sub.cb(nil, inbound{topic: sub.topic, payload: []byte(`{"seatId":"seat-0-0","state":"vacant"}`)})
	assert.Equal(t, simulator.StateVacant, o.calls["seat-0-0"])
	// Bad payloads are logged, not fatal.
	sub.cb(nil, inbound{topic: sub.topic, payload: []byte(`{`)})
}

func TestSubscribeOverrides_GivesUpOnSilentBroker(t *testing.T) {
	sub := &fakeSubscriber{token: pendingToken{}}
	err := SubscribeOverrides(sub, "room-001", 1, 10*time.Millisecond, &overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestSubscribeOverrides_BrokerRefuses(t *testing.T) {
	sub := &fakeSubscriber{token: doneToken{err: errors.New("not authorized")}}
	err := SubscribeOverrides(sub, "room-001", 1, time.Second, &overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
}

type badgeCheckIns struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
}

func (b *badgeCheckIns) CheckIn(_ context.Context, userID, reservationID string) (*model.Reservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.calls = append(b.calls, [2]string{userID, reservationID})
	return &model.Reservation{ID: reservationID, UserID: userID, Status: model.ReservationCheckedIn}, nil
}

func TestHandleBadge(t *testing.T) {
	svc := &badgeCheckIns{}
	topic := BadgeTopic("room-001", "u7")

	res, err := HandleBadge(context.Background(), svc, topic, []byte(`{"reservationId":"r1","rfidTag":"04:A2:19"}`))
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCheckedIn, res.Status)
	assert.Equal(t, [][2]string{{"u7", "r1"}}, svc.calls)

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"bad json", topic, `{`},
		{"no reservation", topic, `{"rfidTag":"04:A2:19"}`},
		{"not a badge topic", "smartroom/room-001/seat/s1/occupancy", `{"reservationId":"r1"}`},
		{"empty user", "smartroom/room-001/user//badge", `{"reservationId":"r1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HandleBadge(context.Background(), svc, tt.topic, []byte(tt.payload))
			assert.Error(t, err)
		})
	}
	assert.Len(t, svc.calls, 1)

	svc.err = repository.ErrForbidden
	_, err = HandleBadge(context.Background(), svc, topic, []byte(`{"reservationId":"r2"}`))
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestSubscribeBadges(t *testing.T) {
	sub := &fakeSubscriber{}
	svc := &badgeCheckIns{}
	require.NoError(t, SubscribeBadges(sub, "room-001", 1, time.Second, svc))
	assert.Equal(t, "smartroom/room-001/user/+/badge", sub.topic)

	sub.cb(nil, inbound{topic: BadgeTopic("room-001", "u9"), payload: []byte(`{"reservationId":"r5"}`)})
	sub.cb(nil, inbound{topic: BadgeTopic("room-001", "u9"), payload: []byte(`{}`)})
	assert.Equal(t, [][2]string{{"u9", "r5"}}, svc.calls)
}

func TestHandleOverride_RealSimulator(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.Rows, cfg.Cols = 1, 2
	sim, err := simulator.New(cfg)
	require.NoError(t, err)
	defer sim.Close()

	require.NoError(t, HandleOverride(sim, []byte(`{"seatId":"seat-0-1","state":"occupied"}`)))
	seat, ok := sim.Seat("seat-0-1")
	require.True(t, ok)
	assert.Equal(t, simulator.StateOccupied, seat.State)

	assert.ErrorIs(t, HandleOverride(sim, []byte(`{"seatId":"seat-0-1","state":"dancing"}`)), simulator.ErrInvalidState)
}
