// Package queue also contains the background consumer that listens to the
// seat event queues and appends an audit trail to logs/seat_events.log.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// DefaultAuditLog is where StartAuditConsumer writes unless told otherwise.
var DefaultAuditLog = filepath.Join("logs", "seat_events.log")

// AuditConsumer drains the seat event queues into a line-oriented log
// file.  It reconnects with exponential backoff until its context ends.
type AuditConsumer struct {
	URL     string
	LogPath string
	Log     *logrus.Entry

	mu sync.Mutex // serialises writes from the per-queue goroutines
}

// StartAuditConsumer runs an AuditConsumer for url until ctx is cancelled.
func StartAuditConsumer(ctx context.Context, url string) error {
	c := &AuditConsumer{
		URL:     url,
		LogPath: DefaultAuditLog,
		Log:     logrus.WithField("component", "audit-consumer"),
	}
	return c.Run(ctx)
}

// Run connects to RabbitMQ, declares both queues (durable), and consumes
// them.  Processing errors reject the offending message without requeue
// so the server keeps operating.  Run returns only when ctx is done.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warnf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warnf("audit-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warnf("audit-consumer: set QoS failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, name := range []string{SeatReservedQueue, SeatReleasedQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		wg.Add(1)
		go func(msgs <-chan amqp.Delivery) {
			defer wg.Done()
			errs <- c.drain(ctx, msgs)
		}(msgs)
	}

	err = <-errs
	_ = ch.Close() // unblocks the other drain
	wg.Wait()
	return err
}

func (c *AuditConsumer) drain(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.Log.Errorf("audit-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one event and appends its audit line.
func (c *AuditConsumer) Handle(body []byte) error {
	var ev SeatEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ReservationID == "" {
		return errors.New("event missing type or reservation id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single human-friendly line.
func FormatAuditLine(ev SeatEvent) string {
	var b strings.Builder
	switch ev.Type {
	case SeatReservedQueue:
		fmt.Fprintf(&b, "[%s] Seat reserved", ev.OccurredAt)
	case SeatReleasedQueue:
		fmt.Fprintf(&b, "[%s] Seat released", ev.OccurredAt)
	default:
		fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt, ev.Type)
	}
	fmt.Fprintf(&b, " | reservation_id=%s | user_id=%s | room_id=%s | seat=%q",
		ev.ReservationID, ev.UserID, ev.RoomID, seatLabel(ev))
	if ev.AutoAssigned {
		b.WriteString(" | auto_assigned=true")
	}
	if ev.Score != nil {
		fmt.Fprintf(&b, " | score=%.1f", *ev.Score)
	}
	if ev.Reason != "" {
		fmt.Fprintf(&b, " | reason=%s", ev.Reason)
	}
	b.WriteByte('\n')
	return b.String()
}

func seatLabel(ev SeatEvent) string {
	if ev.SeatNumber != "" {
		return ev.SeatNumber
	}
	return ev.SeatID
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
