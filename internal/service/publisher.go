// Package service holds the transactional seat workflows and the
// RabbitMQ publisher that announces their outcome.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-room-seats/internal/queue"
)

// EventPublisher announces seat events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.SeatEvent) error
}

// RabbitPublisher publishes SeatEvents to the queue named by their Type.
// A connection is dialled per publish; events are rare compared with
// sensor traffic and this keeps the publisher free of reconnect state.
type RabbitPublisher struct {
	url string
	log *logrus.Entry
}

// NewRabbitPublisher returns a publisher for the broker at url.
func NewRabbitPublisher(url string) *RabbitPublisher {
	return &RabbitPublisher{url: url, log: logrus.WithField("component", "rabbitmq")}
}

// Publish sends ev as a persistent JSON message.  Any error is logged and
// returned so the caller can choose to ignore it.
func (p *RabbitPublisher) Publish(ctx context.Context, ev queue.SeatEvent) error {
	if ev.Type != queue.SeatReservedQueue && ev.Type != queue.SeatReleasedQueue {
		return fmt.Errorf("rabbitmq: unknown event type %q", ev.Type)
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warnf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warnf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		ev.Type, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		p.log.Warnf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Warnf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		ev.Type, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.log.Warnf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
