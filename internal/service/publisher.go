package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/theater-seat-booking/internal/queue"
)

// AMQPPublisher publishes each event to the durable queue named after its
// type.  A connection is dialled per publish; events are rare compared to
// reads and this keeps the publisher free of reconnect state.
type AMQPPublisher struct {
	url string
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url}
}

// Publish marshals ev and sends it as a persistent message.  Errors are
// logged and returned; callers treat them as non-fatal.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.Event) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare %s failed: %v", ev.Type, err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal %s failed: %v", ev.Type, err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish %s failed: %v", ev.Type, err)
		return err
	}
	return nil
}

// nopPublisher drops every event; used when no broker is configured.
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.Event) error { return nil }
