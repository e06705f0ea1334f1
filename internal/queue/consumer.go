package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LogWriter appends one line per event to <dir>/booking.log.
type LogWriter struct {
	dir string
	mu  sync.Mutex
}

// NewLogWriter returns a writer for dir; the directory is created on the
// first write.
func NewLogWriter(dir string) *LogWriter { return &LogWriter{dir: dir} }

// Path is the file events are appended to.
func (w *LogWriter) Path() string { return filepath.Join(w.dir, "booking.log") }

// Handle decodes one message body and appends it to the log.
func (w *LogWriter) Handle(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(w.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

var eventTitles = map[string]string{
	EventBookingConfirmed:   "Booking confirmed",
	EventBookingCancelled:   "Booking cancelled",
	EventReservationCreated: "Reservation created",
	EventSeatsReset:         "Seats reset",
}

// FormatLine renders ev as a single human-friendly log line.
func FormatLine(ev Event) string {
	title, ok := eventTitles[ev.Type]
	if !ok {
		title = ev.Type
	}
	parts := []string{fmt.Sprintf("[%s] %s", ev.OccurredAt, title)}
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("booking_id", ev.BookingID)
	add("reservation_id", ev.ReservationID)
	parts = append(parts, fmt.Sprintf("show_id=%d", ev.ShowID))
	add("date", ev.ShowDate)
	add("api_key", ev.APIKeyID)
	if ev.Customer != "" {
		parts = append(parts, fmt.Sprintf("customer=%q", ev.Customer))
	}
	if ev.TotalPrice > 0 {
		parts = append(parts, fmt.Sprintf("total=%d", ev.TotalPrice))
	}
	if ev.Reason != "" {
		parts = append(parts, fmt.Sprintf("reason=%q", ev.Reason))
	}
	parts = append(parts, "seats=["+strings.Join(ev.Seats, ",")+"]")
	return strings.Join(parts, " | ") + "\n"
}

// StartEventConsumer connects to the broker at url, declares one durable
// queue per event type and appends every message to the log of w.  It
// reconnects with exponential backoff and only returns once ctx is done.
// A message that cannot be handled is rejected without requeue so the
// consumer never spins on it.
func StartEventConsumer(ctx context.Context, url string, w *LogWriter) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("event-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, w)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("event-consumer: consume loop ended: %v; reconnecting", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, w *LogWriter) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("event-consumer: set QoS failed: %v", err)
	}

	done := make(chan error, len(EventTypes))
	for _, name := range EventTypes {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go func(name string, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				if err := w.Handle(d.Body); err != nil {
					log.Printf("event-consumer: handle %s message failed: %v", name, err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
			done <- fmt.Errorf("%s deliveries channel closed", name)
		}(name, msgs)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
