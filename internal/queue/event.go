// Package queue defines the domain events exchanged over the message broker
// and the background consumer that records them.
package queue

// Event types.  Each one is published to a durable queue of the same name.
const (
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingCancelled   = "booking.cancelled"
	EventReservationCreated = "reservation.created"
	EventSeatsReset         = "seats.reset"
)

// EventTypes lists every queue the consumer listens on.
var EventTypes = []string{
	EventBookingConfirmed,
	EventBookingCancelled,
	EventReservationCreated,
	EventSeatsReset,
}

// Event is published whenever seats change hands.  It carries enough for
// downstream consumers to log, notify or run analytics without querying the
// primary database.
type Event struct {
	Type          string   `json:"type"`
	ShowID        uint64   `json:"show_id"`
	ShowDate      string   `json:"show_date"`
	BookingID     string   `json:"booking_id,omitempty"`
	ReservationID string   `json:"reservation_id,omitempty"`
	APIKeyID      string   `json:"api_key_id,omitempty"`
	Customer      string   `json:"customer,omitempty"`
	Seats         []string `json:"seats"`
	TotalPrice    int      `json:"total_price,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}
