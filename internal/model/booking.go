package model

import (
	"time"

	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

// BookingStatus is the state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// CustomerInfo identifies the person a booking was made for.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Booking is a confirmed purchase of one or more seats.  Cancelling it
// releases the seats and leaves the row in place with status cancelled.
type Booking struct {
	ID            string           `json:"id"`
	ShowID        uint64           `json:"showId"`
	APIKeyID      string           `json:"-"`
	SeatIDs       []seating.SeatID `json:"seatIds"`
	Seats         []seating.Seat   `json:"seats"`
	CustomerInfo  CustomerInfo     `json:"customerInfo"`
	TotalPrice    int              `json:"totalPrice"`
	Status        BookingStatus    `json:"status"`
	BookedAt      time.Time        `json:"bookedAt"`
	Notes         string           `json:"notes,omitempty"`
	ReservationID string           `json:"reservationId,omitempty"`
	CancelledAt   *time.Time       `json:"cancelledAt,omitempty"`
	CancelReason  string           `json:"cancelReason,omitempty"`
}

// Cancellation is the receipt returned when a booking is cancelled.  Refunds
// are settled outside this service, so RefundStatus is always "pending".
type Cancellation struct {
	BookingID    string        `json:"bookingId"`
	Status       BookingStatus `json:"status"`
	CancelledAt  time.Time     `json:"cancelledAt"`
	Reason       string        `json:"reason"`
	RefundAmount int           `json:"refundAmount"`
	RefundStatus string        `json:"refundStatus"`
}
