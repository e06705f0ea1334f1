package model

import (
	"time"

	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

// ReservationStatus is the lifecycle state of a hold.
type ReservationStatus string

const (
	// ReservationActive holds its seats until ExpiresAt.
	ReservationActive ReservationStatus = "active"
	// ReservationConsumed was turned into a booking.
	ReservationConsumed ReservationStatus = "consumed"
	// ReservationReleased was given up by its holder.
	ReservationReleased ReservationStatus = "released"
)

// Reservation is a temporary hold placed by an API client on a set of seats.
// A reservation lapses on its own once ExpiresAt passes; nothing has to
// clear it for the seats to become bookable again.
//
// Fields:
//  ID                – opaque identifier returned to the client.
//  ShowID            – show the seats belong to.
//  APIKeyID          – holder of the seats.
//  SeatIDs           – held seats in ascending order.
//  ExternalBookingID – correlation id of the caller's own system.
//  Metadata          – caller supplied key/value pairs, stored verbatim.
//  Status            – active, consumed or released.
//  ExpiresAt         – end of the hold.
//  CreatedAt         – creation timestamp.
type Reservation struct {
	ID                string            `json:"reservation_id"`                // reservations.id
	ShowID            uint64            `json:"show_id"`                       // reservations.show_id
	APIKeyID          string            `json:"-"`                             // reservations.api_key_id
	SeatIDs           []seating.SeatID  `json:"seat_ids"`                      // reservation_seats.seat_number
	ExternalBookingID string            `json:"external_booking_id,omitempty"` // reservations.external_booking_id
	Metadata          map[string]any    `json:"metadata,omitempty"`            // reservations.metadata (JSON)
	Status            ReservationStatus `json:"status"`                        // reservations.status
	ExpiresAt         time.Time         `json:"expires_at"`                    // reservations.expires_at
	CreatedAt         time.Time         `json:"created_at"`                    // reservations.created_at
}

// ActiveAt reports whether the reservation still holds its seats at now.
func (r Reservation) ActiveAt(now time.Time) bool {
	return r.Status == ReservationActive && now.Before(r.ExpiresAt)
}
