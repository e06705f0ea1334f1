// Package service implements the booking workflow on top of the seat
// inventory: it owns one inventory per show, persists every accepted change
// and fans out events and cache invalidation afterwards.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/queue"
	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

// ShowStore resolves shows.  Implemented by repository.ShowRepo and
// repository.Memory.
type ShowStore interface {
	ShowByDate(ctx context.Context, date string) (model.Show, error)
	ShowByID(ctx context.Context, id uint64) (model.Show, error)
	Upcoming(ctx context.Context, from string, limit int) ([]model.Show, error)
	EnsureShows(ctx context.Context, shows []model.Show) error
}

// SeatStore reads and bulk-releases the stored seat states of a show.
type SeatStore interface {
	LoadSeats(ctx context.Context, showID uint64) ([]seating.Seat, error)
	ReleaseSeats(ctx context.Context, showID uint64, sold []seating.Seat) error
}

// BookingStore persists bookings together with the seat states they imply.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *model.Booking) error
	BookingByID(ctx context.Context, id string) (model.Booking, error)
	CancelBooking(ctx context.Context, b *model.Booking) error
}

// ReservationStore persists holds together with their seat states.
type ReservationStore interface {
	CreateReservation(ctx context.Context, res *model.Reservation) error
	ReservationByID(ctx context.Context, id string) (model.Reservation, error)
	ReleaseReservation(ctx context.Context, res *model.Reservation) error
}

// APIKeyStore looks up and records API keys.
type APIKeyStore interface {
	CreateKey(ctx context.Context, k *model.APIKey) error
	KeysByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error)
	TouchKey(ctx context.Context, id string, at time.Time) error
}

// Publisher sends domain events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// CacheInvalidator drops cached responses by scope.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, scopes ...string) error
}

// Stores bundles the persistence ports of the booking service.
type Stores struct {
	Shows        ShowStore
	Seats        SeatStore
	Bookings     BookingStore
	Reservations ReservationStore
}
