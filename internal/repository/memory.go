package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

// Memory is a process-local store with the same behaviour as the MySQL
// repositories.  The server uses it when no database is configured, in
// which case holds and bookings do not survive a restart.
type Memory struct {
	mu           sync.Mutex
	nextShowID   uint64
	shows        map[uint64]model.Show
	seats        map[uint64]map[seating.SeatID]seating.Seat
	bookings     map[string]model.Booking
	reservations map[string]model.Reservation
	keys         map[string]model.APIKey
	logs         []model.APILog
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		shows:        make(map[uint64]model.Show),
		seats:        make(map[uint64]map[seating.SeatID]seating.Seat),
		bookings:     make(map[string]model.Booking),
		reservations: make(map[string]model.Reservation),
		keys:         make(map[string]model.APIKey),
	}
}

func (m *Memory) ShowByDate(_ context.Context, date string) (model.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shows {
		if s.Date == date && s.IsActive {
			return s, nil
		}
	}
	return model.Show{}, ErrShowNotFound
}

func (m *Memory) ShowByID(_ context.Context, id uint64) (model.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shows[id]
	if !ok {
		return model.Show{}, ErrShowNotFound
	}
	return s, nil
}

func (m *Memory) Upcoming(_ context.Context, from string, limit int) ([]model.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Show
	for _, s := range m.shows {
		if s.IsActive && s.Date >= from {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) EnsureShows(_ context.Context, shows []model.Show) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	taken := make(map[string]bool, len(m.shows))
	for _, s := range m.shows {
		taken[s.Date] = true
	}
	for _, s := range shows {
		if taken[s.Date] {
			continue
		}
		m.nextShowID++
		s.ID = m.nextShowID
		s.IsActive = true
		m.shows[s.ID] = s
		taken[s.Date] = true
	}
	return nil
}

func (m *Memory) LoadSeats(_ context.Context, showID uint64) ([]seating.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]seating.Seat, 0, len(m.seats[showID]))
	for _, s := range m.seats[showID] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// saveSeats mirrors ShowSeatRepo.SaveSeatsTx; m.mu must be held.
func (m *Memory) saveSeats(showID uint64, seats []seating.Seat) {
	stored := m.seats[showID]
	if stored == nil {
		stored = make(map[seating.SeatID]seating.Seat)
		m.seats[showID] = stored
	}
	for _, s := range seats {
		if s.Status == seating.StatusAvailable {
			delete(stored, s.ID)
			continue
		}
		stored[s.ID] = seating.Seat{ID: s.ID, Status: s.Status, ReservedUntil: s.ReservedUntil, ReservedBy: s.ReservedBy, SoldTo: s.SoldTo}
	}
}

// dropSeats deletes the stored rows of ids that match; m.mu must be held.
func (m *Memory) dropSeats(showID uint64, ids []seating.SeatID, match func(seating.Seat) bool) {
	stored := m.seats[showID]
	for _, id := range ids {
		if s, ok := stored[id]; ok && match(s) {
			delete(stored, id)
		}
	}
}

func soldTo(bookingID string) func(seating.Seat) bool {
	return func(s seating.Seat) bool {
		return s.Status == seating.StatusSold && s.SoldTo == bookingID
	}
}

func (m *Memory) ReleaseSeats(_ context.Context, showID uint64, sold []seating.Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sold {
		m.dropSeats(showID, []seating.SeatID{s.ID}, soldTo(s.SoldTo))
	}
	return nil
}

func (m *Memory) CreateBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; ok {
		return ErrConflict
	}
	if b.ReservationID != "" {
		res, ok := m.reservations[b.ReservationID]
		if !ok || res.Status != model.ReservationActive {
			return ErrConflict
		}
		res.Status = model.ReservationConsumed
		m.reservations[res.ID] = res
	}
	m.saveSeats(b.ShowID, b.Seats)
	stored := *b
	stored.Seats = nil
	stored.SeatIDs = append([]seating.SeatID(nil), b.SeatIDs...)
	m.bookings[b.ID] = stored
	return nil
}

func (m *Memory) BookingByID(_ context.Context, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, ErrBookingNotFound
	}
	b.SeatIDs = append([]seating.SeatID(nil), b.SeatIDs...)
	return b, nil
}

func (m *Memory) CancelBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bookings[b.ID]
	if !ok || stored.Status != model.BookingConfirmed {
		return ErrConflict
	}
	stored.Status = model.BookingCancelled
	stored.CancelledAt = b.CancelledAt
	stored.CancelReason = b.CancelReason
	m.bookings[b.ID] = stored
	m.dropSeats(b.ShowID, b.SeatIDs, soldTo(b.ID))
	return nil
}

func (m *Memory) CreateReservation(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[res.ID]; ok {
		return ErrConflict
	}
	until := res.ExpiresAt
	held := make([]seating.Seat, 0, len(res.SeatIDs))
	for _, id := range res.SeatIDs {
		held = append(held, seating.Seat{ID: id, Status: seating.StatusReserved, ReservedUntil: &until, ReservedBy: res.APIKeyID})
	}
	m.saveSeats(res.ShowID, held)
	stored := *res
	stored.SeatIDs = append([]seating.SeatID(nil), res.SeatIDs...)
	m.reservations[res.ID] = stored
	return nil
}

func (m *Memory) ReservationByID(_ context.Context, id string) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return model.Reservation{}, ErrReservationNotFound
	}
	res.SeatIDs = append([]seating.SeatID(nil), res.SeatIDs...)
	return res, nil
}

func (m *Memory) ReleaseReservation(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reservations[res.ID]
	if !ok || stored.Status != model.ReservationActive {
		return ErrConflict
	}
	stored.Status = model.ReservationReleased
	m.reservations[res.ID] = stored
	m.dropSeats(res.ShowID, res.SeatIDs, func(s seating.Seat) bool {
		return s.Status == seating.StatusReserved && s.ReservedBy == res.APIKeyID &&
			s.ReservedUntil != nil && s.ReservedUntil.Equal(res.ExpiresAt)
	})
	return nil
}

func (m *Memory) CreateKey(_ context.Context, k *model.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[k.ID]; ok {
		return ErrConflict
	}
	m.keys[k.ID] = *k
	return nil
}

func (m *Memory) KeysByPrefix(_ context.Context, prefix string) ([]model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.APIKey
	for _, k := range m.keys {
		if k.Prefix == prefix && k.IsActive {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *Memory) TouchKey(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[id]; ok {
		t := at
		k.LastUsedAt = &t
		m.keys[id] = k
	}
	return nil
}

func (m *Memory) RecordUsage(_ context.Context, l model.APILog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return nil
}

// UsageLog returns a copy of the recorded usage entries.
func (m *Memory) UsageLog() []model.APILog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.APILog(nil), m.logs...)
}
