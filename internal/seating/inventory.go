package seating

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultHoldTTL is used by SetStatus(ids, StatusReserved, ...) when the
// caller does not supply an explicit deadline through Reserve.
const DefaultHoldTTL = 15 * time.Minute

// Inventory is the single source of truth for the seats of one show.  All
// status changes take the write lock for the whole seat set, so two
// overlapping transitions are serialized and at most one of them can
// succeed.  Reads apply lazy expiry: a reservation past its deadline is
// reported as available without anything having to clear it.
type Inventory struct {
	mu      sync.RWMutex
	layout  Layout
	seats   []Seat // index = id-1
	now     func() time.Time
	holdTTL time.Duration
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithClock replaces time.Now, mostly for tests that need to move past a
// hold deadline.
func WithClock(now func() time.Time) Option {
	return func(inv *Inventory) { inv.now = now }
}

// WithHoldTTL sets the hold duration used by SetStatus for reservations.
func WithHoldTTL(d time.Duration) Option {
	return func(inv *Inventory) {
		if d > 0 {
			inv.holdTTL = d
		}
	}
}

// NewInventory builds the inventory for a layout.  Stored seats override
// the freshly generated grid; seats the store does not mention start out
// available.
func NewInventory(layout Layout, stored []Seat, opts ...Option) (*Inventory, error) {
	if layout.Rows < 1 || layout.SeatsPerRow < 1 {
		return nil, fmt.Errorf("invalid layout %dx%d", layout.Rows, layout.SeatsPerRow)
	}
	inv := &Inventory{
		layout:  layout,
		seats:   NewGrid(layout),
		now:     time.Now,
		holdTTL: DefaultHoldTTL,
	}
	for _, o := range opts {
		o(inv)
	}
	for _, s := range stored {
		if !inv.exists(s.ID) {
			return nil, NewError(ErrNotFound, "load", "seat outside layout", []SeatID{s.ID})
		}
		if s.Status == StatusSelected || !s.Status.Valid() {
			return nil, NewError(ErrValidation, "load", "unstorable status "+string(s.Status), []SeatID{s.ID})
		}
		cur := &inv.seats[s.ID-1]
		cur.Status = s.Status
		cur.ReservedBy = s.ReservedBy
		cur.SoldTo = s.SoldTo
		if s.ReservedUntil != nil {
			t := *s.ReservedUntil
			cur.ReservedUntil = &t
		}
	}
	return inv, nil
}

// Layout returns the grid the inventory was built for.
func (inv *Inventory) Layout() Layout { return inv.layout }

func (inv *Inventory) exists(id SeatID) bool {
	return id >= 1 && int(id) <= len(inv.seats)
}

// view is the seat as readers see it at now.
func view(s Seat, now time.Time) Seat {
	if s.Status == StatusReserved && !s.heldAt(now) {
		s.Status = StatusAvailable
		s.ReservedUntil = nil
		s.ReservedBy = ""
		return s
	}
	if s.ReservedUntil != nil {
		t := *s.ReservedUntil
		s.ReservedUntil = &t
	}
	return s
}

// Get returns the seat with lazy expiry applied.
func (inv *Inventory) Get(id SeatID) (Seat, bool) {
	if !inv.exists(id) {
		return Seat{}, false
	}
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return view(inv.seats[id-1], inv.now()), true
}

// Seats returns every seat in id order with lazy expiry applied.
func (inv *Inventory) Seats() []Seat {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	now := inv.now()
	out := make([]Seat, len(inv.seats))
	for i, s := range inv.seats {
		out[i] = view(s, now)
	}
	return out
}

// IsAvailable reports whether s can be taken: its status is available, or
// it is reserved and the reservation deadline has passed.
func (inv *Inventory) IsAvailable(s Seat) bool {
	return s.effective(inv.now()) == StatusAvailable
}

// RowSeat is one slot of a row snapshot.
type RowSeat struct {
	Position  int
	ID        SeatID
	Available bool
}

// Row returns the availability of every seat in a 1-based row, left to
// right.  An out-of-range row yields nil.
func (inv *Inventory) Row(row int) []RowSeat {
	if row < 1 || row > inv.layout.Rows {
		return nil
	}
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	now := inv.now()
	out := make([]RowSeat, inv.layout.SeatsPerRow)
	for pos := 1; pos <= inv.layout.SeatsPerRow; pos++ {
		id := SeatAt(row, pos, inv.layout.SeatsPerRow)
		out[pos-1] = RowSeat{
			Position:  pos,
			ID:        id,
			Available: inv.seats[id-1].effective(now) == StatusAvailable,
		}
	}
	return out
}

// TotalPrice sums the price of the given seats.  Status does not matter.
func (inv *Inventory) TotalPrice(ids []SeatID) (int, error) {
	if missing := inv.missing(ids); len(missing) > 0 {
		return 0, NewError(ErrNotFound, "total price", "unknown seats", missing)
	}
	total := 0
	for _, id := range ids {
		// price is derived from the id and never changes, no lock needed
		total += inv.seats[id-1].Price
	}
	return total, nil
}

func (inv *Inventory) missing(ids []SeatID) []SeatID {
	var out []SeatID
	for _, id := range ids {
		if !inv.exists(id) {
			out = append(out, id)
		}
	}
	return out
}

// SetStatus moves every listed seat to status on behalf of actor, or none
// of them.  Allowed moves, judged on the lazily expired status:
//
//	available -> selected   validated only, nothing is stored
//	available -> sold       confirming a selection
//	available -> reserved   hold for the inventory's hold TTL
//	reserved  -> sold       only by the holder
//	reserved  -> available  by the holder, or once the hold has lapsed
//	sold      -> available  administrative reset
//
// A seat sold or held by someone else yields ErrConflict naming the seats;
// a move that is never allowed (releasing an available seat) yields
// ErrInvalidTransition.
func (inv *Inventory) SetStatus(ids []SeatID, status Status, actor string) error {
	_, err := inv.Apply(ids, status, actor, time.Time{})
	return err
}

// Undo reverts one change.  A seat that has moved on since the change is
// left alone and reported in an ErrConflict error; the others are reverted.
type Undo func() error

// Apply performs the same transition as SetStatus and hands back an Undo.
// Callers that persist the change use it to roll back when the write
// fails.  For StatusReserved a zero until means now plus the hold TTL.
func (inv *Inventory) Apply(ids []SeatID, status Status, actor string, until time.Time) (Undo, error) {
	if status == StatusReserved {
		if until.IsZero() {
			until = inv.now().Add(inv.holdTTL)
		} else if !until.After(inv.now()) {
			return nil, NewError(ErrValidation, "set status", "hold deadline is not in the future", nil)
		}
	}
	return inv.apply("set status", ids, status, actor, until, "")
}

// Sell moves the seats to sold on behalf of actor and records bookingID as
// their owner, so that cancelling the booking later frees only these seats.
func (inv *Inventory) Sell(ids []SeatID, actor, bookingID string) (Undo, error) {
	if bookingID == "" {
		return nil, NewError(ErrValidation, "sell", "booking id is required", nil)
	}
	return inv.apply("sell", ids, StatusSold, actor, time.Time{}, bookingID)
}

func (inv *Inventory) apply(op string, ids []SeatID, to Status, actor string, until time.Time, owner string) (Undo, error) {
	before, after, err := inv.transition(op, ids, to, actor, until, owner)
	if err != nil {
		return nil, err
	}
	return func() error { return inv.revert(op, before, after) }, nil
}

// Reserve holds the seats for actor until the given deadline.
func (inv *Inventory) Reserve(ids []SeatID, actor string, until time.Time) error {
	if until.IsZero() {
		return NewError(ErrValidation, "reserve", "hold deadline is required", nil)
	}
	_, err := inv.Apply(ids, StatusReserved, actor, until)
	return err
}

// ResetSold returns every sold seat to available.  It reports the seats as
// they were before the reset, owners included, along with an Undo that
// sells them back.
func (inv *Inventory) ResetSold() ([]Seat, Undo) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var before, after []Seat
	for i := range inv.seats {
		if inv.seats[i].Status == StatusSold {
			before = append(before, copySeat(inv.seats[i]))
			release(&inv.seats[i])
			after = append(after, copySeat(inv.seats[i]))
		}
	}
	return before, func() error { return inv.revert("reset", before, after) }
}

// ReleaseHold frees the seats actor holds with the given deadline, whether
// or not the hold has lapsed, and reports which seats it freed.  Sold seats
// and other holds are left alone.
func (inv *Inventory) ReleaseHold(ids []SeatID, actor string, until time.Time) []SeatID {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var freed []SeatID
	for _, id := range SortedUnique(ids) {
		if !inv.exists(id) {
			continue
		}
		s := &inv.seats[id-1]
		if s.Status != StatusReserved || s.ReservedBy != actor ||
			s.ReservedUntil == nil || !s.ReservedUntil.Equal(until) {
			continue
		}
		release(s)
		freed = append(freed, id)
	}
	return freed
}

// ReleaseSold frees the seats sold to bookingID and reports which seats it
// freed.  Seats that were reset and sold again belong to another booking
// and stay sold.
func (inv *Inventory) ReleaseSold(ids []SeatID, bookingID string) []SeatID {
	if bookingID == "" {
		return nil
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var freed []SeatID
	for _, id := range SortedUnique(ids) {
		if !inv.exists(id) {
			continue
		}
		s := &inv.seats[id-1]
		if s.Status != StatusSold || s.SoldTo != bookingID {
			continue
		}
		release(s)
		freed = append(freed, id)
	}
	return freed
}

// NextExpiry returns the deadline of the hold that lapses first, if any
// hold is still running.
func (inv *Inventory) NextExpiry() (time.Time, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	now := inv.now()
	var first time.Time
	for _, s := range inv.seats {
		if s.Status != StatusReserved || !s.heldAt(now) {
			continue
		}
		if first.IsZero() || s.ReservedUntil.Before(first) {
			first = *s.ReservedUntil
		}
	}
	return first, !first.IsZero()
}

// Stats counts seats by effective status.
type Stats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Sold      int `json:"sold"`
}

// OccupancyPercent is the share of sold seats, rounded down.
func (s Stats) OccupancyPercent() int {
	if s.Total == 0 {
		return 0
	}
	return s.Sold * 100 / s.Total
}

// Stats returns the current counts.
func (inv *Inventory) Stats() Stats {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	now := inv.now()
	st := Stats{Total: len(inv.seats)}
	for _, s := range inv.seats {
		switch s.effective(now) {
		case StatusAvailable:
			st.Available++
		case StatusReserved:
			st.Reserved++
		case StatusSold:
			st.Sold++
		}
	}
	return st
}

// transition applies one all-or-nothing status change and returns copies of
// the seats as they were before and right after it.
func (inv *Inventory) transition(op string, ids []SeatID, to Status, actor string, until time.Time, owner string) (before, after []Seat, err error) {
	if len(ids) == 0 {
		return nil, nil, NewError(ErrValidation, op, "empty seat list", nil)
	}
	if !to.Valid() {
		return nil, nil, NewError(ErrInvalidTransition, op, "unknown status "+string(to), nil)
	}
	if to == StatusReserved && actor == "" {
		return nil, nil, NewError(ErrValidation, op, "reservation requires an actor", nil)
	}
	set := SortedUnique(ids)
	if missing := inv.missing(set); len(missing) > 0 {
		return nil, nil, NewError(ErrNotFound, op, "unknown seats", missing)
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	now := inv.now()

	var conflicts, invalid []SeatID
	for _, id := range set {
		switch check(inv.seats[id-1], to, actor, now) {
		case ErrConflict:
			conflicts = append(conflicts, id)
		case ErrInvalidTransition:
			invalid = append(invalid, id)
		}
	}
	if len(conflicts) > 0 {
		return nil, nil, NewError(ErrConflict, op, "seats no longer available for "+string(to), conflicts)
	}
	if len(invalid) > 0 {
		return nil, nil, NewError(ErrInvalidTransition, op, "seats cannot move to "+string(to), invalid)
	}
	if to == StatusSelected {
		return nil, nil, nil
	}
	before = make([]Seat, 0, len(set))
	after = make([]Seat, 0, len(set))
	for _, id := range set {
		before = append(before, copySeat(inv.seats[id-1]))
		s := &inv.seats[id-1]
		switch to {
		case StatusSold:
			release(s)
			s.Status = StatusSold
			s.SoldTo = owner
		case StatusReserved:
			t := until
			s.Status = StatusReserved
			s.ReservedUntil = &t
			s.ReservedBy = actor
		case StatusAvailable:
			release(s)
		}
		after = append(after, copySeat(*s))
	}
	return before, after, nil
}

// revert puts back before for every seat still exactly as after left it.
func (inv *Inventory) revert(op string, before, after []Seat) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var moved []SeatID
	for i, s := range after {
		if !sameState(inv.seats[s.ID-1], s) {
			moved = append(moved, s.ID)
			continue
		}
		inv.seats[s.ID-1] = copySeat(before[i])
	}
	if len(moved) > 0 {
		return NewError(ErrConflict, "undo "+op, "seats changed since, left as they are", moved)
	}
	return nil
}

func sameState(a, b Seat) bool {
	if a.Status != b.Status || a.ReservedBy != b.ReservedBy || a.SoldTo != b.SoldTo {
		return false
	}
	if a.ReservedUntil == nil || b.ReservedUntil == nil {
		return a.ReservedUntil == nil && b.ReservedUntil == nil
	}
	return a.ReservedUntil.Equal(*b.ReservedUntil)
}

func copySeat(s Seat) Seat {
	if s.ReservedUntil != nil {
		t := *s.ReservedUntil
		s.ReservedUntil = &t
	}
	return s
}

// check judges a single seat move; nil means allowed.
func check(s Seat, to Status, actor string, now time.Time) error {
	cur := s.effective(now)
	switch to {
	case StatusSelected, StatusReserved, StatusSold:
		switch cur {
		case StatusAvailable:
			return nil
		case StatusReserved:
			if to == StatusSold && s.ReservedBy == actor {
				return nil
			}
		}
		return ErrConflict
	case StatusAvailable:
		switch cur {
		case StatusSold:
			return nil
		case StatusReserved:
			if s.ReservedBy == actor {
				return nil
			}
			return ErrConflict
		}
		// a lapsed hold may be cleared explicitly
		if s.Status == StatusReserved {
			return nil
		}
	}
	return ErrInvalidTransition
}

func release(s *Seat) {
	s.Status = StatusAvailable
	s.ReservedUntil = nil
	s.ReservedBy = ""
	s.SoldTo = ""
}

// IDs returns the ids of seats in order.
func IDs(seats []Seat) []SeatID {
	out := make([]SeatID, len(seats))
	for i, s := range seats {
		out[i] = s.ID
	}
	return out
}

// SortedUnique drops repeated ids and sorts the rest, which also fixes the
// order in which error reports list seats.
func SortedUnique(ids []SeatID) []SeatID {
	seen := make(map[SeatID]struct{}, len(ids))
	out := make([]SeatID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
