// Package seating holds the seat inventory of a single show and the block
// selector that picks adjacent seats around an anchor.  Everything in this
// package is in-memory; persistence lives in the repository package and is
// driven by the booking service.
package seating

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSeatsPerRow is the width of every row in the theater grid.
const DefaultSeatsPerRow = 10

// DefaultRows is the number of rows in the theater grid.
const DefaultRows = 10

// DefaultSection is the section label every seat carries.
const DefaultSection = "A"

// Status is the state of a seat.  Only Available, Reserved and Sold are
// ever stored; Selected is a client-side overlay on top of Available.
type Status string

const (
	StatusAvailable Status = "available"
	StatusSelected  Status = "selected"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusSelected, StatusReserved, StatusSold:
		return true
	}
	return false
}

// Category is the pricing tier of a seat, derived from its row.
type Category string

const (
	CategoryPremium  Category = "premium"
	CategoryStandard Category = "standard"
	CategoryEconomy  Category = "economy"
)

// CategoryForRow maps a 1-based row to its tier: rows 1-3 are premium,
// 4-7 standard and everything behind economy.
func CategoryForRow(row int) Category {
	switch {
	case row <= 3:
		return CategoryPremium
	case row <= 7:
		return CategoryStandard
	default:
		return CategoryEconomy
	}
}

// Price returns the per-seat price of the tier in whole monetary units.
func (c Category) Price() int {
	switch c {
	case CategoryPremium:
		return 150
	case CategoryStandard:
		return 100
	default:
		return 50
	}
}

// Layout describes the grid of a theater.
type Layout struct {
	Rows        int
	SeatsPerRow int
	Section     string
}

// DefaultLayout is the 10x10 grid with a single section.
func DefaultLayout() Layout {
	return Layout{Rows: DefaultRows, SeatsPerRow: DefaultSeatsPerRow, Section: DefaultSection}
}

// Capacity is the number of seats in the grid.
func (l Layout) Capacity() int { return l.Rows * l.SeatsPerRow }

// SeatID identifies a seat by its 1-based global index.  Row and position
// are derived from it against a row width, so no string parsing is needed
// once an id has entered the system.
type SeatID int

// Number is the 1-based sequence number of the seat.
func (id SeatID) Number() int { return int(id) }

// Row returns the 1-based row of the seat for the given row width.
func (id SeatID) Row(seatsPerRow int) int { return (int(id)-1)/seatsPerRow + 1 }

// Position returns the 1-based position of the seat inside its row.
func (id SeatID) Position(seatsPerRow int) int { return (int(id)-1)%seatsPerRow + 1 }

// SeatAt is the inverse of Row/Position.
func SeatAt(row, position, seatsPerRow int) SeatID {
	return SeatID((row-1)*seatsPerRow + position)
}

func (id SeatID) String() string { return "seat-" + strconv.Itoa(int(id)) }

// ParseSeatID accepts "seat-N" or a bare "N".
func ParseSeatID(s string) (SeatID, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "seat-")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid seat id %q", s)
	}
	return SeatID(n), nil
}

// MarshalJSON renders the id in its "seat-N" form.
func (id SeatID) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }

// UnmarshalJSON accepts the "seat-N" form or a plain number.
func (id *SeatID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if errNum := json.Unmarshal(b, &n); errNum != nil {
			return err
		}
		s = strconv.Itoa(n)
	}
	parsed, err := ParseSeatID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Seat is a single seat of a show.  ReservedUntil and ReservedBy are only
// meaningful while Status is StatusReserved, SoldTo only while it is
// StatusSold.
type Seat struct {
	ID            SeatID     `json:"id"`
	Number        int        `json:"number"`
	Row           int        `json:"row"`
	Section       string     `json:"section"`
	Category      Category   `json:"category"`
	Price         int        `json:"price"`
	Status        Status     `json:"status"`
	ReservedUntil *time.Time `json:"reservedUntil,omitempty"`
	ReservedBy    string     `json:"-"`
	SoldTo        string     `json:"-"`
}

// NewSeat builds an available seat with row, category and price derived
// from its id.
func NewSeat(id SeatID, layout Layout) Seat {
	row := id.Row(layout.SeatsPerRow)
	cat := CategoryForRow(row)
	return Seat{
		ID:       id,
		Number:   id.Number(),
		Row:      row,
		Section:  layout.Section,
		Category: cat,
		Price:    cat.Price(),
		Status:   StatusAvailable,
	}
}

// NewGrid returns every seat of the layout in id order, all available.
func NewGrid(layout Layout) []Seat {
	seats := make([]Seat, 0, layout.Capacity())
	for i := 1; i <= layout.Capacity(); i++ {
		seats = append(seats, NewSeat(SeatID(i), layout))
	}
	return seats
}

// heldAt reports whether the seat carries a reservation that is still
// running at now.
func (s Seat) heldAt(now time.Time) bool {
	return s.Status == StatusReserved && s.ReservedUntil != nil && s.ReservedUntil.After(now)
}

// effective returns the status a reader should see at now: a reservation
// whose deadline has passed reads as available.
func (s Seat) effective(now time.Time) Status {
	if s.Status == StatusReserved && !s.heldAt(now) {
		return StatusAvailable
	}
	return s.Status
}
