package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

// ShowSeatRepo persists the per-show state of seats.  Only seats that are
// not available have a row; deleting the row makes the seat available
// again.  Row, category and price are derived from the seat number and
// never stored.
type ShowSeatRepo struct {
	db *sql.DB
}

// NewShowSeatRepo constructs a ShowSeatRepo given a DB handle.
func NewShowSeatRepo(db *sql.DB) *ShowSeatRepo { return &ShowSeatRepo{db: db} }

// LoadSeats returns the stored seat states of a show in seat order.  Each
// returned seat carries only its ID, status and owner fields; the inventory
// fills in the rest from its layout.
func (r *ShowSeatRepo) LoadSeats(ctx context.Context, showID uint64) ([]seating.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_number, status, reserved_until, reserved_by, booking_id FROM show_seats WHERE show_id = ? ORDER BY seat_number`,
		showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []seating.Seat
	for rows.Next() {
		var (
			s     seating.Seat
			num   int
			until sql.NullTime
			by    sql.NullString
			owner sql.NullString
		)
		if err := rows.Scan(&num, &s.Status, &until, &by, &owner); err != nil {
			return nil, err
		}
		s.ID = seating.SeatID(num)
		if until.Valid {
			t := until.Time.UTC()
			s.ReservedUntil = &t
		}
		s.ReservedBy = by.String
		s.SoldTo = owner.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveSeatsTx writes the given seat states inside tx.  Available seats lose
// their row, every other status is upserted.  The caller commits or rolls
// back the transaction.
func (r *ShowSeatRepo) SaveSeatsTx(ctx context.Context, tx *sql.Tx, showID uint64, seats []seating.Seat) error {
	var free []seating.SeatID
	var taken []seating.Seat
	for _, s := range seats {
		if s.Status == seating.StatusAvailable {
			free = append(free, s.ID)
		} else {
			taken = append(taken, s)
		}
	}
	if len(free) > 0 {
		args := append([]any{showID}, seatArgs(free)...)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM show_seats WHERE show_id = ? AND seat_number IN (`+placeholders(len(free))+`)`,
			args...); err != nil {
			return err
		}
	}
	if len(taken) == 0 {
		return nil
	}
	query := `INSERT INTO show_seats (show_id, seat_number, status, reserved_until, reserved_by, booking_id) VALUES `
	args := make([]any, 0, len(taken)*6)
	for i, s := range taken {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		var until any
		if s.ReservedUntil != nil {
			until = dbTime(*s.ReservedUntil)
		}
		var by any
		if s.ReservedBy != "" {
			by = s.ReservedBy
		}
		args = append(args, showID, int(s.ID), string(s.Status), until, by, nullString(s.SoldTo))
	}
	query += ` ON DUPLICATE KEY UPDATE status = VALUES(status), reserved_until = VALUES(reserved_until),` +
		` reserved_by = VALUES(reserved_by), booking_id = VALUES(booking_id)`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ReleaseSeats makes the given sold seats of a show available, each only
// while it is still sold to the booking recorded in SoldTo.  It backs the
// administrative reset.
func (r *ShowSeatRepo) ReleaseSeats(ctx context.Context, showID uint64, sold []seating.Seat) error {
	if len(sold) == 0 {
		return nil
	}
	pairs := strings.Repeat("(?, ?), ", len(sold)-1) + "(?, ?)"
	args := make([]any, 0, 1+len(sold)*2)
	args = append(args, showID)
	for _, s := range sold {
		args = append(args, int(s.ID), s.SoldTo)
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM show_seats WHERE show_id = ? AND status = 'sold' AND (seat_number, COALESCE(booking_id, '')) IN (`+pairs+`)`,
		args...)
	return err
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func seatArgs(ids []seating.SeatID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// dbTime formats t the way DATETIME columns are written.
func dbTime(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") }
