package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

// BookingRepo persists bookings together with the seat states they imply.
// Every write runs in one transaction so a booking row never exists
// without its seats being sold, and vice versa.
type BookingRepo struct {
	db    *sql.DB
	seats *ShowSeatRepo
}

// NewBookingRepo returns a BookingRepo writing seat states through seats.
func NewBookingRepo(db *sql.DB, seats *ShowSeatRepo) *BookingRepo {
	return &BookingRepo{db: db, seats: seats}
}

// CreateBooking inserts b and its seats, stores b.Seats (which the caller
// has already moved to sold) and, when b finalizes a reservation, marks
// that reservation consumed.  A reservation that is no longer active makes
// the whole write fail with ErrConflict.
func (r *BookingRepo) CreateBooking(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookings (id, show_id, api_key_id, customer_name, customer_email, customer_phone, total_price, status, notes, reservation_id, booked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ShowID, b.APIKeyID, b.CustomerInfo.Name, b.CustomerInfo.Email, nullString(b.CustomerInfo.Phone),
		b.TotalPrice, string(b.Status), nullString(b.Notes), nullString(b.ReservationID), dbTime(b.BookedAt))
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}

	if len(b.Seats) > 0 {
		query := `INSERT INTO booking_seats (booking_id, seat_number, price) VALUES `
		args := make([]any, 0, len(b.Seats)*3)
		for i, s := range b.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, b.ID, int(s.ID), s.Price)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := r.seats.SaveSeatsTx(ctx, tx, b.ShowID, b.Seats); err != nil {
		return err
	}

	if b.ReservationID != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = 'consumed' WHERE id = ? AND status = 'active'`, b.ReservationID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrConflict
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// BookingByID loads a booking and its seat ids.  Seat details are left to
// the caller, which knows the theater layout.
func (r *BookingRepo) BookingByID(ctx context.Context, id string) (model.Booking, error) {
	var (
		b                        model.Booking
		status                   string
		phone, notes, resID, why sql.NullString
		cancelledAt              sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, show_id, api_key_id, customer_name, customer_email, customer_phone, total_price, status, notes,
		        reservation_id, booked_at, cancelled_at, cancel_reason
		 FROM bookings WHERE id = ?`, id).Scan(
		&b.ID, &b.ShowID, &b.APIKeyID, &b.CustomerInfo.Name, &b.CustomerInfo.Email, &phone, &b.TotalPrice, &status,
		&notes, &resID, &b.BookedAt, &cancelledAt, &why)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.CustomerInfo.Phone = phone.String
	b.Notes = notes.String
	b.ReservationID = resID.String
	b.CancelReason = why.String
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_number FROM booking_seats WHERE booking_id = ? ORDER BY seat_number`, id)
	if err != nil {
		return model.Booking{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return model.Booking{}, err
		}
		b.SeatIDs = append(b.SeatIDs, seating.SeatID(n))
	}
	return b, rows.Err()
}

// CancelBooking marks b cancelled with b.CancelledAt and b.CancelReason and
// frees the seats still sold to it.  Cancelling a booking twice yields
// ErrConflict.
func (r *BookingRepo) CancelBooking(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var at any
	if b.CancelledAt != nil {
		at = dbTime(*b.CancelledAt)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', cancelled_at = ?, cancel_reason = ? WHERE id = ? AND status = 'confirmed'`,
		at, nullString(b.CancelReason), b.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrConflict
	}

	if len(b.SeatIDs) > 0 {
		args := append([]any{b.ShowID, b.ID}, seatArgs(b.SeatIDs)...)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM show_seats WHERE show_id = ? AND status = 'sold' AND booking_id = ? AND seat_number IN (`+
				placeholders(len(b.SeatIDs))+`)`,
			args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
