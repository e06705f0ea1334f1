package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

// ReservationRepo stores seat holds.  Held seats are mirrored into
// show_seats with their deadline so that a restarted server sees the same
// holds; expiry itself is never written, readers treat a passed deadline
// as available.
type ReservationRepo struct {
	db    *sql.DB
	seats *ShowSeatRepo
}

// NewReservationRepo returns a ReservationRepo bound to db.
func NewReservationRepo(db *sql.DB, seats *ShowSeatRepo) *ReservationRepo {
	return &ReservationRepo{db: db, seats: seats}
}

// CreateReservation inserts res, its seats and the matching reserved seat
// states in one transaction.
func (r *ReservationRepo) CreateReservation(ctx context.Context, res *model.Reservation) error {
	var meta any
	if len(res.Metadata) > 0 {
		b, err := json.Marshal(res.Metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}

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
		`INSERT INTO reservations (id, show_id, api_key_id, external_booking_id, metadata, status, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.ShowID, res.APIKeyID, nullString(res.ExternalBookingID), meta, string(res.Status),
		dbTime(res.ExpiresAt), dbTime(res.CreatedAt))
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}

	if len(res.SeatIDs) > 0 {
		query := `INSERT INTO reservation_seats (reservation_id, seat_number) VALUES `
		args := make([]any, 0, len(res.SeatIDs)*2)
		held := make([]seating.Seat, 0, len(res.SeatIDs))
		until := res.ExpiresAt
		for i, id := range res.SeatIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, res.ID, int(id))
			held = append(held, seating.Seat{ID: id, Status: seating.StatusReserved, ReservedUntil: &until, ReservedBy: res.APIKeyID})
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		if err := r.seats.SaveSeatsTx(ctx, tx, res.ShowID, held); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ReservationByID loads a reservation with its seat ids.
func (r *ReservationRepo) ReservationByID(ctx context.Context, id string) (model.Reservation, error) {
	var (
		res    model.Reservation
		status string
		ext    sql.NullString
		meta   sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, show_id, api_key_id, external_booking_id, metadata, status, expires_at, created_at
		 FROM reservations WHERE id = ?`, id).Scan(
		&res.ID, &res.ShowID, &res.APIKeyID, &ext, &meta, &status, &res.ExpiresAt, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.ReservationStatus(status)
	res.ExternalBookingID = ext.String
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &res.Metadata); err != nil {
			return model.Reservation{}, err
		}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_number FROM reservation_seats WHERE reservation_id = ? ORDER BY seat_number`, id)
	if err != nil {
		return model.Reservation{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return model.Reservation{}, err
		}
		res.SeatIDs = append(res.SeatIDs, seating.SeatID(n))
	}
	return res, rows.Err()
}

// ReleaseReservation marks an active reservation released and drops the
// holds it still owns, matched by holder and deadline.  Seats that were
// sold or held again in the meantime are left alone.
func (r *ReservationRepo) ReleaseReservation(ctx context.Context, res *model.Reservation) error {
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

	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'released' WHERE id = ? AND status = 'active'`, res.ID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrConflict
	}

	if len(res.SeatIDs) > 0 {
		args := append([]any{res.ShowID, res.APIKeyID, dbTime(res.ExpiresAt)}, seatArgs(res.SeatIDs)...)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM show_seats WHERE show_id = ? AND status = 'reserved' AND reserved_by = ? AND reserved_until = ?`+
				` AND seat_number IN (`+placeholders(len(res.SeatIDs))+`)`,
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
