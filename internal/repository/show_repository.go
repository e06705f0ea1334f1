package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/theater-seat-booking/internal/model"
)

// ShowRepo manages persistence for shows.  Dates are passed around as
// "YYYY-MM-DD" strings and compared by MySQL as DATE values.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo returns a ShowRepo bound to db.
func NewShowRepo(db *sql.DB) *ShowRepo { return &ShowRepo{db: db} }

const showColumns = `id, title, description, show_date, show_time, duration_minutes, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShow(row rowScanner) (model.Show, error) {
	var (
		s    model.Show
		date time.Time
		desc sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Title, &desc, &date, &s.Time, &s.DurationMinutes, &s.IsActive); err != nil {
		return model.Show{}, err
	}
	s.Description = desc.String
	s.Date = date.Format(model.DateLayout)
	return s, nil
}

// ShowByDate returns the active show on date.
func (r *ShowRepo) ShowByDate(ctx context.Context, date string) (model.Show, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+showColumns+` FROM shows WHERE show_date = ? AND is_active = 1 LIMIT 1`, date)
	s, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Show{}, ErrShowNotFound
	}
	return s, err
}

// ShowByID returns a show regardless of its active flag.
func (r *ShowRepo) ShowByID(ctx context.Context, id uint64) (model.Show, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
	s, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Show{}, ErrShowNotFound
	}
	return s, err
}

// Upcoming lists up to limit active shows on or after from, earliest first.
func (r *ShowRepo) Upcoming(ctx context.Context, from string, limit int) ([]model.Show, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+showColumns+` FROM shows WHERE show_date >= ? AND is_active = 1 ORDER BY show_date LIMIT ?`,
		from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Show
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// EnsureShows inserts the given shows, skipping dates that already have one.
// It relies on the unique key on shows.show_date.
func (r *ShowRepo) EnsureShows(ctx context.Context, shows []model.Show) error {
	if len(shows) == 0 {
		return nil
	}
	query := `INSERT IGNORE INTO shows (title, description, show_date, show_time, duration_minutes, is_active) VALUES `
	args := make([]any, 0, len(shows)*5)
	for i, s := range shows {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, 1)"
		args = append(args, s.Title, s.Description, s.Date, s.Time, s.DurationMinutes)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}
