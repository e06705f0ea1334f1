// Package repository contains the MySQL data access layer.  The sentinel
// values below let the service and handler layers tell failure scenarios
// apart.  The not-found errors wrap seating.ErrNotFound so a handler only
// has to check one kind to answer 404.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

var (
	// ErrShowNotFound is returned when no active show exists for a date or id.
	ErrShowNotFound = fmt.Errorf("show %w", seating.ErrNotFound)
	// ErrBookingNotFound is returned for an unknown booking id.
	ErrBookingNotFound = fmt.Errorf("booking %w", seating.ErrNotFound)
	// ErrReservationNotFound is returned for an unknown reservation id.
	ErrReservationNotFound = fmt.Errorf("reservation %w", seating.ErrNotFound)
	// ErrAPIKeyNotFound is returned when no active key matches.
	ErrAPIKeyNotFound = fmt.Errorf("api key %w", seating.ErrNotFound)
)

// ErrConflict is returned when a write cannot be performed because of
// existing state, such as inserting a booking id twice or updating a row
// whose status moved on.  Handlers translate it into an HTTP 409 response.
var ErrConflict = fmt.Errorf("repository: %w", seating.ErrConflict)

// isDuplicate reports whether err is MySQL's duplicate entry error (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
