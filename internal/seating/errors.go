package seating

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds.  Callers compare with errors.Is; the concrete
// *Error carries the offending seat ids.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation error")
	ErrForbidden         = errors.New("forbidden")
)

// Error describes a failed inventory operation.
type Error struct {
	Kind    error
	Op      string
	SeatIDs []SeatID
	Msg     string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.SeatIDs) > 0 {
		ids := make([]string, len(e.SeatIDs))
		for i, id := range e.SeatIDs {
			ids[i] = id.String()
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(ids, ","))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

// SeatIDsOf extracts the offending seat ids from err, if it carries any.
func SeatIDsOf(err error) []SeatID {
	var se *Error
	if errors.As(err, &se) {
		return se.SeatIDs
	}
	return nil
}

// NewError builds an *Error of the given kind.
func NewError(kind error, op, msg string, ids []SeatID) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, SeatIDs: ids}
}
