package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-seat-booking/internal/seating"
	"github.com/iliyamo/theater-seat-booking/internal/service"
)

// fail maps a service error to its HTTP status and writes
// {"error": code, "message": ...}.  Conflicts also list the seats that
// caused them.  Unknown errors are logged and reported as 500 without
// details.
func fail(c echo.Context, err error) error {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, seating.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, seating.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, seating.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, seating.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, seating.ErrInvalidTransition):
		status, code = http.StatusUnprocessableEntity, "invalid_transition"
	default:
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal server error"})
	}

	body := echo.Map{"error": code, "message": message(err)}
	if ids := seating.SeatIDsOf(err); len(ids) > 0 {
		body["seat_ids"] = ids
	}
	return c.JSON(status, body)
}

func message(err error) string {
	var se *seating.Error
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}
	return err.Error()
}

// badRequest reports malformed input that never reached the service.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "message": msg})
}
