package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/seating"
	"github.com/iliyamo/theater-seat-booking/internal/service"
)

type reserveRequest struct {
	Date              string           `json:"date"`
	SeatIDs           []seating.SeatID `json:"seatIds"`
	DurationMinutes   int              `json:"duration_minutes"`
	ExternalBookingID string           `json:"external_booking_id"`
	Metadata          map[string]any   `json:"metadata"`
}

// Reserve handles POST /v1/reservations.  duration_minutes may be omitted
// for the default hold length.
func (h *BookingHandler) Reserve(c echo.Context) error {
	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	ctx, cancel := writeContext(c)
	defer cancel()

	res, err := h.Svc.Reserve(ctx, caller(c), service.ReserveRequest{
		Date:              req.Date,
		SeatIDs:           req.SeatIDs,
		Duration:          time.Duration(req.DurationMinutes) * time.Minute,
		ExternalBookingID: req.ExternalBookingID,
		Metadata:          req.Metadata,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

type finalizeRequest struct {
	CustomerInfo model.CustomerInfo `json:"customerInfo"`
	Notes        string             `json:"notes"`
}

// Finalize handles POST /v1/reservations/:id/finalize and turns the hold
// into a booking.
func (h *BookingHandler) Finalize(c echo.Context) error {
	var req finalizeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	ctx, cancel := writeContext(c)
	defer cancel()

	b, err := h.Svc.Finalize(ctx, caller(c), c.Param("id"), req.CustomerInfo, req.Notes)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// ReleaseReservation handles DELETE /v1/reservations/:id.
func (h *BookingHandler) ReleaseReservation(c echo.Context) error {
	ctx, cancel := writeContext(c)
	defer cancel()

	res, err := h.Svc.ReleaseReservation(ctx, caller(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
