package handler

// external.go serves the partner API: browsing shows and seats, booking
// and cancelling, and looking up a booking.

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-seat-booking/internal/middleware"
	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/seating"
	"github.com/iliyamo/theater-seat-booking/internal/service"
)

// writeTimeout bounds operations that change seats.
const writeTimeout = 5 * time.Second

// BookingHandler exposes the booking service over HTTP.
type BookingHandler struct {
	Svc *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{Svc: svc}
}

func caller(c echo.Context) model.Principal {
	p, _ := middleware.PrincipalFrom(c)
	return p
}

func writeContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), writeTimeout)
}

// setMaxAge caps how long caches may keep a read that a lapsing hold will
// change.
func setMaxAge(c echo.Context, d *time.Duration) {
	if d == nil {
		return
	}
	c.Response().Header().Set("Cache-Control", "max-age="+strconv.Itoa(int(*d/time.Second)))
}

// Shows handles GET /v1/external/shows?days=N&include_stats=true.
func (h *BookingHandler) Shows(c echo.Context) error {
	days := 0
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return badRequest(c, "days must be a positive integer")
		}
		days = n
	}
	withStats, _ := strconv.ParseBool(c.QueryParam("include_stats"))

	list, err := h.Svc.ListShows(c.Request().Context(), days, withStats)
	if err != nil {
		return fail(c, err)
	}
	setMaxAge(c, list.FreshFor)
	return c.JSON(http.StatusOK, list)
}

func priceParam(c echo.Context, name string) (*int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Seats handles GET /v1/external/seats.  Query parameters: date (default
// today), category, status, minPrice and maxPrice.
func (h *BookingHandler) Seats(c echo.Context) error {
	f := service.SeatFilter{
		Category: seating.Category(strings.ToLower(c.QueryParam("category"))),
		Status:   seating.Status(strings.ToLower(c.QueryParam("status"))),
	}
	var err error
	if f.MinPrice, err = priceParam(c, "minPrice"); err != nil {
		return badRequest(c, "minPrice must be an integer")
	}
	if f.MaxPrice, err = priceParam(c, "maxPrice"); err != nil {
		return badRequest(c, "maxPrice must be an integer")
	}

	listing, err := h.Svc.ListSeats(c.Request().Context(), c.QueryParam("date"), f)
	if err != nil {
		return fail(c, err)
	}
	setMaxAge(c, listing.FreshFor)
	return c.JSON(http.StatusOK, listing)
}

type bookRequest struct {
	Date         string             `json:"date"`
	SeatIDs      []seating.SeatID   `json:"seatIds"`
	CustomerInfo model.CustomerInfo `json:"customerInfo"`
	Notes        string             `json:"notes"`
}

// Book handles POST /v1/external/book.
func (h *BookingHandler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	ctx, cancel := writeContext(c)
	defer cancel()

	b, err := h.Svc.Book(ctx, caller(c), service.BookRequest{
		Date:     req.Date,
		SeatIDs:  req.SeatIDs,
		Customer: req.CustomerInfo,
		Notes:    req.Notes,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

type cancelRequest struct {
	BookingID string `json:"bookingId" query:"bookingId"`
	Reason    string `json:"reason" query:"reason"`
}

// Cancel handles POST and DELETE /v1/external/cancel.  DELETE may carry
// bookingId and reason in the query string instead of a body.
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if strings.TrimSpace(req.BookingID) == "" {
		return badRequest(c, "bookingId is required")
	}
	ctx, cancel := writeContext(c)
	defer cancel()

	receipt, err := h.Svc.Cancel(ctx, caller(c), strings.TrimSpace(req.BookingID), req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, receipt)
}

// Booking handles GET /v1/external/bookings/:id.
func (h *BookingHandler) Booking(c echo.Context) error {
	b, err := h.Svc.GetBooking(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
