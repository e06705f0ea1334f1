package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

// Preview handles GET /v1/shows/:date/preview?anchor=seat-N&count=K and
// returns the block of K free seats the seat map would highlight when the
// pointer rests on the anchor.  An empty block is a valid answer.
func (h *BookingHandler) Preview(c echo.Context) error {
	anchor, err := seating.ParseSeatID(c.QueryParam("anchor"))
	if err != nil {
		return badRequest(c, "anchor must be a seat id such as seat-12")
	}
	k, err := strconv.Atoi(c.QueryParam("count"))
	if err != nil {
		return badRequest(c, "count must be an integer")
	}

	block, err := h.Svc.Preview(c.Request().Context(), c.Param("date"), anchor, k)
	if err != nil {
		return fail(c, err)
	}
	setMaxAge(c, block.FreshFor)
	return c.JSON(http.StatusOK, block)
}

type selectRequest struct {
	SeatIDs []seating.SeatID `json:"seatIds"`
}

// Select handles POST /v1/shows/:date/select.  It checks the selection
// without holding anything.
func (h *BookingHandler) Select(c echo.Context) error {
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if len(req.SeatIDs) == 0 {
		return badRequest(c, "seatIds must be a non-empty list")
	}

	block, err := h.Svc.Select(c.Request().Context(), caller(c), c.Param("date"), req.SeatIDs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, block)
}

// Reset handles POST /v1/admin/shows/:date/reset and returns every sold
// seat of the show to available.
func (h *BookingHandler) Reset(c echo.Context) error {
	ctx, cancel := writeContext(c)
	defer cancel()

	res, err := h.Svc.ResetShow(ctx, caller(c), c.Param("date"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
