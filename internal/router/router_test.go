package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/repository"
	"github.com/iliyamo/theater-seat-booking/internal/service"
)

const today = "2026-03-10"

type api struct {
	e      *echo.Echo
	mem    *repository.Memory
	booker string
	reader string
	admin  string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	ctx := context.Background()
	mem := repository.NewMemory()
	now := func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	svc := service.NewBookingService(
		service.Stores{Shows: mem, Seats: mem, Bookings: mem, Reservations: mem},
		nil, nil,
		service.Options{
			HoldTTL:       15 * time.Minute,
			MaxHold:       time.Hour,
			LookaheadDays: 3,
			ShowTemplate:  model.Show{Title: "Hamlet", Time: "19:30:00", DurationMinutes: 120},
			Clock:         now,
		})
	require.NoError(t, svc.EnsureSchedule(ctx))
	auth := service.NewAuthenticator(mem, "test-secret", time.Hour, bcrypt.MinCost)

	issue := func(name string, perms model.Permissions) string {
		k, err := auth.CreateKey(ctx, name, perms, 0)
		require.NoError(t, err)
		return k.Key
	}
	a := &api{
		e:      echo.New(),
		mem:    mem,
		booker: issue("box office", model.Permissions{Read: true, Book: true, Cancel: true}),
		reader: issue("listings", model.Permissions{Read: true}),
		admin:  issue("ops", model.Permissions{Admin: true}),
	}
	d := Deps{Bookings: svc, Auth: auth, Usage: mem}
	RegisterRoutes(a.e, d)
	RegisterAPI(a.e, d)
	return a
}

func (a *api) do(method, target, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const bookBody = `{"date":"2026-03-10","seatIds":["seat-1","seat-2"],"customerInfo":{"name":"Ada","email":"ada@example.com"}}`

func TestHealthNeedsNoCredentials(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/external/shows", "", "").Code)
}

func TestTokenExchangeGrantsAccess(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/auth/token", "", `{"api_key":"`+a.reader+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decode(t, rec)["access_token"].(string)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodGet, "/v1/external/shows?include_stats=true", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	a.e.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)

	shows, _ := decode(t, out)["shows"].([]any)
	require.Len(t, shows, 3)
	first := shows[0].(map[string]any)
	assert.Equal(t, today, first["date"])
	assert.NotNil(t, first["availability"])

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/v1/auth/token", "", `{"api_key":"vk_nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/auth/token", "", `{}`).Code)
}

func TestBookConflictListsSeats(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/external/book", a.booker, bookBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode(t, rec)
	assert.Equal(t, "confirmed", b["status"])
	assert.True(t, strings.HasPrefix(b["id"].(string), "BK"))

	rec = a.do(http.MethodPost, "/v1/external/book", a.booker,
		`{"seatIds":["seat-2","seat-3"],"customerInfo":{"name":"Bo","email":"bo@example.com"}}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, []any{"seat-2"}, body["seat_ids"])
}

func TestBookRejectsBadInput(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/external/book", a.booker,
		`{"seatIds":["seat-1"],"customerInfo":{"name":"Ada","email":"not-an-email"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode(t, rec)["error"])

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/external/book", a.booker, `{"seatIds":`).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/v1/external/book", a.reader, bookBody).Code)
}

func TestSeatListingFilters(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/v1/external/seats?category=premium&maxPrice=200", a.reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	seats := body["seats"].([]any)
	assert.NotEmpty(t, seats)
	for _, s := range seats {
		assert.Equal(t, "premium", s.(map[string]any)["category"])
	}

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/external/seats?minPrice=cheap", a.reader, "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/external/seats?status=broken", a.reader, "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/external/seats?date=2030-01-01", a.reader, "").Code)
}

func TestReservationFinalizeAndRelease(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/reservations", a.booker,
		`{"date":"2026-03-10","seatIds":["seat-40","seat-41"],"duration_minutes":10,"external_booking_id":"ext-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["reservation_id"].(string)

	// held seats cannot be booked by anyone else
	rec = a.do(http.MethodPost, "/v1/external/book", a.admin,
		`{"seatIds":["seat-41"],"customerInfo":{"name":"Ops","email":"ops@example.com"}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/v1/reservations/"+id+"/finalize", a.booker,
		`{"customerInfo":{"name":"Ada","email":"ada@example.com"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, id, decode(t, rec)["reservationId"])

	assert.Equal(t, http.StatusConflict, a.do(http.MethodDelete, "/v1/reservations/"+id, a.booker, "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/v1/reservations/missing", a.booker, "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/reservations", a.booker,
		`{"seatIds":["seat-50"],"duration_minutes":600}`).Code)
}

func TestCancelWithQueryString(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/external/book", a.booker, bookBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["id"].(string)

	rec = a.do(http.MethodDelete, "/v1/external/cancel?bookingId="+id+"&reason=sick", a.booker, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode(t, rec)
	assert.Equal(t, "cancelled", receipt["status"])
	assert.Equal(t, "pending", receipt["refundStatus"])
	assert.Equal(t, "sick", receipt["reason"])

	rec = a.do(http.MethodPost, "/v1/external/cancel", a.booker, `{"bookingId":"`+id+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/external/cancel", a.booker, `{}`).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/v1/external/cancel", a.reader, `{"bookingId":"`+id+`"}`).Code)

	// the seats are free again
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/external/book", a.booker, bookBody).Code)
}

func TestBookingLookupIsPerKey(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/external/book", a.booker, bookBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["id"].(string)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/external/bookings/"+id, a.booker, "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/external/bookings/"+id, a.reader, "").Code)
}

func TestPreviewAndSelect(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/v1/shows/2026-03-10/preview?anchor=seat-5&count=3", a.reader, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"seat-4", "seat-5", "seat-6"}, decode(t, rec)["seatIds"])

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/shows/2026-03-10/preview?anchor=x&count=3", a.reader, "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/shows/2026-03-10/preview?anchor=seat-5&count=0", a.reader, "").Code)

	rec = a.do(http.MethodPost, "/v1/shows/2026-03-10/select", a.reader, `{"seatIds":["seat-7","seat-8"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 300, decode(t, rec)["totalPrice"])

	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/external/book", a.booker, bookBody).Code)
	rec = a.do(http.MethodPost, "/v1/shows/2026-03-10/select", a.reader, `{"seatIds":["seat-2"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPreviewMaxAgeFollowsHolds(t *testing.T) {
	a := newAPI(t)
	preview := "/v1/shows/2026-03-10/preview?anchor=seat-5&count=3"
	rec := a.do(http.MethodGet, preview, a.reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"))

	rec = a.do(http.MethodPost, "/v1/reservations", a.booker,
		`{"date":"2026-03-10","seatIds":["seat-40"],"duration_minutes":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, preview, a.reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "max-age=600", rec.Header().Get("Cache-Control"))

	rec = a.do(http.MethodGet, "/v1/external/seats?date=2026-03-10", a.reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "max-age=600", rec.Header().Get("Cache-Control"))
}

func TestAdminRoutes(t *testing.T) {
	a := newAPI(t)
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/external/book", a.booker, bookBody).Code)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/v1/admin/shows/2026-03-10/reset", a.booker, "").Code)
	rec := a.do(http.MethodPost, "/v1/admin/shows/2026-03-10/reset", a.admin, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = a.do(http.MethodPost, "/v1/admin/keys", a.admin, `{"name":"partner","permissions":["read","book"],"rate_limit":60}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	issued := decode(t, rec)
	assert.True(t, strings.HasPrefix(issued["api_key"].(string), "vk_"))
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/external/shows", issued["api_key"].(string), "").Code)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/admin/keys", a.admin, `{"name":" "}`).Code)
}

func TestUsageIsRecordedPerKey(t *testing.T) {
	a := newAPI(t)
	a.do(http.MethodGet, "/v1/external/shows", a.reader, "")
	a.do(http.MethodGet, "/v1/external/shows", "", "")

	logs := a.mem.UsageLog()
	require.Len(t, logs, 1)
	assert.Equal(t, "/v1/external/shows", logs[0].Endpoint)
	assert.Equal(t, http.StatusOK, logs[0].StatusCode)
}
