package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-seat-booking/internal/cache"
	"github.com/iliyamo/theater-seat-booking/internal/config"
	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/repository"
	"github.com/iliyamo/theater-seat-booking/internal/service"
)

type fakeVerifier struct {
	tokens map[string]model.Principal
	keys   map[string]model.Principal
	err    error
}

func (f fakeVerifier) VerifyToken(raw string) (model.Principal, error) {
	if p, ok := f.tokens[raw]; ok {
		return p, nil
	}
	return model.Principal{}, service.ErrUnauthorized
}

func (f fakeVerifier) VerifyKey(_ context.Context, raw string) (model.Principal, error) {
	if f.err != nil {
		return model.Principal{}, f.err
	}
	if p, ok := f.keys[raw]; ok {
		return p, nil
	}
	return model.Principal{}, service.ErrUnauthorized
}

var (
	reader = model.Principal{KeyID: "key-r", Permissions: model.Permissions{Read: true}}
	booker = model.Principal{KeyID: "key-b", Permissions: model.Permissions{Read: true, Book: true}, RateLimit: 30}
)

func whoami(c echo.Context) error {
	p, _ := PrincipalFrom(c)
	return c.String(http.StatusOK, p.KeyID)
}

func serve(e *echo.Echo, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateCredentialForms(t *testing.T) {
	v := fakeVerifier{
		tokens: map[string]model.Principal{"jwt-token": reader},
		keys:   map[string]model.Principal{"vk_secret": booker},
	}
	e := echo.New()
	e.GET("/me", whoami, Authenticate(v))

	cases := []struct {
		name   string
		header map[string]string
		code   int
		body   string
	}{
		{"missing", nil, http.StatusUnauthorized, ""},
		{"bearer token", map[string]string{"Authorization": "Bearer jwt-token"}, http.StatusOK, "key-r"},
		{"bearer key", map[string]string{"Authorization": "Bearer vk_secret"}, http.StatusOK, "key-b"},
		{"apikey scheme", map[string]string{"Authorization": "ApiKey vk_secret"}, http.StatusOK, "key-b"},
		{"header", map[string]string{"X-API-Key": "vk_secret"}, http.StatusOK, "key-b"},
		{"bad token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, ""},
		{"basic", map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/me", tc.header)
			assert.Equal(t, tc.code, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestAuthenticateStoreFailure(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, Authenticate(fakeVerifier{err: errors.New("db down")}))
	rec := serve(e, http.MethodGet, "/me", map[string]string{"X-API-Key": "vk_x"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func withPrincipal(p model.Principal) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			SetPrincipal(c, p)
			return next(c)
		}
	}
}

func TestRequirePermission(t *testing.T) {
	e := echo.New()
	e.POST("/book", whoami, withPrincipal(reader), RequirePermission(model.PermBook))
	e.POST("/book2", whoami, withPrincipal(booker), RequirePermission(model.PermBook))
	e.POST("/reset", whoami, withPrincipal(model.Principal{KeyID: "root", Permissions: model.Permissions{Admin: true}}), RequirePermission(model.PermAdmin))

	rec := serve(e, http.MethodPost, "/book", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing permission: book")
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/book2", nil).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/reset", nil).Code)
}

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := clock
	clock = func() time.Time { return at }
	t.Cleanup(func() { clock = prev })
}

func rateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "key",
		Prefix:         "rl",
	}
}

func TestTokenBucketAllows(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	rdb, mock := redismock.NewClientMock()
	mock.ExpectEvalSha(limiterScript.Hash(), []string{"rl:key:key-r"},
		now.UnixMilli(), 5, 1, int64(1000), int64(60)).
		SetVal([]interface{}{int64(1), int64(4), int64(0)})

	e := echo.New()
	e.GET("/shows", whoami, withPrincipal(reader), NewTokenBucket(rateConfig(), rdb))
	rec := serve(e, http.MethodGet, "/shows", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucketPerKeyLimitBlocks(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	rdb, mock := redismock.NewClientMock()
	// 30 requests per minute refill one token every two seconds
	mock.ExpectEvalSha(limiterScript.Hash(), []string{"rl:key:key-b"},
		now.UnixMilli(), 30, 1, int64(2000), int64(60)).
		SetVal([]interface{}{int64(0), int64(0), int64(1500)})

	e := echo.New()
	e.GET("/shows", whoami, withPrincipal(booker), NewTokenBucket(rateConfig(), rdb))
	rec := serve(e, http.MethodGet, "/shows", nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucketFailsOpen(t *testing.T) {
	rdb, _ := redismock.NewClientMock()

	e := echo.New()
	e.GET("/shows", whoami, withPrincipal(reader), NewTokenBucket(rateConfig(), rdb))
	// no expectation registered: the script call errors and the request passes
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/shows", nil).Code)
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          30 * time.Second,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
}

func TestRedisCacheHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := cache.Key("cache", "seats:2026-03-10",
		"route:/v1/shows/:date/preview:q:anchor=seat-5&count=3:path:/v1/shows/2026-03-10/preview")
	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"cached":true}`))
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(payload))

	called := false
	e := echo.New()
	e.GET("/v1/shows/:date/preview", func(c echo.Context) error {
		called = true
		return c.JSON(http.StatusOK, echo.Map{"cached": false})
	}, NewRedisCache(cacheConfig(), rdb, SeatsScope))

	rec := serve(e, http.MethodGet, "/v1/shows/2026-03-10/preview?anchor=seat-5&count=3", nil)
	assert.False(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, `{"cached":true}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheMissCallsHandler(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := cache.Key("cache", cache.ShowsScope, "route:/v1/external/shows:q:days=2:path:/v1/external/shows")
	mock.ExpectGet(key).RedisNil()

	e := echo.New()
	e.GET("/v1/external/shows", func(c echo.Context) error {
		return c.String(http.StatusOK, "fresh")
	}, NewRedisCache(cacheConfig(), rdb, ShowsScope))

	rec := serve(e, http.MethodGet, "/v1/external/shows?days=2", nil)
	assert.Equal(t, "fresh", rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestRedisCacheHonorsMaxAge(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := cache.Key("cache", "seats:2026-03-10",
		"route:/v1/shows/:date/preview:q:anchor=seat-5&count=3:path:/v1/shows/2026-03-10/preview")
	payload, err := encodePayload(http.StatusOK, http.Header{
		"Cache-Control": {"max-age=5"},
		"Content-Type":  {echo.MIMETextPlainCharsetUTF8},
	}, []byte("fresh"))
	require.NoError(t, err)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSetEx(key, payload, 5*time.Second).SetVal("OK")

	e := echo.New()
	e.GET("/v1/shows/:date/preview", func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "max-age=5")
		return c.String(http.StatusOK, "fresh")
	}, NewRedisCache(cacheConfig(), rdb, SeatsScope))

	rec := serve(e, http.MethodGet, "/v1/shows/2026-03-10/preview?anchor=seat-5&count=3", nil)
	assert.Equal(t, "fresh", rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreTTL(t *testing.T) {
	ttl, ok := storeTTL(30*time.Second, http.Header{})
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, ttl)

	ttl, ok = storeTTL(30*time.Second, http.Header{"Cache-Control": {"public, max-age=12"}})
	assert.True(t, ok)
	assert.Equal(t, 12*time.Second, ttl)

	ttl, ok = storeTTL(30*time.Second, http.Header{"Cache-Control": {"max-age=90"}})
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, ttl)

	_, ok = storeTTL(30*time.Second, http.Header{"Cache-Control": {"max-age=0"}})
	assert.False(t, ok)
	_, ok = storeTTL(30*time.Second, http.Header{"Cache-Control": {"no-store"}})
	assert.False(t, ok)
}

func TestSeatsScopeDefaultsToToday(t *testing.T) {
	fixClock(t, time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC))
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/external/seats", nil), httptest.NewRecorder())
	assert.Equal(t, "seats:2026-03-10", SeatsScope(c))

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/external/seats?date=2026-03-12", nil), httptest.NewRecorder())
	assert.Equal(t, "seats:2026-03-12", SeatsScope(c))
}

func TestRecordUsage(t *testing.T) {
	mem := repository.NewMemory()
	e := echo.New()
	e.POST("/v1/external/book", func(c echo.Context) error {
		return c.JSON(http.StatusCreated, echo.Map{"ok": true})
	}, withPrincipal(booker), RecordUsage(mem))
	e.GET("/v1/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RecordUsage(mem))

	serve(e, http.MethodPost, "/v1/external/book", map[string]string{"User-Agent": "partner-sdk/1.0"})
	serve(e, http.MethodGet, "/v1/health", nil)

	logs := mem.UsageLog()
	require.Len(t, logs, 1)
	assert.Equal(t, "key-b", logs[0].APIKeyID)
	assert.Equal(t, "/v1/external/book", logs[0].Endpoint)
	assert.Equal(t, http.MethodPost, logs[0].Method)
	assert.Equal(t, http.StatusCreated, logs[0].StatusCode)
	assert.Equal(t, "partner-sdk/1.0", logs[0].UserAgent)
}
