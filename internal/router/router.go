// Package router registers the HTTP routes of the API and the middleware
// each group runs behind.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/theater-seat-booking/internal/config"
	"github.com/iliyamo/theater-seat-booking/internal/handler"
	"github.com/iliyamo/theater-seat-booking/internal/middleware"
	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/service"
)

// Deps carries what the routes need.  Redis may be nil, which turns rate
// limiting and response caching off.
type Deps struct {
	Bookings  *service.BookingService
	Auth      *service.Authenticator
	Usage     middleware.UsageRecorder
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// RegisterRoutes registers routes that need no credentials.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/health", handler.Health)

	a := handler.NewAuthHandler(d.Auth)
	e.POST("/v1/auth/token", a.Token)
}

// RegisterAPI registers the authenticated API under /v1.  Every request
// is authenticated, rate limited per key and logged to the usage log
// before the permission check of its route runs.
func RegisterAPI(e *echo.Echo, d Deps) {
	h := handler.NewBookingHandler(d.Bookings)
	a := handler.NewAuthHandler(d.Auth)

	v1 := e.Group("/v1",
		middleware.Authenticate(d.Auth),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)
	if d.Usage != nil {
		v1.Use(middleware.RecordUsage(d.Usage))
	}

	read := middleware.RequirePermission(model.PermRead)
	book := middleware.RequirePermission(model.PermBook)
	cancel := middleware.RequirePermission(model.PermCancel)
	showsCache := middleware.NewRedisCache(d.Cache, d.Redis, middleware.ShowsScope)
	seatsCache := middleware.NewRedisCache(d.Cache, d.Redis, middleware.SeatsScope)

	ext := v1.Group("/external")
	ext.GET("/shows", h.Shows, read, showsCache)
	ext.GET("/seats", h.Seats, read, seatsCache)
	ext.POST("/book", h.Book, book)
	ext.POST("/cancel", h.Cancel, cancel)
	ext.DELETE("/cancel", h.Cancel, cancel)
	ext.GET("/bookings/:id", h.Booking, read)

	v1.POST("/reservations", h.Reserve, book)
	v1.POST("/reservations/:id/finalize", h.Finalize, book)
	v1.DELETE("/reservations/:id", h.ReleaseReservation, book)

	v1.GET("/shows/:date/preview", h.Preview, read, seatsCache)
	v1.POST("/shows/:date/select", h.Select, read)

	admin := v1.Group("/admin", middleware.RequirePermission(model.PermAdmin))
	admin.POST("/shows/:date/reset", h.Reset)
	admin.POST("/keys", a.CreateKey)
}
