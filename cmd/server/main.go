package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/iliyamo/theater-seat-booking/internal/cache"
	"github.com/iliyamo/theater-seat-booking/internal/config"
	"github.com/iliyamo/theater-seat-booking/internal/database"
	"github.com/iliyamo/theater-seat-booking/internal/middleware"
	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/queue"
	"github.com/iliyamo/theater-seat-booking/internal/repository"
	"github.com/iliyamo/theater-seat-booking/internal/router"
	"github.com/iliyamo/theater-seat-booking/internal/service"
)

func main() {
	var (
		envFile        = pflag.String("env-file", ".env", "file with environment variables, ignored when missing")
		consumer       = pflag.Bool("consumer", false, "run the event consumer instead of the HTTP server")
		logDir         = pflag.String("log-dir", "logs", "directory of the booking event log written by --consumer")
		memory         = pflag.Bool("memory", false, "keep all state in memory even when DB_HOST is set")
		migrate        = pflag.Bool("migrate", true, "create missing tables on startup")
		bootstrapKey   = pflag.String("bootstrap-key", "", "issue an API key with this name at startup and print it")
		bootstrapPerms = pflag.String("bootstrap-perms", "read,book,cancel,admin", "permissions of the bootstrap key")
	)
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env file %s: %v", *envFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker := config.LoadBrokerConfig()
	if *consumer {
		w := queue.NewLogWriter(*logDir)
		log.Printf("event consumer writing to %s", w.Path())
		if err := queue.StartEventConsumer(ctx, broker.URL, w); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
		return
	}

	cfg := config.Load()
	bcfg := config.LoadBookingConfig()

	var (
		stores service.Stores
		keys   service.APIKeyStore
		usage  middleware.UsageRecorder
	)
	if cfg.HasDatabase() && !*memory {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		if *migrate {
			if err := database.Migrate(ctx, db); err != nil {
				log.Fatalf("database migrate: %v", err)
			}
		}
		stores, keys, usage = mysqlStores(db)
	} else {
		log.Printf("no database configured, keeping state in memory")
		mem := repository.NewMemory()
		stores = service.Stores{Shows: mem, Seats: mem, Bookings: mem, Reservations: mem}
		keys, usage = mem, mem
	}

	// Redis is optional: without it rate limiting and caching are off.
	var rdb *redis.Client
	if c, err := config.NewRedisClient(config.LoadRedisConfig()); err != nil {
		log.Printf("redis unavailable, running without rate limiting and cache: %v", err)
	} else {
		rdb = c
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	var events service.Publisher
	if broker.Enabled {
		events = service.NewAMQPPublisher(broker.URL)
	}

	svc := service.NewBookingService(stores, events, cache.NewInvalidator(rdb, cacheCfg.Prefix), service.Options{
		Layout:        bcfg.Layout(),
		HoldTTL:       bcfg.HoldTTL,
		MaxHold:       bcfg.MaxHold,
		LookaheadDays: bcfg.LookaheadDays,
		ShowTemplate: model.Show{
			Title:           bcfg.ShowTitle,
			Description:     bcfg.ShowDescription,
			Time:            bcfg.ShowTime,
			DurationMinutes: bcfg.ShowDuration,
		},
	})
	if err := svc.EnsureSchedule(ctx); err != nil {
		log.Fatalf("schedule shows: %v", err)
	}
	go keepScheduled(ctx, svc)

	auth := service.NewAuthenticator(keys, cfg.JWTSecret, cfg.AccessTTL(), cfg.BcryptCost)
	if *bootstrapKey != "" {
		issued, err := auth.CreateKey(ctx, *bootstrapKey, model.ParsePermissions(*bootstrapPerms), 0)
		if err != nil {
			log.Fatalf("bootstrap key: %v", err)
		}
		log.Printf("bootstrap key %q (%s): %s", issued.Name, issued.ID, issued.Key)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	deps := router.Deps{
		Bookings:  svc,
		Auth:      auth,
		Usage:     usage,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     cacheCfg,
	}
	router.RegisterRoutes(e, deps)
	router.RegisterAPI(e, deps)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func mysqlStores(db *sql.DB) (service.Stores, service.APIKeyStore, middleware.UsageRecorder) {
	seats := repository.NewShowSeatRepo(db)
	return service.Stores{
		Shows:        repository.NewShowRepo(db),
		Seats:        seats,
		Bookings:     repository.NewBookingRepo(db, seats),
		Reservations: repository.NewReservationRepo(db, seats),
	}, repository.NewAPIKeyRepo(db), repository.NewAPILogRepo(db)
}

// keepScheduled creates the show of each new day within an hour of midnight.
func keepScheduled(ctx context.Context, svc *service.BookingService) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := svc.EnsureSchedule(ctx); err != nil {
				log.Printf("schedule shows: %v", err)
			}
		}
	}
}
