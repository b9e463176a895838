package main // Entry point package

import (
    "context" // Context for startup deadlines and sweeper shutdown
    "log"     // Logging library

    "github.com/joho/godotenv"    // .env loader for local development
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/movie-ticket-booking/internal/booking"     // Payment reconciliation service
    "github.com/iliyamo/movie-ticket-booking/internal/config"      // Internal config loader
    "github.com/iliyamo/movie-ticket-booking/internal/database"    // MySQL connector and migrations
    "github.com/iliyamo/movie-ticket-booking/internal/handler"     // HTTP handlers
    "github.com/iliyamo/movie-ticket-booking/internal/middleware"  // Rate limiting and response cache
    "github.com/iliyamo/movie-ticket-booking/internal/payment"     // Payment gateway client
    "github.com/iliyamo/movie-ticket-booking/internal/queue"       // Notification consumer
    "github.com/iliyamo/movie-ticket-booking/internal/repository"  // Data access layer
    "github.com/iliyamo/movie-ticket-booking/internal/reservation" // Seat engine and sweeper
    "github.com/iliyamo/movie-ticket-booking/internal/router"      // Route registration
    "github.com/iliyamo/movie-ticket-booking/internal/service"     // Event publisher
)

func main() {
    _ = godotenv.Load() // Load .env if present; real env vars win
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    if err := database.Migrate(context.Background(), db); err != nil {
        log.Fatalf("migrations: %v", err)
    }

    // Repositories share the one pool.  SeatMapRepo is the production
    // reservation engine.
    showtimeRepo := repository.NewShowtimeRepo(db)
    bookingRepo := repository.NewBookingRepo(db)
    engine := repository.NewSeatMapRepo(db)

    // Background reclaim of expired holds.
    sweeper := reservation.NewSweeper(engine, cfg.SweepInterval)
    sweepCtx, stopSweep := context.WithCancel(context.Background())
    sweeper.Start(sweepCtx)
    defer func() {
        stopSweep()
        sweeper.Stop()
    }()

    gateway := payment.NewClient(payment.ClientConfig{
        BaseURL:    cfg.PaymentBaseURL,
        MerchantID: cfg.PaymentMerchant,
        Secret:     cfg.PaymentSecret,
    })
    notifier := service.NewNotifier(cfg.RabbitURL)

    bookings := booking.NewService(engine, bookingRepo, showtimeRepo, gateway, notifier, nil, booking.Config{
        HoldTTL:      cfg.HoldTTL,
        CancelCutoff: cfg.CancelCutoff,
        Currency:     cfg.Currency,
        ReturnURL:    cfg.PaymentReturn,
    })

    // Notification consumer writes confirmed/cancelled/refund-alert
    // events to logs/booking.log.  It maintains its own reconnect loop.
    go func() {
        if err := queue.StartNotificationConsumer(); err != nil {
            log.Printf("notification consumer stopped: %v", err)
        }
    }()

    e := echo.New()

    // Redis-backed rate limiting and response caching.  A nil client
    // (Redis unreachable) degrades both to pass-through.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; rate limiting and caching disabled")
    }
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

    showtimeHandler := handler.NewShowtimeHandler(showtimeRepo)
    reservationHandler := handler.NewReservationHandler(engine, cfg.HoldTTL)
    paymentHandler := handler.NewPaymentHandler(bookings)
    bookingHandler := handler.NewBookingHandler(bookings, bookingRepo)

    router.RegisterRoutes(e)
    router.RegisterPublic(e, showtimeHandler, reservationHandler, cfg.JWTSecret, cache)
    router.RegisterCustomer(e, reservationHandler, paymentHandler, bookingHandler, cfg.JWTSecret)
    router.RegisterOperator(e, showtimeHandler, bookingHandler, cfg.JWTSecret)
    router.RegisterPayments(e, paymentHandler)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
