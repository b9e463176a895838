package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"                                      // Echo web framework
    "github.com/prometheus/client_golang/prometheus/promhttp"          // Prometheus HTTP exposition

    "github.com/iliyamo/movie-ticket-booking/internal/handler"    // handlers implementing business logic
    "github.com/iliyamo/movie-ticket-booking/internal/middleware" // JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication:
// the health check used by load balancers and the Prometheus metrics
// endpoint scraped by monitoring.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
    e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers the unauthenticated browse endpoints:
// showtime listing, showtime metadata and the seat map snapshot.  The
// seat map uses optional authentication so a signed-in customer sees
// which holds are their own, while guests still get the availability
// view.  Seat status must stay fresh, so the response cache is applied
// only to the metadata routes, never to the seat map.
func RegisterPublic(e *echo.Echo, s *handler.ShowtimeHandler, r *handler.ReservationHandler, jwtSecret string, cache echo.MiddlewareFunc) {
    if cache == nil {
        cache = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    e.GET("/v1/showtimes", s.List, cache)
    e.GET("/v1/showtimes/:id", s.Get, cache)
    e.GET("/v1/showtimes/:id/seats", r.SeatMap, middleware.OptionalJWTAuth(jwtSecret))
}

// RegisterCustomer registers customer-scoped endpoints under /v1.  All
// routes require a valid JWT and the CUSTOMER role.  Customers can
// hold and release seats, start and complete payments, and manage
// their own bookings.
func RegisterCustomer(e *echo.Echo, r *handler.ReservationHandler, p *handler.PaymentHandler, b *handler.BookingHandler, jwtSecret string) {
    g := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("CUSTOMER"),
    )
    g.POST("/showtimes/:id/hold", r.HoldSeats)
    g.DELETE("/showtimes/:id/hold", r.ReleaseSeats)
    g.POST("/payments/initiate", p.Initiate)
    g.POST("/bookings/:id/cancel", b.Cancel)
    g.GET("/my-bookings", b.MyBookings)
    g.GET("/bookings/:id", b.Get)
}

// RegisterOperator registers OPERATOR-scoped endpoints under /v1.
// Operators create showtimes and may cancel any booking, bypassing the
// customer cancellation cutoff.
func RegisterOperator(e *echo.Echo, s *handler.ShowtimeHandler, b *handler.BookingHandler, jwtSecret string) {
    g := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("OPERATOR"),
    )
    g.POST("/showtimes", s.Create)
    g.POST("/operator/bookings/:id/cancel", b.Cancel)
    g.GET("/operator/bookings/:id", b.Get)
}

// RegisterPayments registers the gateway-facing verification entry
// points.  Neither carries a JWT: the redirect return arrives from the
// customer's browser mid-checkout and the webhook from the gateway's
// servers.  Both verify against the gateway before any state changes.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler) {
    e.GET("/v1/payments/return", p.Return)
    e.POST("/v1/payments/webhook", p.Webhook)
}
