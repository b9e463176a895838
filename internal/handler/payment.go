package handler

import (
    "errors"   // errors.Is comparisons against booking/engine sentinels
    "net/http" // HTTP status codes
    "time"     // formatting hold expiries

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/movie-ticket-booking/internal/booking"
    "github.com/iliyamo/movie-ticket-booking/internal/model"
    "github.com/iliyamo/movie-ticket-booking/internal/reservation"
)

// PaymentHandler serves the payment half of the purchase flow:
// initiation plus the two verification entry points (redirect return
// and webhook).  Both entry points converge on the same idempotent
// Verify call, and neither ever trusts a status claim carried by the
// request itself; only the payment reference is read from it.
type PaymentHandler struct {
    Bookings *booking.Service
}

// NewPaymentHandler constructs the handler; the service must be non-nil.
func NewPaymentHandler(svc *booking.Service) *PaymentHandler {
    if svc == nil {
        panic("nil service passed to NewPaymentHandler")
    }
    return &PaymentHandler{Bookings: svc}
}

// initiateRequest is the POST /v1/payments/initiate body.
type initiateRequest struct {
    ShowtimeID    uint64   `json:"showtime_id"`
    Seats         []string `json:"seats"`
    DiscountCents uint32   `json:"discount_cents"`
}

// Initiate handles POST /v1/payments/initiate.  It holds the seats,
// opens a gateway intent and returns the redirect URL the customer
// must follow, together with the hold countdown.
func (h *PaymentHandler) Initiate(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body initiateRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.ShowtimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id is required"})
    }
    seats := normalizeSeatNames(body.Seats)
    if len(seats) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats is required"})
    }

    res, err := h.Bookings.Initiate(c.Request().Context(), body.ShowtimeID, seats, userID, body.DiscountCents)
    if err != nil {
        switch {
        case errors.Is(err, reservation.ErrShowtimeNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
        case errors.Is(err, booking.ErrShowtimeStarted):
            return c.JSON(http.StatusConflict, echo.Map{"error": "showtime has already started"})
        case errors.Is(err, reservation.ErrSeatsUnavailable):
            return c.JSON(http.StatusConflict, echo.Map{"error": "one or more seats are unavailable"})
        case errors.Is(err, reservation.ErrUnknownSeat):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown seat name"})
        }
        c.Logger().Errorf("initiate payment: %v", err)
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment initiation failed"})
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "booking_id":      res.BookingID,
        "payment_ref":     res.PaymentRef,
        "redirect_url":    res.RedirectURL,
        "hold_expires_at": res.HoldExpiresAt.Format(time.RFC3339),
        "total_cents":     res.TotalCents,
    })
}

// Return handles GET /v1/payments/return, the browser redirect back
// from the gateway.  Only the ref query parameter is consumed.
func (h *PaymentHandler) Return(c echo.Context) error {
    ref := c.QueryParam("ref")
    if ref == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ref is required"})
    }
    return h.verify(c, ref)
}

// webhookRequest is the POST /v1/payments/webhook body.  Gateways also
// send status and amount fields; they are deliberately ignored.
type webhookRequest struct {
    PaymentRef string `json:"payment_ref"`
}

// Webhook handles POST /v1/payments/webhook, the server-to-server
// callback.  Shares the Return verification path so duplicate delivery
// across both channels stays harmless.
func (h *PaymentHandler) Webhook(c echo.Context) error {
    var body webhookRequest
    if err := c.Bind(&body); err != nil || body.PaymentRef == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_ref is required"})
    }
    return h.verify(c, body.PaymentRef)
}

// verify runs the reconciliation protocol and translates its outcome.
func (h *PaymentHandler) verify(c echo.Context, ref string) error {
    res, err := h.Bookings.Verify(c.Request().Context(), ref)
    switch {
    case err == nil:
        status := http.StatusOK
        if !res.Duplicate && res.BookingState == model.BookingConfirmed {
            status = http.StatusCreated
        }
        return c.JSON(status, verifyJSON(res))
    case errors.Is(err, booking.ErrBookingNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown payment reference"})
    case errors.Is(err, booking.ErrPaymentSucceededSeatsLost):
        // Paid but the seats were gone at commit time.  The refund is
        // owed and already escalated; the customer must not be told
        // they have a booking.
        body := verifyJSON(res)
        body["error"] = "seats no longer available; refund pending"
        return c.JSON(http.StatusConflict, body)
    case errors.Is(err, booking.ErrPaymentVerificationFailed):
        body := verifyJSON(res)
        body["error"] = "payment was not completed"
        return c.JSON(http.StatusPaymentRequired, body)
    }
    c.Logger().Errorf("verify payment ref=%s: %v", ref, err)
    return c.JSON(http.StatusBadGateway, echo.Map{"error": "verification unavailable, retry"})
}

func verifyJSON(res *booking.VerifyResult) echo.Map {
    return echo.Map{
        "booking_id":    res.BookingID,
        "payment_state": res.PaymentState,
        "booking_state": res.BookingState,
        "duplicate":     res.Duplicate,
    }
}
