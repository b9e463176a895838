package handler

import (
    "errors"   // errors.Is comparisons against booking sentinels
    "net/http" // HTTP status codes
    "strconv"  // parsing path parameters
    "time"     // formatting booking timestamps

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/movie-ticket-booking/internal/booking"
    "github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// BookingHandler serves the booking ledger: cancellation, the
// customer's own listing and single-booking detail.  Ownership is
// enforced here for reads; the service re-checks it for cancellation.
type BookingHandler struct {
    Service  *booking.Service
    Bookings *repository.BookingRepo
}

// NewBookingHandler constructs the handler; both dependencies must be non-nil.
func NewBookingHandler(svc *booking.Service, repo *repository.BookingRepo) *BookingHandler {
    if svc == nil || repo == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    return &BookingHandler{Service: svc, Bookings: repo}
}

// Cancel handles POST /v1/bookings/:id/cancel.  Customers may cancel
// their own confirmed bookings until the cutoff before the showtime;
// operators may cancel any booking at any time.
func (h *BookingHandler) Cancel(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || bookingID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }

    res, err := h.Service.Cancel(c.Request().Context(), bookingID, userID, isOperator(c))
    if err != nil {
        switch {
        case errors.Is(err, booking.ErrBookingNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        case errors.Is(err, booking.ErrNotBookingOwner):
            return c.JSON(http.StatusForbidden, echo.Map{"error": "not your booking"})
        case errors.Is(err, booking.ErrCancelNotAllowed):
            return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not cancellable"})
        case errors.Is(err, booking.ErrCancelWindowClosed):
            return c.JSON(http.StatusConflict, echo.Map{"error": "cancellation window has closed"})
        }
        c.Logger().Errorf("cancel booking %d: %v", bookingID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "booking_id":     res.BookingID,
        "payment_state":  res.PaymentState,
        "refund_pending": res.RefundPending,
    })
}

// MyBookings handles GET /v1/my-bookings and lists the caller's
// bookings, newest first, with seats.
func (h *BookingHandler) MyBookings(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    list, err := h.Bookings.ListByCustomer(c.Request().Context(), userID)
    if err != nil {
        c.Logger().Errorf("list bookings for user %d: %v", userID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Get handles GET /v1/bookings/:id.  Customers see only their own
// bookings; operators see all.
func (h *BookingHandler) Get(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || bookingID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    b, seats, err := h.Bookings.GetByID(c.Request().Context(), bookingID)
    if err != nil {
        if errors.Is(err, booking.ErrBookingNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        c.Logger().Errorf("get booking %d: %v", bookingID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if b.CustomerID != userID && !isOperator(c) {
        // 404 rather than 403: existence of other customers' bookings
        // is not disclosed.
        return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
    }

    seatNames := make([]string, 0, len(seats))
    for _, s := range seats {
        seatNames = append(seatNames, s.SeatName)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "id":                 b.ID,
        "showtime_id":        b.ShowtimeID,
        "seats":              seatNames,
        "total_amount_cents": b.TotalAmountCents,
        "payment_state":      b.PaymentState,
        "booking_state":      b.BookingState,
        "created_at":         b.CreatedAt.Format(time.RFC3339),
    })
}
