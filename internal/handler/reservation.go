package handler

import (
    "errors"   // errors.Is comparisons against engine sentinels
    "net/http" // HTTP status codes
    "strconv"  // parsing path parameters
    "time"     // formatting hold expiries

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/movie-ticket-booking/internal/metrics"
    "github.com/iliyamo/movie-ticket-booking/internal/model"
    "github.com/iliyamo/movie-ticket-booking/internal/reservation"
)

// ReservationHandler serves seat holds, releases and seat map
// snapshots.  Hold and release require an authenticated customer; the
// seat map is public but annotates held_by_you when a bearer token was
// presented.
type ReservationHandler struct {
    Engine  reservation.Engine
    HoldTTL time.Duration
}

// NewReservationHandler constructs the handler.  The engine must be
// non-nil; a non-positive TTL falls back to seven minutes.
func NewReservationHandler(engine reservation.Engine, holdTTL time.Duration) *ReservationHandler {
    if engine == nil {
        panic("nil engine passed to NewReservationHandler")
    }
    if holdTTL <= 0 {
        holdTTL = 7 * time.Minute
    }
    return &ReservationHandler{Engine: engine, HoldTTL: holdTTL}
}

// seatSelection is the body of hold and release requests.
type seatSelection struct {
    Seats []string `json:"seats"`
}

// HoldSeats handles POST /v1/showtimes/:id/hold.  All requested seats
// are held atomically for the hold TTL; holding again while a previous
// hold is still live refreshes its expiry.  Returns 409 when any seat
// is taken, identifying none of them individually.
func (h *ReservationHandler) HoldSeats(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    showtimeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || showtimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    var body seatSelection
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    seats := normalizeSeatNames(body.Seats)
    if len(seats) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats is required"})
    }

    expiry, err := h.Engine.AcquireHold(c.Request().Context(), showtimeID, seats, userID, h.HoldTTL)
    if err != nil {
        switch {
        case errors.Is(err, reservation.ErrSeatsUnavailable):
            metrics.HoldsRejected.Inc()
            return c.JSON(http.StatusConflict, echo.Map{"error": "one or more seats are unavailable"})
        case errors.Is(err, reservation.ErrUnknownSeat):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown seat name"})
        case errors.Is(err, reservation.ErrShowtimeNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
        }
        c.Logger().Errorf("acquire hold: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    metrics.HoldsAcquired.Inc()
    return c.JSON(http.StatusCreated, echo.Map{
        "seats":           seats,
        "hold_expires_at": expiry.Format(time.RFC3339),
    })
}

// ReleaseSeats handles DELETE /v1/showtimes/:id/hold.  Named seats are
// released when still held by the caller; a missing or empty body
// releases every hold the caller has on the showtime.  Always 200:
// releasing an already-released hold is a no-op, not an error.
func (h *ReservationHandler) ReleaseSeats(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    showtimeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || showtimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    var body seatSelection
    _ = c.Bind(&body) // empty body means release everything
    seats := normalizeSeatNames(body.Seats)

    released, err := h.Engine.ReleaseHold(c.Request().Context(), showtimeID, seats, userID)
    if err != nil {
        if errors.Is(err, reservation.ErrShowtimeNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
        }
        c.Logger().Errorf("release hold: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// SeatMap handles GET /v1/showtimes/:id/seats.  The snapshot never
// exposes who holds a seat; an authenticated caller only learns which
// holds are their own via held_by_you.
func (h *ReservationHandler) SeatMap(c echo.Context) error {
    showtimeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || showtimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    userID, _ := getUserID(c) // zero for anonymous callers

    views, err := h.Engine.SeatMap(c.Request().Context(), showtimeID)
    if err != nil {
        if errors.Is(err, reservation.ErrShowtimeNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
        }
        c.Logger().Errorf("seat map: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }

    seats := make([]echo.Map, 0, len(views))
    available := 0
    for _, v := range views {
        if v.Status == model.SeatAvailable {
            available++
        }
        entry := echo.Map{
            "name":     v.Name,
            "category": v.Category,
            "status":   v.Status,
        }
        if userID != 0 && v.Status == model.SeatHeld && v.HeldBy(userID) {
            entry["held_by_you"] = true
            if v.HoldExpiresAt != nil {
                entry["hold_expires_at"] = v.HoldExpiresAt.Format(time.RFC3339)
            }
        }
        seats = append(seats, entry)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "showtime_id": showtimeID,
        "available":   available,
        "seats":       seats,
    })
}
