package handler

import (
    "errors"   // errors.Is comparisons against repository sentinels
    "net/http" // HTTP status codes
    "strconv"  // parsing path parameters
    "time"     // parsing showtime timestamps

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/movie-ticket-booking/internal/model"
    "github.com/iliyamo/movie-ticket-booking/internal/repository"
    "github.com/iliyamo/movie-ticket-booking/internal/reservation"
)

// ShowtimeHandler serves showtime creation and browsing.  Creation is
// operator-only and generates the showtime's immutable seat map from
// the venue layout; browsing endpoints are public and cache-friendly.
type ShowtimeHandler struct {
    Showtimes *repository.ShowtimeRepo
}

// NewShowtimeHandler constructs the handler; the repository must be non-nil.
func NewShowtimeHandler(showtimes *repository.ShowtimeRepo) *ShowtimeHandler {
    if showtimes == nil {
        panic("nil repository passed to NewShowtimeHandler")
    }
    return &ShowtimeHandler{Showtimes: showtimes}
}

// createShowtimeRequest is the POST /v1/showtimes body.  The layout is
// rectangular: Rows x SeatsPerRow named A1..A(n), B1.. and so on.  The
// first PremiumRows rows are PREMIUM, the rest STANDARD.
type createShowtimeRequest struct {
    Title              string `json:"title"`
    StartsAt           string `json:"starts_at"`
    EndsAt             string `json:"ends_at"`
    PriceStandardCents uint32 `json:"price_standard_cents"`
    PricePremiumCents  uint32 `json:"price_premium_cents"`
    Rows               int    `json:"rows"`
    SeatsPerRow        int    `json:"seats_per_row"`
    PremiumRows        int    `json:"premium_rows"`
}

// Create handles POST /v1/showtimes.  It validates the layout, builds
// the seat collection and persists showtime plus seats atomically.
// Responds 201 with the new showtime id and seat count.
func (h *ShowtimeHandler) Create(c echo.Context) error {
    var body createShowtimeRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.Title == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
    }
    startsAt, err := time.Parse(time.RFC3339, body.StartsAt)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
    }
    endsAt, err := time.Parse(time.RFC3339, body.EndsAt)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC3339"})
    }
    if !endsAt.After(startsAt) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
    }
    if body.Rows < 1 || body.SeatsPerRow < 1 || body.Rows*body.SeatsPerRow > 2000 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid layout dimensions"})
    }
    if body.PremiumRows < 0 || body.PremiumRows > body.Rows {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "premium_rows out of range"})
    }
    if body.PriceStandardCents == 0 || (body.PremiumRows > 0 && body.PricePremiumCents == 0) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "prices must be positive"})
    }

    seats := make([]reservation.SeatSpec, 0, body.Rows*body.SeatsPerRow)
    for row := 0; row < body.Rows; row++ {
        category := model.CategoryStandard
        if row < body.PremiumRows {
            category = model.CategoryPremium
        }
        label := indexToRowLabel(row)
        for n := 1; n <= body.SeatsPerRow; n++ {
            seats = append(seats, reservation.SeatSpec{
                Name:     label + strconv.Itoa(n),
                Category: category,
            })
        }
    }

    st := &model.Showtime{
        Title:              body.Title,
        StartsAt:           startsAt.UTC(),
        EndsAt:             endsAt.UTC(),
        PriceStandardCents: body.PriceStandardCents,
        PricePremiumCents:  body.PricePremiumCents,
    }
    if err := h.Showtimes.Create(c.Request().Context(), st, seats); err != nil {
        c.Logger().Errorf("create showtime: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "id":         st.ID,
        "title":      st.Title,
        "starts_at":  st.StartsAt.Format(time.RFC3339),
        "seat_count": len(seats),
    })
}

// List handles GET /v1/showtimes and returns all showtimes for browsing.
func (h *ShowtimeHandler) List(c echo.Context) error {
    sts, err := h.Showtimes.List(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]echo.Map, 0, len(sts))
    for _, st := range sts {
        out = append(out, showtimeJSON(&st))
    }
    return c.JSON(http.StatusOK, echo.Map{"showtimes": out})
}

// Get handles GET /v1/showtimes/:id and returns one showtime's metadata.
func (h *ShowtimeHandler) Get(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    st, err := h.Showtimes.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, reservation.ErrShowtimeNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, showtimeJSON(st))
}

func showtimeJSON(st *model.Showtime) echo.Map {
    return echo.Map{
        "id":                   st.ID,
        "title":                st.Title,
        "starts_at":            st.StartsAt.Format(time.RFC3339),
        "ends_at":              st.EndsAt.Format(time.RFC3339),
        "price_standard_cents": st.PriceStandardCents,
        "price_premium_cents":  st.PricePremiumCents,
    }
}
