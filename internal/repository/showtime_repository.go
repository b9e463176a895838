package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
    "github.com/iliyamo/movie-ticket-booking/internal/reservation"
)

// ShowtimeRepo provides persistence for showtimes and their immutable
// seat maps.  A showtime and its seats are created together, once,
// from the venue layout supplied by the catalog service; after that
// only the reservation engine touches seat rows.
type ShowtimeRepo struct {
    db *sql.DB
}

// NewShowtimeRepo returns a ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// DB exposes the underlying handle so callers can share it with other
// repositories at wiring time.
func (r *ShowtimeRepo) DB() *sql.DB { return r.db }

// Create inserts the showtime and its full seat collection in one
// transaction.  All seats start AVAILABLE.  The generated ID is
// populated on the passed record.
func (r *ShowtimeRepo) Create(ctx context.Context, st *model.Showtime, seats []reservation.SeatSpec) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const ins = `INSERT INTO showtimes (title, starts_at, ends_at, price_standard_cents, price_premium_cents)
                 VALUES (?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, ins, st.Title, st.StartsAt.UTC(), st.EndsAt.UTC(), st.PriceStandardCents, st.PricePremiumCents)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    st.ID = uint64(id)

    if len(seats) > 0 {
        query := `INSERT INTO showtime_seats (showtime_id, seat_name, category, status) VALUES `
        args := make([]interface{}, 0, len(seats)*4)
        for i, s := range seats {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?)"
            args = append(args, st.ID, s.Name, s.Category, model.SeatAvailable)
        }
        if _, err := tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// GetByID fetches one showtime.  Returns
// reservation.ErrShowtimeNotFound when it does not exist.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
    const q = `SELECT id, title, starts_at, ends_at, price_standard_cents, price_premium_cents, has_active_holds, created_at
               FROM showtimes WHERE id = ?`
    var st model.Showtime
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &st.ID, &st.Title, &st.StartsAt, &st.EndsAt,
        &st.PriceStandardCents, &st.PricePremiumCents, &st.HasActiveHolds, &st.CreatedAt,
    )
    if err == sql.ErrNoRows {
        return nil, reservation.ErrShowtimeNotFound
    }
    if err != nil {
        return nil, err
    }
    return &st, nil
}

// List returns all showtimes ordered by start time.
func (r *ShowtimeRepo) List(ctx context.Context) ([]model.Showtime, error) {
    const q = `SELECT id, title, starts_at, ends_at, price_standard_cents, price_premium_cents, has_active_holds, created_at
               FROM showtimes ORDER BY starts_at`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.Showtime
    for rows.Next() {
        var st model.Showtime
        if err := rows.Scan(&st.ID, &st.Title, &st.StartsAt, &st.EndsAt,
            &st.PriceStandardCents, &st.PricePremiumCents, &st.HasActiveHolds, &st.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, st)
    }
    return out, rows.Err()
}

// SeatPrices resolves each named seat to its price in cents from the
// seat's category and the showtime's per-category pricing.  A missing
// name yields reservation.ErrUnknownSeat so price computation can never
// silently skip a seat.
func (r *ShowtimeRepo) SeatPrices(ctx context.Context, showtimeID uint64, seatNames []string) (map[string]uint32, error) {
    if len(seatNames) == 0 {
        return map[string]uint32{}, nil
    }
    args := make([]interface{}, 0, len(seatNames)+1)
    args = append(args, showtimeID)
    for _, n := range seatNames {
        args = append(args, n)
    }
    query := `SELECT ss.seat_name,
                     CASE ss.category WHEN 'PREMIUM' THEN s.price_premium_cents ELSE s.price_standard_cents END
              FROM showtime_seats ss
              JOIN showtimes s ON s.id = ss.showtime_id
              WHERE ss.showtime_id = ? AND ss.seat_name IN (` + placeholders(len(seatNames)) + `)`
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    prices := make(map[string]uint32, len(seatNames))
    for rows.Next() {
        var (
            name  string
            price uint32
        )
        if err := rows.Scan(&name, &price); err != nil {
            return nil, err
        }
        prices[name] = price
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(prices) != len(seatNames) {
        return nil, reservation.ErrUnknownSeat
    }
    return prices, nil
}
