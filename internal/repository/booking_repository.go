package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/movie-ticket-booking/internal/booking"
    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// BookingRepo is the MySQL booking ledger.  Rows are append/transition
// only, never deleted.  Every lifecycle transition is a conditional
// UPDATE guarded on the current state; the caller learns from the
// affected-row count whether it won the transition or lost to a
// concurrent duplicate.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

var _ booking.Store = (*BookingRepo)(nil)

// Create implements booking.Store.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, seats []model.BookingSeat) error {
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

    const ins = `INSERT INTO bookings (customer_id, showtime_id, total_amount_cents, payment_state, booking_state)
                 VALUES (?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, ins, b.CustomerID, b.ShowtimeID, b.TotalAmountCents, b.PaymentState, b.BookingState)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)

    if len(seats) > 0 {
        query := `INSERT INTO booking_seats (booking_id, showtime_id, seat_name, price_cents) VALUES `
        args := make([]interface{}, 0, len(seats)*4)
        for i, s := range seats {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?)"
            args = append(args, b.ID, s.ShowtimeID, s.SeatName, s.PriceCents)
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

// AttachPaymentIntent implements booking.Store.
func (r *BookingRepo) AttachPaymentIntent(ctx context.Context, bookingID uint64, paymentRef string) error {
    _, err := r.db.ExecContext(ctx, `UPDATE bookings SET payment_ref = ? WHERE id = ?`, paymentRef, bookingID)
    return err
}

const bookingColumns = `id, customer_id, showtime_id, total_amount_cents, payment_state, booking_state,
                        payment_ref, provider_txn_id, created_at, updated_at`

func (r *BookingRepo) scanBooking(row *sql.Row) (*model.Booking, error) {
    var (
        b     model.Booking
        ref   sql.NullString
        txnID sql.NullString
    )
    err := row.Scan(&b.ID, &b.CustomerID, &b.ShowtimeID, &b.TotalAmountCents,
        &b.PaymentState, &b.BookingState, &ref, &txnID, &b.CreatedAt, &b.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, booking.ErrBookingNotFound
    }
    if err != nil {
        return nil, err
    }
    if ref.Valid {
        v := ref.String
        b.PaymentRef = &v
    }
    if txnID.Valid {
        v := txnID.String
        b.ProviderTxnID = &v
    }
    return &b, nil
}

func (r *BookingRepo) seatsFor(ctx context.Context, bookingID uint64) ([]model.BookingSeat, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, booking_id, showtime_id, seat_name, price_cents FROM booking_seats WHERE booking_id = ? ORDER BY id`,
        bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var seats []model.BookingSeat
    for rows.Next() {
        var s model.BookingSeat
        if err := rows.Scan(&s.ID, &s.BookingID, &s.ShowtimeID, &s.SeatName, &s.PriceCents); err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    return seats, rows.Err()
}

// GetByID implements booking.Store.
func (r *BookingRepo) GetByID(ctx context.Context, bookingID uint64) (*model.Booking, []model.BookingSeat, error) {
    b, err := r.scanBooking(r.db.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID))
    if err != nil {
        return nil, nil, err
    }
    seats, err := r.seatsFor(ctx, bookingID)
    if err != nil {
        return nil, nil, err
    }
    return b, seats, nil
}

// GetByPaymentRef implements booking.Store.  The payment_ref column is
// uniquely indexed so the gateway reference resolves to at most one
// ledger row.
func (r *BookingRepo) GetByPaymentRef(ctx context.Context, paymentRef string) (*model.Booking, []model.BookingSeat, error) {
    b, err := r.scanBooking(r.db.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE payment_ref = ?`, paymentRef))
    if err != nil {
        return nil, nil, err
    }
    seats, err := r.seatsFor(ctx, b.ID)
    if err != nil {
        return nil, nil, err
    }
    return b, seats, nil
}

// CompletePending implements booking.Store.  The WHERE clause is the
// idempotency guard: two racing verifications both pass the in-memory
// pending check, but only one of them affects a row here.
func (r *BookingRepo) CompletePending(ctx context.Context, bookingID uint64, providerTxnID string) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE bookings SET payment_state = ?, booking_state = ?, provider_txn_id = ?
         WHERE id = ? AND payment_state = ? AND booking_state = ?`,
        model.PaymentCompleted, model.BookingConfirmed, providerTxnID,
        bookingID, model.PaymentPending, model.BookingPending)
    if err != nil {
        return false, err
    }
    affected, err := res.RowsAffected()
    return affected == 1, err
}

// FailPending implements booking.Store.
func (r *BookingRepo) FailPending(ctx context.Context, bookingID uint64, paymentState string) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE bookings SET payment_state = ?, booking_state = ?
         WHERE id = ? AND payment_state = ?`,
        paymentState, model.BookingCancelled, bookingID, model.PaymentPending)
    if err != nil {
        return false, err
    }
    affected, err := res.RowsAffected()
    return affected == 1, err
}

// MarkSeatsLost implements booking.Store.
func (r *BookingRepo) MarkSeatsLost(ctx context.Context, bookingID uint64) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE bookings SET payment_state = ?, booking_state = ?
         WHERE id = ? AND payment_state = ?`,
        model.PaymentRefundPending, model.BookingCancelled, bookingID, model.PaymentPending)
    if err != nil {
        return false, err
    }
    affected, err := res.RowsAffected()
    return affected == 1, err
}

// CancelConfirmed implements booking.Store.
func (r *BookingRepo) CancelConfirmed(ctx context.Context, bookingID uint64) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE bookings SET booking_state = ? WHERE id = ? AND booking_state = ?`,
        model.BookingCancelled, bookingID, model.BookingConfirmed)
    if err != nil {
        return false, err
    }
    affected, err := res.RowsAffected()
    return affected == 1, err
}

// SetPaymentState implements booking.Store.
func (r *BookingRepo) SetPaymentState(ctx context.Context, bookingID uint64, paymentState string) error {
    _, err := r.db.ExecContext(ctx, `UPDATE bookings SET payment_state = ? WHERE id = ?`, paymentState, bookingID)
    return err
}

// BookingDetail is one booking with its seats, as listed to customers.
type BookingDetail struct {
    ID               uint64   `json:"id"`
    ShowtimeID       uint64   `json:"showtime_id"`
    MovieTitle       string   `json:"movie_title"`
    StartsAt         string   `json:"starts_at"`
    PaymentState     string   `json:"payment_state"`
    BookingState     string   `json:"booking_state"`
    TotalAmountCents uint32   `json:"total_amount_cents"`
    Seats            []string `json:"seats"`
    CreatedAt        string   `json:"created_at"`
}

// ListByCustomer returns the customer's bookings, newest first, each
// with its seat names.
func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]BookingDetail, error) {
    const q = `SELECT b.id, b.showtime_id, s.title, s.starts_at, b.payment_state, b.booking_state,
                      b.total_amount_cents, b.created_at, bs.seat_name
               FROM bookings b
               JOIN showtimes s ON s.id = b.showtime_id
               JOIN booking_seats bs ON bs.booking_id = b.id
               WHERE b.customer_id = ?
               ORDER BY b.id DESC, bs.id`
    rows, err := r.db.QueryContext(ctx, q, customerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var (
        out  []BookingDetail
        last *BookingDetail
    )
    for rows.Next() {
        var (
            d        BookingDetail
            startsAt sql.NullTime
            created  sql.NullTime
            seat     string
        )
        if err := rows.Scan(&d.ID, &d.ShowtimeID, &d.MovieTitle, &startsAt, &d.PaymentState,
            &d.BookingState, &d.TotalAmountCents, &created, &seat); err != nil {
            return nil, err
        }
        if last == nil || last.ID != d.ID {
            if startsAt.Valid {
                d.StartsAt = startsAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
            }
            if created.Valid {
                d.CreatedAt = created.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
            }
            out = append(out, d)
            last = &out[len(out)-1]
        }
        last.Seats = append(last.Seats, seat)
    }
    return out, rows.Err()
}
