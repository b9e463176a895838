package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
    "github.com/iliyamo/movie-ticket-booking/internal/reservation"
)

// SeatMapRepo is the MySQL-backed reservation engine.  Every transition
// is a conditional multi-row UPDATE whose WHERE clause re-checks the
// precondition of each seat, executed inside a transaction and verified
// by the matched-row count (the DSN sets clientFoundRows, so a refresh
// that rewrites a row with identical values still counts): either every
// requested seat matched and
// the commit goes through, or the transaction is rolled back and no
// partial transition is ever visible to other readers.  This is a
// multi-seat compare-and-set, not a per-seat loop, so concurrent
// overlapping requests cannot deadlock and at most one of them wins.
//
// Hold expiry is lazy: every predicate compares hold_expires_at against
// UTC_TIMESTAMP() at execution time, so an expired hold is acquirable
// before the sweeper ever touches it.
type SeatMapRepo struct {
    db *sql.DB
}

// NewSeatMapRepo returns a SeatMapRepo bound to the provided database.
func NewSeatMapRepo(db *sql.DB) *SeatMapRepo { return &SeatMapRepo{db: db} }

var _ reservation.Engine = (*SeatMapRepo)(nil)

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
    return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// AcquireHold implements reservation.Engine.
func (r *SeatMapRepo) AcquireHold(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64, ttl time.Duration) (time.Time, error) {
    if len(seatNames) == 0 {
        return time.Time{}, reservation.ErrNoSeatsRequested
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return time.Time{}, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err := r.validateSeatsTx(ctx, tx, showtimeID, seatNames); err != nil {
        return time.Time{}, err
    }

    expiry := time.Now().UTC().Add(ttl)
    args := make([]interface{}, 0, len(seatNames)+4)
    args = append(args, customerID, expiry, showtimeID)
    for _, n := range seatNames {
        args = append(args, n)
    }
    args = append(args, customerID)
    // Acquirable: AVAILABLE, the customer's own hold (refresh), or a
    // hold whose expiry has already passed.
    query := `UPDATE showtime_seats
              SET status = 'HELD', holder_id = ?, hold_expires_at = ?
              WHERE showtime_id = ? AND seat_name IN (` + placeholders(len(seatNames)) + `)
                AND (status = 'AVAILABLE'
                     OR (status = 'HELD' AND (holder_id = ? OR hold_expires_at <= UTC_TIMESTAMP())))`
    res, err := tx.ExecContext(ctx, query, args...)
    if err != nil {
        return time.Time{}, err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return time.Time{}, err
    }
    if affected != int64(len(seatNames)) {
        // At least one seat was sold or held live by someone else;
        // rolling back discards any rows the update did match.
        return time.Time{}, reservation.ErrSeatsUnavailable
    }
    if _, err := tx.ExecContext(ctx, `UPDATE showtimes SET has_active_holds = 1 WHERE id = ?`, showtimeID); err != nil {
        return time.Time{}, err
    }
    if err := tx.Commit(); err != nil {
        return time.Time{}, err
    }
    committed = true
    return expiry, nil
}

// validateSeatsTx confirms the showtime exists and every seat name
// belongs to it.
func (r *SeatMapRepo) validateSeatsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatNames []string) error {
    var id uint64
    err := tx.QueryRowContext(ctx, `SELECT id FROM showtimes WHERE id = ?`, showtimeID).Scan(&id)
    if err == sql.ErrNoRows {
        return reservation.ErrShowtimeNotFound
    }
    if err != nil {
        return err
    }
    args := make([]interface{}, 0, len(seatNames)+1)
    args = append(args, showtimeID)
    for _, n := range seatNames {
        args = append(args, n)
    }
    var count int
    query := `SELECT COUNT(*) FROM showtime_seats WHERE showtime_id = ? AND seat_name IN (` + placeholders(len(seatNames)) + `)`
    if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
        return err
    }
    if count != len(seatNames) {
        return reservation.ErrUnknownSeat
    }
    return nil
}

// ReleaseHold implements reservation.Engine.  A single conditional
// UPDATE; seats not held by this customer simply don't match, which is
// what makes the call idempotent.
func (r *SeatMapRepo) ReleaseHold(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64) (int, error) {
    var id uint64
    err := r.db.QueryRowContext(ctx, `SELECT id FROM showtimes WHERE id = ?`, showtimeID).Scan(&id)
    if err == sql.ErrNoRows {
        return 0, reservation.ErrShowtimeNotFound
    }
    if err != nil {
        return 0, err
    }
    query := `UPDATE showtime_seats
              SET status = 'AVAILABLE', holder_id = NULL, hold_expires_at = NULL
              WHERE showtime_id = ? AND status = 'HELD' AND holder_id = ?`
    args := []interface{}{showtimeID, customerID}
    if len(seatNames) > 0 {
        query += ` AND seat_name IN (` + placeholders(len(seatNames)) + `)`
        for _, n := range seatNames {
            args = append(args, n)
        }
    }
    res, err := r.db.ExecContext(ctx, query, args...)
    if err != nil {
        return 0, err
    }
    affected, err := res.RowsAffected()
    return int(affected), err
}

// ConfirmSale implements reservation.Engine.  The predicate re-checks
// at commit time that every seat is still held live by the customer;
// a concurrent sweep that reclaimed an expired hold makes the count
// fall short and the whole sale fails cleanly.
func (r *SeatMapRepo) ConfirmSale(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64) error {
    if len(seatNames) == 0 {
        return reservation.ErrNoSeatsRequested
    }
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

    args := make([]interface{}, 0, len(seatNames)+2)
    args = append(args, showtimeID)
    for _, n := range seatNames {
        args = append(args, n)
    }
    args = append(args, customerID)
    query := `UPDATE showtime_seats
              SET status = 'SOLD', hold_expires_at = NULL
              WHERE showtime_id = ? AND seat_name IN (` + placeholders(len(seatNames)) + `)
                AND status = 'HELD' AND holder_id = ? AND hold_expires_at > UTC_TIMESTAMP()`
    res, err := tx.ExecContext(ctx, query, args...)
    if err != nil {
        return err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if affected != int64(len(seatNames)) {
        return reservation.ErrLockExpiredOrInvalid
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// ReleaseSoldSeats implements reservation.Engine.  Cancellation is
// authorized upstream, so the only guard is that the seat is SOLD.
func (r *SeatMapRepo) ReleaseSoldSeats(ctx context.Context, showtimeID uint64, seatNames []string) (int, error) {
    if len(seatNames) == 0 {
        return 0, nil
    }
    args := make([]interface{}, 0, len(seatNames)+1)
    args = append(args, showtimeID)
    for _, n := range seatNames {
        args = append(args, n)
    }
    query := `UPDATE showtime_seats
              SET status = 'AVAILABLE', holder_id = NULL, hold_expires_at = NULL
              WHERE showtime_id = ? AND seat_name IN (` + placeholders(len(seatNames)) + `) AND status = 'SOLD'`
    res, err := r.db.ExecContext(ctx, query, args...)
    if err != nil {
        return 0, err
    }
    affected, err := res.RowsAffected()
    return int(affected), err
}

// SweepExpiredHolds implements reservation.Engine.  Each statement is
// individually conditional and idempotent, so overlapping sweeps and
// concurrent per-showtime operations are safe: the bulk update only
// ever matches seats whose expiry has already passed, and a racing
// ConfirmSale either lands first (seat becomes SOLD, predicate no
// longer matches) or loses (hold gone, ConfirmSale fails cleanly).
func (r *SeatMapRepo) SweepExpiredHolds(ctx context.Context) (int, error) {
    // The has_active_holds hint bounds the work: most sweep passes on a
    // quiet system stop here.
    var hinted int
    if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM showtimes WHERE has_active_holds = 1`).Scan(&hinted); err != nil {
        return 0, err
    }
    if hinted == 0 {
        return 0, nil
    }
    res, err := r.db.ExecContext(ctx, `UPDATE showtime_seats
              SET status = 'AVAILABLE', holder_id = NULL, hold_expires_at = NULL
              WHERE status = 'HELD' AND hold_expires_at <= UTC_TIMESTAMP()`)
    if err != nil {
        return 0, err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return 0, err
    }
    // Clear hints for showtimes that no longer have any held seat.
    _, err = r.db.ExecContext(ctx, `UPDATE showtimes s SET s.has_active_holds = 0
              WHERE s.has_active_holds = 1
                AND NOT EXISTS (SELECT 1 FROM showtime_seats ss WHERE ss.showtime_id = s.id AND ss.status = 'HELD')`)
    if err != nil {
        return int(affected), err
    }
    return int(affected), nil
}

// SeatMap implements reservation.Engine.  Seats come back in layout
// order (insertion order at showtime creation).
func (r *SeatMapRepo) SeatMap(ctx context.Context, showtimeID uint64) ([]reservation.SeatView, error) {
    var id uint64
    err := r.db.QueryRowContext(ctx, `SELECT id FROM showtimes WHERE id = ?`, showtimeID).Scan(&id)
    if err == sql.ErrNoRows {
        return nil, reservation.ErrShowtimeNotFound
    }
    if err != nil {
        return nil, err
    }
    rows, err := r.db.QueryContext(ctx, `SELECT seat_name, category, status, holder_id, hold_expires_at
              FROM showtime_seats WHERE showtime_id = ? ORDER BY id`, showtimeID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []reservation.SeatView
    for rows.Next() {
        var (
            v      reservation.SeatView
            holder sql.NullInt64
            expiry sql.NullTime
        )
        if err := rows.Scan(&v.Name, &v.Category, &v.Status, &holder, &expiry); err != nil {
            return nil, err
        }
        if holder.Valid {
            v.HolderID = uint64(holder.Int64)
        }
        if expiry.Valid {
            t := expiry.Time
            v.HoldExpiresAt = &t
        }
        // A hold past its expiry is reported as free even before the
        // sweeper reclaims the row.
        if v.Status == model.SeatHeld && v.HoldExpiresAt != nil && !v.HoldExpiresAt.After(time.Now().UTC()) {
            v = reservation.SeatView{Name: v.Name, Category: v.Category, Status: model.SeatAvailable}
        }
        out = append(out, v)
    }
    return out, rows.Err()
}
