// Package reservation defines the seat reservation engine: the atomic
// state-transition operations over a showtime's seat map, and the
// background sweeper that reclaims expired holds.  Correctness comes
// from the atomicity of each individual transition, not from any
// global serialization point; every operation is safe to call from
// many request workers concurrently.
package reservation

import (
    "context"
    "time"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// Engine exposes the atomic seat transitions.  Two implementations
// exist: a MySQL-backed one (repository.SeatMapRepo) that issues
// conditional multi-row updates inside a transaction, and MemoryEngine,
// an in-process arena serialized by a per-showtime mutex.
type Engine interface {
    // AcquireHold places an exclusive, time-bounded hold on every named
    // seat for the customer, all-or-nothing.  A seat is acquirable when
    // it is AVAILABLE, when its existing hold has expired, or when it is
    // already held by the same customer (re-entrant refresh: the expiry
    // is extended, the holder never changes).  Returns the new expiry.
    // Fails with ErrSeatsUnavailable when any seat is SOLD or held live
    // by another customer; no partial hold is ever left behind.
    AcquireHold(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64, ttl time.Duration) (time.Time, error)

    // ReleaseHold releases the named seats currently held by exactly
    // this customer.  Seats held by someone else, already released or
    // sold are skipped silently, making the call idempotent.  An empty
    // seatNames slice releases every seat the customer holds on the
    // showtime.  Returns the number of seats released.
    ReleaseHold(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64) (int, error)

    // ConfirmSale transitions seats from HELD-by-customer to SOLD,
    // clearing the expiry but keeping the holder as purchaser of
    // record.  The hold must still be live at commit time: a hold that
    // expired, was swept, or was never granted fails the whole call
    // with ErrLockExpiredOrInvalid, signalling the caller that any
    // collected payment now requires compensation.
    ConfirmSale(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64) error

    // ReleaseSoldSeats returns SOLD seats to AVAILABLE.  Used only by
    // the cancellation/refund flow; authorization happens upstream.
    // Returns the number of seats released.
    ReleaseSoldSeats(ctx context.Context, showtimeID uint64, seatNames []string) (int, error)

    // SweepExpiredHolds reverts every seat system-wide whose hold
    // expiry has passed back to AVAILABLE.  The underlying update is
    // conditional on the expiry, so the call is naturally idempotent
    // and safe to run concurrently with itself and with every other
    // operation.  Returns the number of seats reclaimed.
    SweepExpiredHolds(ctx context.Context) (int, error)

    // SeatMap returns a point-in-time snapshot of every seat of the
    // showtime, in layout order.
    SeatMap(ctx context.Context, showtimeID uint64) ([]SeatView, error)
}

// SeatView is one seat in a SeatMap snapshot.  HolderID is exposed so
// the HTTP layer can mark seats as held by the requesting customer; it
// must never be forwarded to other customers verbatim.
type SeatView struct {
    Name          string
    Category      string
    Status        string
    HolderID      uint64
    HoldExpiresAt *time.Time
}

// HeldBy reports whether the seat is currently held or owned by the
// given customer.
func (v SeatView) HeldBy(customerID uint64) bool {
    return v.HolderID == customerID && (v.Status == model.SeatHeld || v.Status == model.SeatSold)
}

// Clock abstracts wall-clock time so hold expiry can be tested
// deterministically.
type Clock interface {
    Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
