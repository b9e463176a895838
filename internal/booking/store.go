package booking

import (
    "context"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
    "github.com/iliyamo/movie-ticket-booking/internal/queue"
)

// Store is the ledger persistence the reconciliation protocol needs.
// Implementations must make the Pending-guarded transitions conditional
// updates that report whether a row actually changed: the zero-rows
// case is how a racing duplicate discovers it lost and must re-read
// instead of erroring.  Implemented by repository.BookingRepo.
type Store interface {
    // Create appends one ledger row in PENDING/PENDING state together
    // with its immutable seat set, populating the generated ID.
    Create(ctx context.Context, b *model.Booking, seats []model.BookingSeat) error

    // AttachPaymentIntent persists the gateway's intent id on the
    // booking; it becomes the idempotency key for verification.
    AttachPaymentIntent(ctx context.Context, bookingID uint64, paymentRef string) error

    // GetByID loads a booking and its seats.
    GetByID(ctx context.Context, bookingID uint64) (*model.Booking, []model.BookingSeat, error)

    // GetByPaymentRef loads a booking by the gateway reference.
    GetByPaymentRef(ctx context.Context, paymentRef string) (*model.Booking, []model.BookingSeat, error)

    // CompletePending transitions PENDING/PENDING to
    // COMPLETED/CONFIRMED and records the provider transaction id.
    // Returns false when the booking was no longer pending.
    CompletePending(ctx context.Context, bookingID uint64, providerTxnID string) (bool, error)

    // FailPending transitions a pending booking to the given terminal
    // payment state (FAILED or CANCELLED) and cancels the booking.
    // Returns false when the booking was no longer pending.
    FailPending(ctx context.Context, bookingID uint64, paymentState string) (bool, error)

    // MarkSeatsLost parks a pending booking in REFUND_PENDING/CANCELLED
    // after a paid-but-unconfirmable conflict.  Returns false when the
    // booking was no longer pending.
    MarkSeatsLost(ctx context.Context, bookingID uint64) (bool, error)

    // CancelConfirmed flips CONFIRMED to CANCELLED.  Returns false when
    // the booking was not confirmed (already cancelled or still
    // pending), so concurrent cancellations resolve to one winner.
    CancelConfirmed(ctx context.Context, bookingID uint64) (bool, error)

    // SetPaymentState records the refund outcome (REFUNDED or
    // REFUND_PENDING) after cancellation.
    SetPaymentState(ctx context.Context, bookingID uint64, paymentState string) error
}

// ShowtimeStore is the slice of showtime persistence the protocol
// needs: existence/start-time checks and category pricing.
// Implemented by repository.ShowtimeRepo.
type ShowtimeStore interface {
    GetByID(ctx context.Context, id uint64) (*model.Showtime, error)
    SeatPrices(ctx context.Context, showtimeID uint64, seatNames []string) (map[string]uint32, error)
}

// Notifier publishes lifecycle events to the notification
// collaborator.  All calls are fire-and-forget from the protocol's
// point of view; a failed publish never fails the booking transition.
// Implemented by service.Notifier.
type Notifier interface {
    BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
    BookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error
    RefundAlert(ctx context.Context, ev queue.RefundAlertEvent) error
}
