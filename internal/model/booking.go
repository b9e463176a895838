package model

import "time"

// Payment lifecycle states of a booking.  PENDING is the only
// non-terminal state; COMPLETED may still transition to REFUNDED or
// REFUND_PENDING through the cancellation flow.
const (
    PaymentPending       = "PENDING"
    PaymentCompleted     = "COMPLETED"
    PaymentFailed        = "FAILED"
    PaymentCancelled     = "CANCELLED"
    PaymentRefundPending = "REFUND_PENDING"
    PaymentRefunded      = "REFUNDED"
)

// Booking lifecycle states.  USED is reached out-of-band at ticket
// redemption and never set by this service.
const (
    BookingPending   = "PENDING"
    BookingConfirmed = "CONFIRMED"
    BookingCancelled = "CANCELLED"
    BookingUsed      = "USED"
)

// Booking is one purchase attempt in the ledger.  Rows are never
// deleted; they form the audit trail of every payment ever initiated.
// The seats and total price are fixed at creation.  PaymentRef is the
// gateway's intent identifier and serves as the idempotency key for
// verification callbacks.
//
// Invariant: while BookingState is PENDING, the booking's seats are
// HELD by CustomerID in the seat map.  Seat ownership is never
// asserted from the ledger side; it is always re-verified through the
// reservation engine.
//
// Fields:
//  ID               – primary key identifier.
//  CustomerID       – customer who initiated payment.
//  ShowtimeID       – showtime being booked.
//  TotalAmountCents – price verified against the gateway.
//  PaymentState     – see Payment* constants.
//  BookingState     – see Booking* constants.
//  PaymentRef       – gateway intent/session id (nullable until set).
//  ProviderTxnID    – provider transaction id, needed for refunds.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last transition timestamp.
type Booking struct {
    ID               uint64    // bookings.id
    CustomerID       uint64    // bookings.customer_id
    ShowtimeID       uint64    // bookings.showtime_id
    TotalAmountCents uint32    // bookings.total_amount_cents
    PaymentState     string    // bookings.payment_state
    BookingState     string    // bookings.booking_state
    PaymentRef       *string   // bookings.payment_ref (nullable)
    ProviderTxnID    *string   // bookings.provider_txn_id (nullable)
    CreatedAt        time.Time // bookings.created_at
    UpdatedAt        time.Time // bookings.updated_at
}

// BookingSeat links a booking to one named seat and records the price
// charged for it.  The set of rows per booking is written once at
// booking creation and never mutated.
type BookingSeat struct {
    ID         uint64 // booking_seats.id
    BookingID  uint64 // booking_seats.booking_id
    ShowtimeID uint64 // booking_seats.showtime_id
    SeatName   string // booking_seats.seat_name
    PriceCents uint32 // booking_seats.price_cents
}
