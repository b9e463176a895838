// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  booking.confirmed and booking.cancelled feed the
// notification collaborator; refund.alert is the dedicated operational
// channel for refunds that need a human.
const (
    BookingConfirmedQueue = "booking.confirmed"
    BookingCancelledQueue = "booking.cancelled"
    RefundAlertQueue      = "refund.alert"
)

// BookingConfirmedEvent is published after a booking transitions to
// COMPLETED/CONFIRMED.  It carries enough for downstream consumers to
// notify or log without querying the primary database.
type BookingConfirmedEvent struct {
    BookingID        uint64   `json:"booking_id"`
    CustomerID       uint64   `json:"customer_id"`
    ShowtimeID       uint64   `json:"showtime_id"`
    MovieTitle       string   `json:"movie_title"`
    StartsAt         string   `json:"starts_at"`
    SeatNames        []string `json:"seats"`
    TotalAmountCents uint32   `json:"total_amount_cents"`
    ConfirmedAt      string   `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a confirmed booking is
// cancelled, whatever the refund outcome.
type BookingCancelledEvent struct {
    BookingID   uint64   `json:"booking_id"`
    CustomerID  uint64   `json:"customer_id"`
    ShowtimeID  uint64   `json:"showtime_id"`
    SeatNames   []string `json:"seats"`
    RefundState string   `json:"refund_state"`
    CancelledAt string   `json:"cancelled_at"`
}

// RefundAlertEvent flags money that was taken but could not be settled
// automatically: either the seats were lost after a successful payment,
// or the gateway refused a refund.  Consumers of this queue page an
// operator; these events must never be dropped silently.
type RefundAlertEvent struct {
    BookingID     uint64 `json:"booking_id"`
    CustomerID    uint64 `json:"customer_id"`
    PaymentRef    string `json:"payment_ref"`
    ProviderTxnID string `json:"provider_txn_id,omitempty"`
    AmountCents   uint32 `json:"amount_cents"`
    Reason        string `json:"reason"`
    RaisedAt      string `json:"raised_at"`
}
