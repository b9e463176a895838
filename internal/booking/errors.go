package booking

import "errors"

// ErrBookingNotFound is returned when no booking matches the given id
// or payment reference.  An unknown payment reference on a verify
// callback is a hard error, never a silent success.
var ErrBookingNotFound = errors.New("booking not found")

// ErrPaymentVerificationFailed is returned when the gateway's
// authoritative status check reports non-success or an amount mismatch.
// The booking's seats are released as part of handling it, never left
// dangling.
var ErrPaymentVerificationFailed = errors.New("payment verification failed")

// ErrPaymentSucceededSeatsLost is the conflict between a successful
// payment and seats that are no longer confirmable (the hold expired
// and was swept, or the seats were sold elsewhere).  The customer's
// money is owed back; handlers surface it loudly and an operational
// alert is raised.  It is deliberately distinct from ordinary
// verification failure.
var ErrPaymentSucceededSeatsLost = errors.New("payment succeeded but seats were lost")

// ErrRefundFailed is returned when the gateway declined or failed the
// refund call during cancellation.  The booking is cancelled and the
// seats released regardless; the payment is parked in REFUND_PENDING
// for manual follow-up.
var ErrRefundFailed = errors.New("refund failed")

// ErrCancelWindowClosed is returned when a cancellation arrives past
// the configured cutoff before the showtime starts and the caller has
// no operator override.
var ErrCancelWindowClosed = errors.New("cancellation window closed")

// ErrShowtimeStarted is returned when a payment is initiated for a
// screening that has already begun.
var ErrShowtimeStarted = errors.New("showtime already started")

// ErrCancelNotAllowed is returned when the booking is not in a
// cancellable state (only CONFIRMED bookings can be cancelled).
var ErrCancelNotAllowed = errors.New("booking cannot be cancelled")

// ErrNotBookingOwner is returned when a customer addresses a booking
// that belongs to somebody else.
var ErrNotBookingOwner = errors.New("booking belongs to another customer")
