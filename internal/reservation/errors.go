// Sentinel errors shared by every Engine implementation.  Handlers
// compare with errors.Is and translate them into HTTP responses; the
// booking service uses them to decide between restart and compensation
// paths.
package reservation

import "errors"

// ErrSeatsUnavailable is returned by AcquireHold when at least one
// requested seat is SOLD or held live by another customer.  The whole
// request fails; the caller should pick different seats.  Never retried
// automatically.
var ErrSeatsUnavailable = errors.New("seats unavailable")

// ErrLockExpiredOrInvalid is returned by ConfirmSale when a hold the
// caller believed it owned no longer matches: it expired, was swept, or
// was never granted.  After a successful payment this is the signal
// that the money must be compensated.
var ErrLockExpiredOrInvalid = errors.New("hold expired or invalid")

// ErrUnknownSeat is returned when a seat name does not exist in the
// showtime's seat map.
var ErrUnknownSeat = errors.New("unknown seat name")

// ErrNoSeatsRequested is returned when an operation that requires an
// explicit seat set receives none.
var ErrNoSeatsRequested = errors.New("no seats requested")

// ErrShowtimeNotFound is returned when the showtime does not exist.
var ErrShowtimeNotFound = errors.New("showtime not found")
