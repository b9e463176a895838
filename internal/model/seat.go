package model

import "time"

// Seat status values.  A seat moves AVAILABLE -> HELD -> SOLD during a
// successful purchase; holds revert to AVAILABLE on release, expiry or
// failed payment, and SOLD seats revert to AVAILABLE only through the
// cancellation flow.
const (
    SeatAvailable = "AVAILABLE"
    SeatHeld      = "HELD"
    SeatSold      = "SOLD"
)

// Seat category values, fixed at showtime creation.
const (
    CategoryStandard = "STANDARD"
    CategoryPremium  = "PREMIUM"
)

// Seat is one element of a showtime's seat map.  Seat names are unique
// within a showtime and derived from the venue's row/column layout;
// the set is immutable after creation.
//
// Invariant: HolderID and HoldExpiresAt are both set iff Status is
// HELD.  When SOLD, HolderID records the purchaser and HoldExpiresAt
// is nil.  When AVAILABLE, both are nil.
//
// Fields:
//  ID            – primary key identifier.
//  ShowtimeID    – showtime owning the seat.
//  Name          – stable row+number identifier, e.g. "A7".
//  Category      – STANDARD or PREMIUM, immutable.
//  Status        – AVAILABLE, HELD or SOLD.
//  HolderID      – customer holding or owning the seat (nullable).
//  HoldExpiresAt – when a HELD seat reverts to AVAILABLE (nullable).
type Seat struct {
    ID            uint64     // showtime_seats.id
    ShowtimeID    uint64     // showtime_seats.showtime_id
    Name          string     // showtime_seats.seat_name
    Category      string     // showtime_seats.category
    Status        string     // showtime_seats.status
    HolderID      *uint64    // showtime_seats.holder_id (nullable)
    HoldExpiresAt *time.Time // showtime_seats.hold_expires_at (nullable)
}
