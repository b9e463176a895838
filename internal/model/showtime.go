package model

import "time"

// Showtime is a single scheduled screening.  It owns a fixed seat
// collection generated from the venue layout at creation time and
// carries per-category pricing.  The HasActiveHolds flag is a coarse
// hint used by the background sweeper to skip showtimes that cannot
// possibly contain expired holds.
//
// Fields:
//  ID                 – primary key identifier.
//  Title              – movie title shown to customers.
//  StartsAt           – when the screening begins.
//  EndsAt             – when the screening ends.
//  PriceStandardCents – price of a STANDARD seat in cents.
//  PricePremiumCents  – price of a PREMIUM seat in cents.
//  HasActiveHolds     – sweep hint; set when any seat is held.
//  CreatedAt          – creation timestamp.
type Showtime struct {
    ID                 uint64    // showtimes.id
    Title              string    // showtimes.title
    StartsAt           time.Time // showtimes.starts_at
    EndsAt             time.Time // showtimes.ends_at
    PriceStandardCents uint32    // showtimes.price_standard_cents
    PricePremiumCents  uint32    // showtimes.price_premium_cents
    HasActiveHolds     bool      // showtimes.has_active_holds
    CreatedAt          time.Time // showtimes.created_at
}
