package reservation

import (
    "context"
    "sync"
    "time"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// MemoryEngine keeps every seat map in process memory, one mutex per
// showtime.  All mutations to a showtime's seats are serialized by its
// mutex, which makes each operation trivially all-or-nothing.  It backs
// the engine in dev mode and in tests; production uses the MySQL
// implementation in the repository package.
type MemoryEngine struct {
    mu        sync.RWMutex
    showtimes map[uint64]*memShowtime
    clock     Clock
}

type memShowtime struct {
    mu             sync.Mutex
    order          []string
    seats          map[string]*memSeat
    hasActiveHolds bool
}

type memSeat struct {
    category      string
    status        string
    holderID      uint64
    holdExpiresAt time.Time
}

// SeatSpec describes one seat of a layout when registering a showtime.
type SeatSpec struct {
    Name     string
    Category string
}

// NewMemoryEngine returns an empty in-memory engine.  A nil clock
// defaults to SystemClock.
func NewMemoryEngine(clock Clock) *MemoryEngine {
    if clock == nil {
        clock = SystemClock{}
    }
    return &MemoryEngine{
        showtimes: make(map[uint64]*memShowtime),
        clock:     clock,
    }
}

// AddShowtime registers a showtime's seat map.  All seats start
// AVAILABLE.  The seat set is fixed from this point on; registering the
// same id twice replaces the map and is intended for tests only.
func (e *MemoryEngine) AddShowtime(showtimeID uint64, seats []SeatSpec) {
    st := &memShowtime{seats: make(map[string]*memSeat, len(seats))}
    for _, s := range seats {
        if _, dup := st.seats[s.Name]; dup {
            continue
        }
        st.order = append(st.order, s.Name)
        st.seats[s.Name] = &memSeat{category: s.Category, status: model.SeatAvailable}
    }
    e.mu.Lock()
    e.showtimes[showtimeID] = st
    e.mu.Unlock()
}

func (e *MemoryEngine) showtime(id uint64) (*memShowtime, error) {
    e.mu.RLock()
    st, ok := e.showtimes[id]
    e.mu.RUnlock()
    if !ok {
        return nil, ErrShowtimeNotFound
    }
    return st, nil
}

// AcquireHold implements Engine.
func (e *MemoryEngine) AcquireHold(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64, ttl time.Duration) (time.Time, error) {
    if len(seatNames) == 0 {
        return time.Time{}, ErrNoSeatsRequested
    }
    st, err := e.showtime(showtimeID)
    if err != nil {
        return time.Time{}, err
    }
    now := e.clock.Now()
    expiry := now.Add(ttl)

    st.mu.Lock()
    defer st.mu.Unlock()

    targets := make([]*memSeat, 0, len(seatNames))
    for _, name := range seatNames {
        s, ok := st.seats[name]
        if !ok {
            return time.Time{}, ErrUnknownSeat
        }
        targets = append(targets, s)
    }
    // Check every precondition before mutating anything so a failure
    // leaves no partial hold visible.
    for _, s := range targets {
        if !s.acquirableBy(customerID, now) {
            return time.Time{}, ErrSeatsUnavailable
        }
    }
    for _, s := range targets {
        s.status = model.SeatHeld
        s.holderID = customerID
        s.holdExpiresAt = expiry
    }
    st.hasActiveHolds = true
    return expiry, nil
}

// acquirableBy reports whether the seat can be granted to customerID at
// time now: AVAILABLE, expired hold, or the customer's own live hold.
func (s *memSeat) acquirableBy(customerID uint64, now time.Time) bool {
    switch s.status {
    case model.SeatAvailable:
        return true
    case model.SeatHeld:
        return s.holderID == customerID || !s.holdExpiresAt.After(now)
    default:
        return false
    }
}

// ReleaseHold implements Engine.
func (e *MemoryEngine) ReleaseHold(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64) (int, error) {
    st, err := e.showtime(showtimeID)
    if err != nil {
        return 0, err
    }
    st.mu.Lock()
    defer st.mu.Unlock()

    names := seatNames
    if len(names) == 0 {
        names = st.order
    }
    released := 0
    for _, name := range names {
        s, ok := st.seats[name]
        if !ok || s.status != model.SeatHeld || s.holderID != customerID {
            continue
        }
        s.clear()
        released++
    }
    return released, nil
}

// ConfirmSale implements Engine.
func (e *MemoryEngine) ConfirmSale(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64) error {
    if len(seatNames) == 0 {
        return ErrNoSeatsRequested
    }
    st, err := e.showtime(showtimeID)
    if err != nil {
        return err
    }
    now := e.clock.Now()

    st.mu.Lock()
    defer st.mu.Unlock()

    targets := make([]*memSeat, 0, len(seatNames))
    for _, name := range seatNames {
        s, ok := st.seats[name]
        if !ok {
            return ErrUnknownSeat
        }
        // The hold must still be live at commit time; an expired hold
        // may already have been reclaimed by a racing sweep.
        if s.status != model.SeatHeld || s.holderID != customerID || !s.holdExpiresAt.After(now) {
            return ErrLockExpiredOrInvalid
        }
        targets = append(targets, s)
    }
    for _, s := range targets {
        s.status = model.SeatSold
        s.holdExpiresAt = time.Time{}
    }
    return nil
}

// ReleaseSoldSeats implements Engine.
func (e *MemoryEngine) ReleaseSoldSeats(ctx context.Context, showtimeID uint64, seatNames []string) (int, error) {
    st, err := e.showtime(showtimeID)
    if err != nil {
        return 0, err
    }
    st.mu.Lock()
    defer st.mu.Unlock()

    released := 0
    for _, name := range seatNames {
        s, ok := st.seats[name]
        if !ok || s.status != model.SeatSold {
            continue
        }
        s.clear()
        released++
    }
    return released, nil
}

// SweepExpiredHolds implements Engine.  Showtimes whose hint says they
// never had a hold since the last sweep are skipped entirely.
func (e *MemoryEngine) SweepExpiredHolds(ctx context.Context) (int, error) {
    e.mu.RLock()
    all := make([]*memShowtime, 0, len(e.showtimes))
    for _, st := range e.showtimes {
        all = append(all, st)
    }
    e.mu.RUnlock()

    now := e.clock.Now()
    reclaimed := 0
    for _, st := range all {
        st.mu.Lock()
        if !st.hasActiveHolds {
            st.mu.Unlock()
            continue
        }
        remaining := false
        for _, s := range st.seats {
            if s.status != model.SeatHeld {
                continue
            }
            if !s.holdExpiresAt.After(now) {
                s.clear()
                reclaimed++
            } else {
                remaining = true
            }
        }
        st.hasActiveHolds = remaining
        st.mu.Unlock()
    }
    return reclaimed, nil
}

// SeatMap implements Engine.  A hold past its expiry is reported as
// free even before the sweeper reclaims the seat, matching the lazy
// expiry of the acquire path.
func (e *MemoryEngine) SeatMap(ctx context.Context, showtimeID uint64) ([]SeatView, error) {
    st, err := e.showtime(showtimeID)
    if err != nil {
        return nil, err
    }
    now := e.clock.Now()

    st.mu.Lock()
    defer st.mu.Unlock()

    out := make([]SeatView, 0, len(st.order))
    for _, name := range st.order {
        s := st.seats[name]
        v := SeatView{
            Name:     name,
            Category: s.category,
            Status:   s.status,
            HolderID: s.holderID,
        }
        if s.status == model.SeatHeld {
            if !s.holdExpiresAt.After(now) {
                v = SeatView{Name: name, Category: s.category, Status: model.SeatAvailable}
            } else {
                exp := s.holdExpiresAt
                v.HoldExpiresAt = &exp
            }
        }
        out = append(out, v)
    }
    return out, nil
}

func (s *memSeat) clear() {
    s.status = model.SeatAvailable
    s.holderID = 0
    s.holdExpiresAt = time.Time{}
}
