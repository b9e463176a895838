package reservation

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// fakeClock is a manually advanced Clock for deterministic expiry tests.
type fakeClock struct {
    mu  sync.Mutex
    now time.Time
}

func newFakeClock() *fakeClock {
    return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
    f.mu.Lock()
    f.now = f.now.Add(d)
    f.mu.Unlock()
}

func smallLayout() []SeatSpec {
    return []SeatSpec{
        {Name: "A1", Category: model.CategoryPremium},
        {Name: "A2", Category: model.CategoryPremium},
        {Name: "B1", Category: model.CategoryStandard},
        {Name: "B2", Category: model.CategoryStandard},
        {Name: "B3", Category: model.CategoryStandard},
    }
}

func newTestEngine(clock Clock) *MemoryEngine {
    e := NewMemoryEngine(clock)
    e.AddShowtime(1, smallLayout())
    return e
}

func seatStatus(t *testing.T, e *MemoryEngine, showtimeID uint64, name string) SeatView {
    t.Helper()
    views, err := e.SeatMap(context.Background(), showtimeID)
    require.NoError(t, err)
    for _, v := range views {
        if v.Name == name {
            return v
        }
    }
    t.Fatalf("seat %s not in seat map", name)
    return SeatView{}
}

func TestAcquireHoldAllOrNothing(t *testing.T) {
    ctx := context.Background()
    e := newTestEngine(nil)

    _, err := e.AcquireHold(ctx, 1, []string{"A1"}, 77, time.Minute)
    require.NoError(t, err)

    // B1 is free but A1 belongs to customer 77: the whole request fails
    // and B1 must not come out held.
    _, err = e.AcquireHold(ctx, 1, []string{"B1", "A1"}, 88, time.Minute)
    require.ErrorIs(t, err, ErrSeatsUnavailable)

    assert.Equal(t, model.SeatAvailable, seatStatus(t, e, 1, "B1").Status)
    assert.Equal(t, model.SeatHeld, seatStatus(t, e, 1, "A1").Status)
}

func TestAcquireHoldUnknownSeat(t *testing.T) {
    ctx := context.Background()
    e := newTestEngine(nil)

    _, err := e.AcquireHold(ctx, 1, []string{"A1", "Z9"}, 77, time.Minute)
    require.ErrorIs(t, err, ErrUnknownSeat)
    assert.Equal(t, model.SeatAvailable, seatStatus(t, e, 1, "A1").Status)

    _, err = e.AcquireHold(ctx, 1, nil, 77, time.Minute)
    require.ErrorIs(t, err, ErrNoSeatsRequested)

    _, err = e.AcquireHold(ctx, 42, []string{"A1"}, 77, time.Minute)
    require.ErrorIs(t, err, ErrShowtimeNotFound)
}

func TestAcquireHoldRefreshIsReentrant(t *testing.T) {
    ctx := context.Background()
    clock := newFakeClock()
    e := newTestEngine(clock)

    first, err := e.AcquireHold(ctx, 1, []string{"A1", "A2"}, 77, 5*time.Minute)
    require.NoError(t, err)

    // An immediate double submit produces the identical expiry and must
    // still succeed, not read as someone else's hold.
    again, err := e.AcquireHold(ctx, 1, []string{"A1", "A2"}, 77, 5*time.Minute)
    require.NoError(t, err)
    assert.Equal(t, first, again)

    clock.Advance(3 * time.Minute)

    // Same customer re-holding extends the expiry; the holder never
    // changes and no error is returned.
    second, err := e.AcquireHold(ctx, 1, []string{"A1", "A2"}, 77, 5*time.Minute)
    require.NoError(t, err)
    assert.True(t, second.After(first))

    v := seatStatus(t, e, 1, "A1")
    assert.Equal(t, model.SeatHeld, v.Status)
    assert.True(t, v.HeldBy(77))
}

func TestAcquireHoldTakesOverExpiredHold(t *testing.T) {
    ctx := context.Background()
    clock := newFakeClock()
    e := newTestEngine(clock)

    _, err := e.AcquireHold(ctx, 1, []string{"A1"}, 77, time.Minute)
    require.NoError(t, err)

    // Still live: another customer is rejected.
    _, err = e.AcquireHold(ctx, 1, []string{"A1"}, 88, time.Minute)
    require.ErrorIs(t, err, ErrSeatsUnavailable)

    // After expiry the seat is grantable without waiting for a sweep.
    clock.Advance(time.Minute + time.Second)
    _, err = e.AcquireHold(ctx, 1, []string{"A1"}, 88, time.Minute)
    require.NoError(t, err)
    assert.True(t, seatStatus(t, e, 1, "A1").HeldBy(88))
}

func TestConcurrentHoldsNoDoubleGrant(t *testing.T) {
    ctx := context.Background()
    e := newTestEngine(nil)

    const workers = 64
    var wg sync.WaitGroup
    wins := make(chan uint64, workers)
    for i := 0; i < workers; i++ {
        wg.Add(1)
        go func(customer uint64) {
            defer wg.Done()
            if _, err := e.AcquireHold(ctx, 1, []string{"B1", "B2"}, customer, time.Minute); err == nil {
                wins <- customer
            }
        }(uint64(i + 1))
    }
    wg.Wait()
    close(wins)

    var winners []uint64
    for w := range wins {
        winners = append(winners, w)
    }
    require.Len(t, winners, 1, "exactly one customer may win the hold")

    v1 := seatStatus(t, e, 1, "B1")
    v2 := seatStatus(t, e, 1, "B2")
    assert.Equal(t, winners[0], v1.HolderID)
    assert.Equal(t, winners[0], v2.HolderID)
}

func TestConfirmSaleRequiresLiveHold(t *testing.T) {
    ctx := context.Background()
    clock := newFakeClock()
    e := newTestEngine(clock)

    _, err := e.AcquireHold(ctx, 1, []string{"A1", "A2"}, 77, time.Minute)
    require.NoError(t, err)

    // Someone else's hold cannot be confirmed.
    err = e.ConfirmSale(ctx, 1, []string{"A1", "A2"}, 88)
    require.ErrorIs(t, err, ErrLockExpiredOrInvalid)

    // Expired holds cannot be confirmed even by their owner.
    clock.Advance(2 * time.Minute)
    err = e.ConfirmSale(ctx, 1, []string{"A1", "A2"}, 77)
    require.ErrorIs(t, err, ErrLockExpiredOrInvalid)
    assert.Equal(t, model.SeatHeld, seatStatus(t, e, 1, "A1").Status)

    // A live hold confirms the whole set.
    _, err = e.AcquireHold(ctx, 1, []string{"A1", "A2"}, 77, time.Minute)
    require.NoError(t, err)
    require.NoError(t, e.ConfirmSale(ctx, 1, []string{"A1", "A2"}, 77))

    v := seatStatus(t, e, 1, "A2")
    assert.Equal(t, model.SeatSold, v.Status)
    assert.Equal(t, uint64(77), v.HolderID, "purchaser of record is kept")

    // Sold seats are terminal for AcquireHold.
    _, err = e.AcquireHold(ctx, 1, []string{"A1"}, 88, time.Minute)
    require.ErrorIs(t, err, ErrSeatsUnavailable)
}

func TestReleaseHoldIsIdempotentAndScoped(t *testing.T) {
    ctx := context.Background()
    e := newTestEngine(nil)

    _, err := e.AcquireHold(ctx, 1, []string{"B1", "B2"}, 77, time.Minute)
    require.NoError(t, err)
    _, err = e.AcquireHold(ctx, 1, []string{"B3"}, 88, time.Minute)
    require.NoError(t, err)

    // Customer 88 cannot release 77's seats; the call is a silent no-op.
    n, err := e.ReleaseHold(ctx, 1, []string{"B1"}, 88)
    require.NoError(t, err)
    assert.Zero(t, n)
    assert.Equal(t, model.SeatHeld, seatStatus(t, e, 1, "B1").Status)

    // Empty seat list releases everything the customer holds.
    n, err = e.ReleaseHold(ctx, 1, nil, 77)
    require.NoError(t, err)
    assert.Equal(t, 2, n)
    assert.Equal(t, model.SeatAvailable, seatStatus(t, e, 1, "B1").Status)
    assert.Equal(t, model.SeatHeld, seatStatus(t, e, 1, "B3").Status)

    // Releasing again is a no-op, not an error.
    n, err = e.ReleaseHold(ctx, 1, nil, 77)
    require.NoError(t, err)
    assert.Zero(t, n)

    _, err = e.ReleaseHold(ctx, 42, nil, 77)
    require.ErrorIs(t, err, ErrShowtimeNotFound)
}

// Between expiry and the next sweep pass the seat map must already
// report the seat as free, matching the acquire path's lazy expiry.
func TestSeatMapMasksExpiredHold(t *testing.T) {
    ctx := context.Background()
    clock := newFakeClock()
    e := newTestEngine(clock)

    _, err := e.AcquireHold(ctx, 1, []string{"A1"}, 77, time.Minute)
    require.NoError(t, err)

    v := seatStatus(t, e, 1, "A1")
    assert.Equal(t, model.SeatHeld, v.Status)
    require.NotNil(t, v.HoldExpiresAt)

    clock.Advance(2 * time.Minute)

    v = seatStatus(t, e, 1, "A1")
    assert.Equal(t, model.SeatAvailable, v.Status)
    assert.Zero(t, v.HolderID)
    assert.Nil(t, v.HoldExpiresAt)
}

func TestReleaseSoldSeats(t *testing.T) {
    ctx := context.Background()
    e := newTestEngine(nil)

    _, err := e.AcquireHold(ctx, 1, []string{"A1"}, 77, time.Minute)
    require.NoError(t, err)
    require.NoError(t, e.ConfirmSale(ctx, 1, []string{"A1"}, 77))

    n, err := e.ReleaseSoldSeats(ctx, 1, []string{"A1", "A2"})
    require.NoError(t, err)
    assert.Equal(t, 1, n, "only SOLD seats count")
    assert.Equal(t, model.SeatAvailable, seatStatus(t, e, 1, "A1").Status)
}

func TestSweepReclaimsOnlyExpiredHolds(t *testing.T) {
    ctx := context.Background()
    clock := newFakeClock()
    e := NewMemoryEngine(clock)
    e.AddShowtime(1, smallLayout())
    e.AddShowtime(2, smallLayout())

    _, err := e.AcquireHold(ctx, 1, []string{"A1", "A2"}, 77, time.Minute)
    require.NoError(t, err)
    _, err = e.AcquireHold(ctx, 2, []string{"B1"}, 88, 10*time.Minute)
    require.NoError(t, err)
    _, err = e.AcquireHold(ctx, 1, []string{"B1"}, 88, 10*time.Minute)
    require.NoError(t, err)
    require.NoError(t, e.ConfirmSale(ctx, 1, []string{"B1"}, 88))

    clock.Advance(2 * time.Minute)

    n, err := e.SweepExpiredHolds(ctx)
    require.NoError(t, err)
    assert.Equal(t, 2, n)

    assert.Equal(t, model.SeatAvailable, seatStatus(t, e, 1, "A1").Status)
    assert.Equal(t, model.SeatAvailable, seatStatus(t, e, 1, "A2").Status)
    assert.Equal(t, model.SeatSold, seatStatus(t, e, 1, "B1").Status, "sold seats are never swept")
    assert.Equal(t, model.SeatHeld, seatStatus(t, e, 2, "B1").Status, "live holds survive the sweep")

    // Idempotent: a second pass finds nothing.
    n, err = e.SweepExpiredHolds(ctx)
    require.NoError(t, err)
    assert.Zero(t, n)
}

// The abandoned-hold scenario end to end: hold, walk away, expire,
// sweep, and the seats are sellable to someone else.
func TestAbandonedHoldLifecycle(t *testing.T) {
    ctx := context.Background()
    clock := newFakeClock()
    e := newTestEngine(clock)

    _, err := e.AcquireHold(ctx, 1, []string{"A1", "A2", "B1"}, 77, 7*time.Minute)
    require.NoError(t, err)

    clock.Advance(8 * time.Minute)
    n, err := e.SweepExpiredHolds(ctx)
    require.NoError(t, err)
    require.Equal(t, 3, n)

    _, err = e.AcquireHold(ctx, 1, []string{"A1", "A2", "B1"}, 88, 7*time.Minute)
    require.NoError(t, err)
    require.NoError(t, e.ConfirmSale(ctx, 1, []string{"A1", "A2", "B1"}, 88))

    for _, name := range []string{"A1", "A2", "B1"} {
        v := seatStatus(t, e, 1, name)
        assert.Equal(t, model.SeatSold, v.Status)
        assert.Equal(t, uint64(88), v.HolderID)
    }
}
