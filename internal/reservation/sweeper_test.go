package reservation

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

func TestSweeperReclaimsOnStartup(t *testing.T) {
    ctx := context.Background()
    clock := newFakeClock()
    e := newTestEngine(clock)

    _, err := e.AcquireHold(ctx, 1, []string{"A1"}, 77, time.Minute)
    require.NoError(t, err)
    clock.Advance(2 * time.Minute)

    // Start runs an immediate pass, so orphaned holds are reclaimed
    // without waiting for the first tick.
    s := NewSweeper(e, time.Hour)
    s.Start(ctx)
    defer s.Stop()

    assert.Eventually(t, func() bool {
        return seatStatus(t, e, 1, "A1").Status == model.SeatAvailable
    }, 2*time.Second, 10*time.Millisecond)
}

func TestSweeperPeriodicPass(t *testing.T) {
    ctx := context.Background()
    clock := newFakeClock()
    e := newTestEngine(clock)

    s := NewSweeper(e, 20*time.Millisecond)
    s.Start(ctx)
    defer s.Stop()

    _, err := e.AcquireHold(ctx, 1, []string{"B1", "B2"}, 77, time.Minute)
    require.NoError(t, err)
    clock.Advance(2 * time.Minute)

    assert.Eventually(t, func() bool {
        return seatStatus(t, e, 1, "B1").Status == model.SeatAvailable &&
            seatStatus(t, e, 1, "B2").Status == model.SeatAvailable
    }, 2*time.Second, 10*time.Millisecond)
}

func TestSweeperStop(t *testing.T) {
    e := newTestEngine(nil)
    s := NewSweeper(e, 10*time.Millisecond)
    s.Start(context.Background())
    s.Stop()
    // No assertion beyond not panicking or leaking a tick after Stop.
    time.Sleep(30 * time.Millisecond)
}

func TestNewSweeperDefaultInterval(t *testing.T) {
    s := NewSweeper(newTestEngine(nil), 0)
    assert.Equal(t, 30*time.Second, s.interval)
}
