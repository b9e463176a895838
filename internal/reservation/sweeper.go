package reservation

import (
    "context"
    "log"
    "sync/atomic"
    "time"

    "github.com/iliyamo/movie-ticket-booking/internal/metrics"
)

// Sweeper periodically reclaims expired holds across all showtimes so
// seats don't stay advertised as held when no customer ever comes back
// for them.  Expiry itself is lazy (checked by every engine operation);
// the sweeper is the backstop that bounds how stale availability can
// get.  The interval trades seat-availability staleness against write
// load.
type Sweeper struct {
    engine   Engine
    interval time.Duration
    ticker   *time.Ticker
    done     chan struct{}
    running  atomic.Bool
}

// NewSweeper builds a sweeper over the given engine.  A non-positive
// interval defaults to 30 seconds.
func NewSweeper(engine Engine, interval time.Duration) *Sweeper {
    if interval <= 0 {
        interval = 30 * time.Second
    }
    return &Sweeper{
        engine:   engine,
        interval: interval,
        done:     make(chan struct{}),
    }
}

// Start launches the sweep loop in a goroutine.  An initial sweep runs
// immediately so a restart doesn't wait a full interval to reclaim
// holds orphaned while the process was down.
func (s *Sweeper) Start(ctx context.Context) {
    log.Printf("sweeper: starting (interval=%s)", s.interval)
    s.ticker = time.NewTicker(s.interval)
    go s.sweep(ctx)
    go func() {
        for {
            select {
            case <-s.ticker.C:
                s.sweep(ctx)
            case <-s.done:
                log.Printf("sweeper: stopped")
                return
            case <-ctx.Done():
                return
            }
        }
    }()
}

// Stop terminates the loop.  Safe to call once.
func (s *Sweeper) Stop() {
    if s.ticker != nil {
        s.ticker.Stop()
    }
    close(s.done)
}

// sweep runs one reclamation pass.  Overlapping invocations are
// skipped; the underlying engine operation is idempotent anyway, so
// the skip only avoids redundant write load.
func (s *Sweeper) sweep(ctx context.Context) {
    if !s.running.CompareAndSwap(false, true) {
        return
    }
    defer s.running.Store(false)

    n, err := s.engine.SweepExpiredHolds(ctx)
    metrics.SweepRuns.Inc()
    if err != nil {
        log.Printf("sweeper: sweep failed: %v", err)
        return
    }
    if n > 0 {
        metrics.SeatsSwept.Add(float64(n))
        log.Printf("sweeper: reclaimed %d expired holds", n)
    }
}
