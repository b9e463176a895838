package booking

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
    "github.com/iliyamo/movie-ticket-booking/internal/payment"
    "github.com/iliyamo/movie-ticket-booking/internal/queue"
    "github.com/iliyamo/movie-ticket-booking/internal/reservation"
)

// fakeClock mirrors reservation.SystemClock with manual control.
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

// memStore is an in-memory Store with the same conditional-transition
// semantics as the MySQL ledger.
type memStore struct {
    mu        sync.Mutex
    nextID    uint64
    rows      map[uint64]*model.Booking
    seats     map[uint64][]model.BookingSeat
    byRef     map[string]uint64
    attachErr error
}

func newMemStore() *memStore {
    return &memStore{
        nextID: 1,
        rows:   make(map[uint64]*model.Booking),
        seats:  make(map[uint64][]model.BookingSeat),
        byRef:  make(map[string]uint64),
    }
}

func (m *memStore) Create(ctx context.Context, b *model.Booking, seats []model.BookingSeat) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    b.ID = m.nextID
    m.nextID++
    cp := *b
    m.rows[b.ID] = &cp
    m.seats[b.ID] = append([]model.BookingSeat(nil), seats...)
    return nil
}

func (m *memStore) AttachPaymentIntent(ctx context.Context, bookingID uint64, ref string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.attachErr != nil {
        return m.attachErr
    }
    b, ok := m.rows[bookingID]
    if !ok {
        return ErrBookingNotFound
    }
    b.PaymentRef = &ref
    m.byRef[ref] = bookingID
    return nil
}

func (m *memStore) get(bookingID uint64) (*model.Booking, []model.BookingSeat, error) {
    b, ok := m.rows[bookingID]
    if !ok {
        return nil, nil, ErrBookingNotFound
    }
    cp := *b
    return &cp, append([]model.BookingSeat(nil), m.seats[bookingID]...), nil
}

func (m *memStore) GetByID(ctx context.Context, bookingID uint64) (*model.Booking, []model.BookingSeat, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.get(bookingID)
}

func (m *memStore) GetByPaymentRef(ctx context.Context, ref string) (*model.Booking, []model.BookingSeat, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    id, ok := m.byRef[ref]
    if !ok {
        return nil, nil, ErrBookingNotFound
    }
    return m.get(id)
}

func (m *memStore) CompletePending(ctx context.Context, bookingID uint64, txnID string) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    b, ok := m.rows[bookingID]
    if !ok || b.PaymentState != model.PaymentPending || b.BookingState != model.BookingPending {
        return false, nil
    }
    b.PaymentState = model.PaymentCompleted
    b.BookingState = model.BookingConfirmed
    b.ProviderTxnID = &txnID
    return true, nil
}

func (m *memStore) FailPending(ctx context.Context, bookingID uint64, paymentState string) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    b, ok := m.rows[bookingID]
    if !ok || b.PaymentState != model.PaymentPending {
        return false, nil
    }
    b.PaymentState = paymentState
    b.BookingState = model.BookingCancelled
    return true, nil
}

func (m *memStore) MarkSeatsLost(ctx context.Context, bookingID uint64) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    b, ok := m.rows[bookingID]
    if !ok || b.PaymentState != model.PaymentPending {
        return false, nil
    }
    b.PaymentState = model.PaymentRefundPending
    b.BookingState = model.BookingCancelled
    return true, nil
}

func (m *memStore) CancelConfirmed(ctx context.Context, bookingID uint64) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    b, ok := m.rows[bookingID]
    if !ok || b.BookingState != model.BookingConfirmed {
        return false, nil
    }
    b.BookingState = model.BookingCancelled
    return true, nil
}

func (m *memStore) SetPaymentState(ctx context.Context, bookingID uint64, paymentState string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    b, ok := m.rows[bookingID]
    if !ok {
        return ErrBookingNotFound
    }
    b.PaymentState = paymentState
    return nil
}

func (m *memStore) state(t *testing.T, bookingID uint64) (string, string) {
    t.Helper()
    m.mu.Lock()
    defer m.mu.Unlock()
    b, ok := m.rows[bookingID]
    require.True(t, ok)
    return b.PaymentState, b.BookingState
}

// memShowtimes is an in-memory ShowtimeStore.
type memShowtimes struct {
    showtimes map[uint64]*model.Showtime
    prices    map[uint64]map[string]uint32
}

func (m *memShowtimes) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
    st, ok := m.showtimes[id]
    if !ok {
        return nil, reservation.ErrShowtimeNotFound
    }
    cp := *st
    return &cp, nil
}

func (m *memShowtimes) SeatPrices(ctx context.Context, showtimeID uint64, names []string) (map[string]uint32, error) {
    all, ok := m.prices[showtimeID]
    if !ok {
        return nil, reservation.ErrShowtimeNotFound
    }
    out := make(map[string]uint32, len(names))
    for _, n := range names {
        p, ok := all[n]
        if !ok {
            return nil, reservation.ErrUnknownSeat
        }
        out[n] = p
    }
    return out, nil
}

// scriptedGateway returns canned provider responses.
type scriptedGateway struct {
    mu          sync.Mutex
    intentErr   error
    verifyErr   error
    refundErr   error
    status      string
    amount      int64
    intents     int
    refunds     int
    verified    []string
}

func (g *scriptedGateway) CreateIntent(ctx context.Context, amountCents int64, currency, orderRef, returnURL string) (*payment.Intent, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    if g.intentErr != nil {
        return nil, g.intentErr
    }
    g.intents++
    if g.amount == 0 {
        g.amount = amountCents
    }
    return &payment.Intent{IntentID: "intent-1", RedirectURL: "https://pay.example/intent-1"}, nil
}

func (g *scriptedGateway) VerifyByReference(ctx context.Context, ref string) (*payment.Verification, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    if g.verifyErr != nil {
        return nil, g.verifyErr
    }
    g.verified = append(g.verified, ref)
    return &payment.Verification{Status: g.status, ConfirmedAmount: g.amount, ProviderTxnID: "txn-9"}, nil
}

func (g *scriptedGateway) Refund(ctx context.Context, txnID string) error {
    g.mu.Lock()
    defer g.mu.Unlock()
    if g.refundErr != nil {
        return g.refundErr
    }
    g.refunds++
    return nil
}

// recordingNotifier captures published events.
type recordingNotifier struct {
    mu        sync.Mutex
    confirmed []queue.BookingConfirmedEvent
    cancelled []queue.BookingCancelledEvent
    alerts    []queue.RefundAlertEvent
}

func (n *recordingNotifier) BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
    n.mu.Lock()
    defer n.mu.Unlock()
    n.confirmed = append(n.confirmed, ev)
    return nil
}

func (n *recordingNotifier) BookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error {
    n.mu.Lock()
    defer n.mu.Unlock()
    n.cancelled = append(n.cancelled, ev)
    return nil
}

func (n *recordingNotifier) RefundAlert(ctx context.Context, ev queue.RefundAlertEvent) error {
    n.mu.Lock()
    defer n.mu.Unlock()
    n.alerts = append(n.alerts, ev)
    return nil
}

type fixture struct {
    svc      *Service
    engine   *reservation.MemoryEngine
    store    *memStore
    gateway  *scriptedGateway
    notifier *recordingNotifier
    clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
    t.Helper()
    clock := newFakeClock()
    engine := reservation.NewMemoryEngine(clock)
    engine.AddShowtime(1, []reservation.SeatSpec{
        {Name: "A1", Category: model.CategoryPremium},
        {Name: "A2", Category: model.CategoryPremium},
        {Name: "B1", Category: model.CategoryStandard},
    })
    showtimes := &memShowtimes{
        showtimes: map[uint64]*model.Showtime{
            1: {
                ID:                 1,
                Title:              "Arrival",
                StartsAt:           clock.Now().Add(3 * time.Hour),
                EndsAt:             clock.Now().Add(5 * time.Hour),
                PriceStandardCents: 1000,
                PricePremiumCents:  1500,
            },
        },
        prices: map[uint64]map[string]uint32{
            1: {"A1": 1500, "A2": 1500, "B1": 1000},
        },
    }
    store := newMemStore()
    gw := &scriptedGateway{status: payment.StatusCompleted}
    notifier := &recordingNotifier{}
    svc := NewService(engine, store, showtimes, gw, notifier, clock, Config{
        HoldTTL:      7 * time.Minute,
        CancelCutoff: time.Hour,
        Currency:     "USD",
        ReturnURL:    "https://tickets.example/return",
    })
    return &fixture{svc: svc, engine: engine, store: store, gateway: gw, notifier: notifier, clock: clock}
}

func (f *fixture) initiate(t *testing.T, seats []string, customerID uint64) *InitiateResult {
    t.Helper()
    res, err := f.svc.Initiate(context.Background(), 1, seats, customerID, 0)
    require.NoError(t, err)
    return res
}

func TestInitiateHoldsSeatsAndOpensIntent(t *testing.T) {
    f := newFixture(t)

    res := f.initiate(t, []string{"A1", "B1"}, 77)
    assert.Equal(t, uint32(2500), res.TotalCents)
    assert.Equal(t, "intent-1", res.PaymentRef)
    assert.Equal(t, "https://pay.example/intent-1", res.RedirectURL)
    assert.Equal(t, f.clock.Now().Add(7*time.Minute), res.HoldExpiresAt)

    pay, book := f.store.state(t, res.BookingID)
    assert.Equal(t, model.PaymentPending, pay)
    assert.Equal(t, model.BookingPending, book)

    views, err := f.engine.SeatMap(context.Background(), 1)
    require.NoError(t, err)
    for _, v := range views {
        if v.Name == "A1" || v.Name == "B1" {
            assert.True(t, v.HeldBy(77))
        }
    }
}

func TestInitiateAppliesDiscountWithFloor(t *testing.T) {
    f := newFixture(t)

    res, err := f.svc.Initiate(context.Background(), 1, []string{"B1"}, 77, 400)
    require.NoError(t, err)
    assert.Equal(t, uint32(600), res.TotalCents)

    // A discount larger than the total floors at zero, never wraps.
    res2, err := f.svc.Initiate(context.Background(), 1, []string{"A1"}, 78, 99999)
    require.NoError(t, err)
    assert.Equal(t, uint32(0), res2.TotalCents)
}

func TestInitiateRejectsStartedShowtime(t *testing.T) {
    f := newFixture(t)
    f.clock.Advance(4 * time.Hour)

    _, err := f.svc.Initiate(context.Background(), 1, []string{"A1"}, 77, 0)
    require.ErrorIs(t, err, ErrShowtimeStarted)
}

func TestInitiateGatewayFailureKeepsHold(t *testing.T) {
    f := newFixture(t)
    f.gateway.intentErr = errors.New("gateway down")

    _, err := f.svc.Initiate(context.Background(), 1, []string{"A1"}, 77, 0)
    require.Error(t, err)

    // The hold survives so the customer can just try again; the ledger
    // row is parked as FAILED.
    views, err := f.engine.SeatMap(context.Background(), 1)
    require.NoError(t, err)
    for _, v := range views {
        if v.Name == "A1" {
            assert.True(t, v.HeldBy(77))
        }
    }
    pay, book := f.store.state(t, 1)
    assert.Equal(t, model.PaymentFailed, pay)
    assert.Equal(t, model.BookingCancelled, book)

    f.gateway.intentErr = nil
    res := f.initiate(t, []string{"A1"}, 77)
    assert.NotZero(t, res.BookingID)
}

func TestInitiateAttachFailureParksBooking(t *testing.T) {
    f := newFixture(t)
    f.store.attachErr = errors.New("db gone")

    _, err := f.svc.Initiate(context.Background(), 1, []string{"A1"}, 77, 0)
    require.Error(t, err)

    // A row without a payment reference can never be verified, so it
    // must not linger as PENDING; the hold survives for a retry.
    pay, book := f.store.state(t, 1)
    assert.Equal(t, model.PaymentFailed, pay)
    assert.Equal(t, model.BookingCancelled, book)

    f.store.attachErr = nil
    res := f.initiate(t, []string{"A1"}, 77)
    assert.NotZero(t, res.BookingID)
}

func TestVerifySuccessConfirmsBookingAndSeats(t *testing.T) {
    f := newFixture(t)
    res := f.initiate(t, []string{"A1", "A2"}, 77)

    vr, err := f.svc.Verify(context.Background(), res.PaymentRef)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentCompleted, vr.PaymentState)
    assert.Equal(t, model.BookingConfirmed, vr.BookingState)
    assert.False(t, vr.Duplicate)

    views, err := f.engine.SeatMap(context.Background(), 1)
    require.NoError(t, err)
    sold := 0
    for _, v := range views {
        if v.Status == model.SeatSold {
            sold++
        }
    }
    assert.Equal(t, 2, sold)

    require.Len(t, f.notifier.confirmed, 1)
    ev := f.notifier.confirmed[0]
    assert.Equal(t, res.BookingID, ev.BookingID)
    assert.Equal(t, "Arrival", ev.MovieTitle)
    assert.ElementsMatch(t, []string{"A1", "A2"}, ev.SeatNames)
}

func TestVerifyIsIdempotent(t *testing.T) {
    f := newFixture(t)
    res := f.initiate(t, []string{"A1"}, 77)

    _, err := f.svc.Verify(context.Background(), res.PaymentRef)
    require.NoError(t, err)

    // Second and third deliveries are acknowledged as duplicates with
    // the same outcome and no new side effects.
    for i := 0; i < 2; i++ {
        vr, err := f.svc.Verify(context.Background(), res.PaymentRef)
        require.NoError(t, err)
        assert.True(t, vr.Duplicate)
        assert.Equal(t, model.BookingConfirmed, vr.BookingState)
    }
    assert.Len(t, f.notifier.confirmed, 1, "confirmed event fires exactly once")
    assert.Len(t, f.gateway.verified, 1, "resolved bookings never re-query the gateway")
}

func TestVerifyConcurrentCallbacksConfirmOnce(t *testing.T) {
    f := newFixture(t)
    res := f.initiate(t, []string{"A1"}, 77)

    const callers = 16
    var wg sync.WaitGroup
    outcomes := make(chan *VerifyResult, callers)
    for i := 0; i < callers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            vr, err := f.svc.Verify(context.Background(), res.PaymentRef)
            if err == nil {
                outcomes <- vr
            }
        }()
    }
    wg.Wait()
    close(outcomes)

    firsts := 0
    for vr := range outcomes {
        assert.Equal(t, model.BookingConfirmed, vr.BookingState)
        if !vr.Duplicate {
            firsts++
        }
    }
    assert.Equal(t, 1, firsts, "exactly one caller performs the confirmation")
    assert.Len(t, f.notifier.confirmed, 1)
}

func TestVerifyFailureReleasesHold(t *testing.T) {
    f := newFixture(t)
    f.gateway.status = payment.StatusFailed
    res := f.initiate(t, []string{"A1"}, 77)

    vr, err := f.svc.Verify(context.Background(), res.PaymentRef)
    require.ErrorIs(t, err, ErrPaymentVerificationFailed)
    assert.Equal(t, model.PaymentFailed, vr.PaymentState)
    assert.Equal(t, model.BookingCancelled, vr.BookingState)

    // Compensation: the hold is gone and the seat immediately
    // available to others.
    _, err = f.engine.AcquireHold(context.Background(), 1, []string{"A1"}, 88, time.Minute)
    require.NoError(t, err)
}

func TestVerifyUserCancellation(t *testing.T) {
    f := newFixture(t)
    f.gateway.status = payment.StatusUserCancelled
    res := f.initiate(t, []string{"A1"}, 77)

    vr, err := f.svc.Verify(context.Background(), res.PaymentRef)
    require.ErrorIs(t, err, ErrPaymentVerificationFailed)
    assert.Equal(t, model.PaymentCancelled, vr.PaymentState)
}

func TestVerifyAmountMismatchIsFailure(t *testing.T) {
    f := newFixture(t)
    res := f.initiate(t, []string{"A1"}, 77)
    f.gateway.amount = 1 // provider confirms the wrong amount

    _, err := f.svc.Verify(context.Background(), res.PaymentRef)
    require.ErrorIs(t, err, ErrPaymentVerificationFailed)
    pay, _ := f.store.state(t, res.BookingID)
    assert.Equal(t, model.PaymentFailed, pay)
}

func TestVerifyTransportErrorIsRetryable(t *testing.T) {
    f := newFixture(t)
    res := f.initiate(t, []string{"A1"}, 77)
    f.gateway.verifyErr = errors.New("timeout")

    _, err := f.svc.Verify(context.Background(), res.PaymentRef)
    require.Error(t, err)
    require.NotErrorIs(t, err, ErrPaymentVerificationFailed)

    // Nothing changed; the retry succeeds.
    pay, book := f.store.state(t, res.BookingID)
    assert.Equal(t, model.PaymentPending, pay)
    assert.Equal(t, model.BookingPending, book)

    f.gateway.verifyErr = nil
    vr, err := f.svc.Verify(context.Background(), res.PaymentRef)
    require.NoError(t, err)
    assert.Equal(t, model.BookingConfirmed, vr.BookingState)
}

// The payment-succeeded-but-seats-lost conflict: the hold expires and
// the seat is resold while the customer is at the gateway.  The paid
// booking parks as REFUND_PENDING and the alert fires; it is never
// folded into ordinary failure.
func TestVerifySeatsLostAfterPayment(t *testing.T) {
    f := newFixture(t)
    res := f.initiate(t, []string{"A1"}, 77)

    f.clock.Advance(10 * time.Minute)
    _, err := f.engine.SweepExpiredHolds(context.Background())
    require.NoError(t, err)
    _, err = f.engine.AcquireHold(context.Background(), 1, []string{"A1"}, 88, time.Minute)
    require.NoError(t, err)
    require.NoError(t, f.engine.ConfirmSale(context.Background(), 1, []string{"A1"}, 88))

    vr, err := f.svc.Verify(context.Background(), res.PaymentRef)
    require.ErrorIs(t, err, ErrPaymentSucceededSeatsLost)
    assert.Equal(t, model.PaymentRefundPending, vr.PaymentState)
    assert.Equal(t, model.BookingCancelled, vr.BookingState)

    require.Len(t, f.notifier.alerts, 1)
    alert := f.notifier.alerts[0]
    assert.Equal(t, "seats_lost_after_payment", alert.Reason)
    assert.Equal(t, res.BookingID, alert.BookingID)
    assert.Equal(t, uint32(1500), alert.AmountCents)

    // The competing sale is untouched.
    views, err := f.engine.SeatMap(context.Background(), 1)
    require.NoError(t, err)
    for _, v := range views {
        if v.Name == "A1" {
            assert.Equal(t, model.SeatSold, v.Status)
            assert.Equal(t, uint64(88), v.HolderID)
        }
    }
}

func TestVerifyUnknownReference(t *testing.T) {
    f := newFixture(t)
    _, err := f.svc.Verify(context.Background(), "no-such-ref")
    require.ErrorIs(t, err, ErrBookingNotFound)
}

func confirmBooking(t *testing.T, f *fixture, seats []string, customerID uint64) uint64 {
    t.Helper()
    res := f.initiate(t, seats, customerID)
    _, err := f.svc.Verify(context.Background(), res.PaymentRef)
    require.NoError(t, err)
    return res.BookingID
}

func TestCancelReleasesSeatsAndRefunds(t *testing.T) {
    f := newFixture(t)
    id := confirmBooking(t, f, []string{"A1", "B1"}, 77)

    cr, err := f.svc.Cancel(context.Background(), id, 77, false)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentRefunded, cr.PaymentState)
    assert.False(t, cr.RefundPending)
    assert.Equal(t, 1, f.gateway.refunds)

    pay, book := f.store.state(t, id)
    assert.Equal(t, model.PaymentRefunded, pay)
    assert.Equal(t, model.BookingCancelled, book)

    // Seats are immediately sellable again.
    _, err = f.engine.AcquireHold(context.Background(), 1, []string{"A1", "B1"}, 88, time.Minute)
    require.NoError(t, err)

    require.Len(t, f.notifier.cancelled, 1)
    assert.ElementsMatch(t, []string{"A1", "B1"}, f.notifier.cancelled[0].SeatNames)
}

func TestCancelEnforcesOwnershipAndState(t *testing.T) {
    f := newFixture(t)
    id := confirmBooking(t, f, []string{"A1"}, 77)

    _, err := f.svc.Cancel(context.Background(), id, 88, false)
    require.ErrorIs(t, err, ErrNotBookingOwner)

    _, err = f.svc.Cancel(context.Background(), id, 77, false)
    require.NoError(t, err)

    // A cancelled booking cannot be cancelled again.
    _, err = f.svc.Cancel(context.Background(), id, 77, false)
    require.ErrorIs(t, err, ErrCancelNotAllowed)
}

func TestCancelWindowClosedForCustomerNotOperator(t *testing.T) {
    f := newFixture(t)
    id := confirmBooking(t, f, []string{"A1"}, 77)

    // Inside the one-hour cutoff before the 3-hours-away showtime.
    f.clock.Advance(2*time.Hour + 30*time.Minute)

    _, err := f.svc.Cancel(context.Background(), id, 77, false)
    require.ErrorIs(t, err, ErrCancelWindowClosed)

    cr, err := f.svc.Cancel(context.Background(), id, 0, true)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentRefunded, cr.PaymentState)
}

func TestCancelRefundFailureParksRefundPending(t *testing.T) {
    f := newFixture(t)
    id := confirmBooking(t, f, []string{"A1"}, 77)
    f.gateway.refundErr = errors.New("provider 500")

    cr, err := f.svc.Cancel(context.Background(), id, 77, false)
    require.NoError(t, err, "cancellation itself still succeeds")
    assert.True(t, cr.RefundPending)
    assert.Equal(t, model.PaymentRefundPending, cr.PaymentState)

    pay, _ := f.store.state(t, id)
    assert.Equal(t, model.PaymentRefundPending, pay)

    // The seats were released regardless of the refund outcome.
    _, err = f.engine.AcquireHold(context.Background(), 1, []string{"A1"}, 88, time.Minute)
    require.NoError(t, err)

    require.Len(t, f.notifier.alerts, 1)
    assert.Equal(t, "refund_failed", f.notifier.alerts[0].Reason)
}
