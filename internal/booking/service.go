// Package booking implements the booking ledger and the payment
// reconciliation protocol: initiate -> external payment -> verify ->
// commit-or-compensate, with exactly-once seat commitment.  The seat
// map stays the single source of truth for ownership throughout; the
// ledger never asserts seat ownership on its own, it always goes back
// through the reservation engine.
package booking

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/movie-ticket-booking/internal/metrics"
    "github.com/iliyamo/movie-ticket-booking/internal/model"
    "github.com/iliyamo/movie-ticket-booking/internal/payment"
    "github.com/iliyamo/movie-ticket-booking/internal/queue"
    "github.com/iliyamo/movie-ticket-booking/internal/reservation"
)

// Config tunes the protocol.
type Config struct {
    // HoldTTL is the single hold duration used everywhere a hold is
    // granted or refreshed.
    HoldTTL time.Duration
    // CancelCutoff is how long before the showtime starts cancellation
    // closes for customers.  Operators may override.
    CancelCutoff time.Duration
    // Currency for gateway amounts.
    Currency string
    // ReturnURL is where the gateway redirects the customer back to.
    ReturnURL string
}

// Service orchestrates the reservation engine, the ledger and the
// payment gateway.  No in-process lock is ever held across a gateway
// call: seats are mutated either before the call (Initiate holds, then
// talks to the gateway) or after it (Verify talks to the gateway, then
// confirms), never while one is in flight.
type Service struct {
    engine    reservation.Engine
    store     Store
    showtimes ShowtimeStore
    gateway   payment.Gateway
    notify    Notifier
    clock     reservation.Clock
    cfg       Config
}

// NewService wires the protocol.  A nil clock defaults to the system
// clock; a nil notifier disables event publishing.
func NewService(engine reservation.Engine, store Store, showtimes ShowtimeStore, gateway payment.Gateway, notify Notifier, clock reservation.Clock, cfg Config) *Service {
    if clock == nil {
        clock = reservation.SystemClock{}
    }
    if cfg.HoldTTL <= 0 {
        cfg.HoldTTL = 7 * time.Minute
    }
    if cfg.Currency == "" {
        cfg.Currency = "USD"
    }
    return &Service{
        engine:    engine,
        store:     store,
        showtimes: showtimes,
        gateway:   gateway,
        notify:    notify,
        clock:     clock,
        cfg:       cfg,
    }
}

// InitiateResult is returned to the caller so the UI can redirect the
// customer and show the hold countdown.
type InitiateResult struct {
    BookingID     uint64
    PaymentRef    string
    RedirectURL   string
    HoldExpiresAt time.Time
    TotalCents    uint32
}

// Initiate starts a purchase: (re)holds the seats, prices them, appends
// a PENDING ledger row and opens a payment intent with the gateway.
// AcquireHold is re-entrant, so re-initiating over a still-valid hold
// refreshes it instead of erroring; an abandoned earlier attempt never
// blocks a new one.  discountCents is the promo adjustment, already
// computed upstream.
func (s *Service) Initiate(ctx context.Context, showtimeID uint64, seatNames []string, customerID uint64, discountCents uint32) (*InitiateResult, error) {
    st, err := s.showtimes.GetByID(ctx, showtimeID)
    if err != nil {
        return nil, err
    }
    if !st.StartsAt.After(s.clock.Now()) {
        return nil, ErrShowtimeStarted
    }

    expiry, err := s.engine.AcquireHold(ctx, showtimeID, seatNames, customerID, s.cfg.HoldTTL)
    if err != nil {
        return nil, err
    }

    prices, err := s.showtimes.SeatPrices(ctx, showtimeID, seatNames)
    if err != nil {
        return nil, err
    }
    var total uint32
    seats := make([]model.BookingSeat, 0, len(seatNames))
    for _, name := range seatNames {
        p := prices[name]
        total += p
        seats = append(seats, model.BookingSeat{ShowtimeID: showtimeID, SeatName: name, PriceCents: p})
    }
    if discountCents >= total {
        total = 0
    } else {
        total -= discountCents
    }

    b := &model.Booking{
        CustomerID:       customerID,
        ShowtimeID:       showtimeID,
        TotalAmountCents: total,
        PaymentState:     model.PaymentPending,
        BookingState:     model.BookingPending,
    }
    if err := s.store.Create(ctx, b, seats); err != nil {
        return nil, err
    }

    orderRef := uuid.NewString()
    intent, err := s.gateway.CreateIntent(ctx, int64(total), s.cfg.Currency, orderRef, s.cfg.ReturnURL)
    if err != nil {
        // Park the row as FAILED; the hold stays live so the customer
        // can simply initiate again.
        if _, ferr := s.store.FailPending(ctx, b.ID, model.PaymentFailed); ferr != nil {
            log.Printf("booking: failed to mark booking %d failed after gateway error: %v", b.ID, ferr)
        }
        return nil, err
    }
    if err := s.store.AttachPaymentIntent(ctx, b.ID, intent.IntentID); err != nil {
        // Without the reference on the row no verification can ever
        // find this booking, so park it the same way as a gateway
        // error; the hold stays live for a fresh attempt.
        if _, ferr := s.store.FailPending(ctx, b.ID, model.PaymentFailed); ferr != nil {
            log.Printf("booking: failed to mark booking %d failed after attach error: %v", b.ID, ferr)
        }
        return nil, err
    }

    return &InitiateResult{
        BookingID:     b.ID,
        PaymentRef:    intent.IntentID,
        RedirectURL:   intent.RedirectURL,
        HoldExpiresAt: expiry,
        TotalCents:    total,
    }, nil
}

// VerifyResult reports the booking's state after a verification pass.
// Duplicate is set when this call short-circuited because an earlier
// one already resolved the booking.
type VerifyResult struct {
    BookingID    uint64
    PaymentState string
    BookingState string
    Duplicate    bool
}

// Verify reconciles one gateway callback (redirect-return or webhook)
// against the ledger and the seat map.  Callable any number of times
// for the same reference; exactly one call performs the side effects.
func (s *Service) Verify(ctx context.Context, paymentRef string) (*VerifyResult, error) {
    b, seats, err := s.store.GetByPaymentRef(ctx, paymentRef)
    if err != nil {
        return nil, err
    }

    // Idempotency short-circuit: a prior call already confirmed this
    // booking.  Gateways routinely deliver duplicate callbacks, so this
    // is success, not an error.
    if b.BookingState == model.BookingConfirmed {
        log.Printf("booking: duplicate verification for booking %d (ref=%s)", b.ID, paymentRef)
        return s.resolved(b, true), nil
    }
    if b.PaymentState != model.PaymentPending {
        return s.resolved(b, true), nil
    }

    // The one trusted status source.  A transport error here is
    // retryable and changes nothing.
    v, err := s.gateway.VerifyByReference(ctx, paymentRef)
    if err != nil {
        return nil, err
    }

    seatNames := seatNameList(seats)

    if v.Status != payment.StatusCompleted || v.ConfirmedAmount != int64(b.TotalAmountCents) {
        return s.failVerification(ctx, b, seatNames, v)
    }

    // Payment confirmed; commit the seats.  ConfirmSale re-checks the
    // hold at commit time, so a hold swept in the meantime fails here
    // rather than silently succeeding.
    if err := s.engine.ConfirmSale(ctx, b.ShowtimeID, seatNames, b.CustomerID); err != nil {
        if errors.Is(err, reservation.ErrLockExpiredOrInvalid) {
            return s.seatsLost(ctx, b, paymentRef, v)
        }
        return nil, err
    }

    won, err := s.store.CompletePending(ctx, b.ID, v.ProviderTxnID)
    if err != nil {
        return nil, err
    }
    if !won {
        // A concurrent Verify won the Pending->Completed transition.
        // The seats are committed either way; re-read and report the
        // winner's outcome as our own success.
        return s.reread(ctx, b.ID)
    }

    metrics.BookingsConfirmed.Inc()
    s.publishConfirmed(ctx, b, seatNames)
    return &VerifyResult{
        BookingID:    b.ID,
        PaymentState: model.PaymentCompleted,
        BookingState: model.BookingConfirmed,
    }, nil
}

// failVerification handles gateway-reported failure or an amount
// mismatch: record the terminal payment state, then release the hold.
// The seats becoming instantly bookable by someone else is correct;
// the hold is no longer paid for.
func (s *Service) failVerification(ctx context.Context, b *model.Booking, seatNames []string, v *payment.Verification) (*VerifyResult, error) {
    state := model.PaymentFailed
    outcome := "failed"
    if v.Status == payment.StatusUserCancelled {
        state = model.PaymentCancelled
        outcome = "user_cancelled"
    } else if v.Status == payment.StatusCompleted {
        outcome = "amount_mismatch"
    }
    won, err := s.store.FailPending(ctx, b.ID, state)
    if err != nil {
        return nil, err
    }
    if !won {
        return s.reread(ctx, b.ID)
    }
    if _, err := s.engine.ReleaseHold(ctx, b.ShowtimeID, seatNames, b.CustomerID); err != nil {
        log.Printf("booking: release after failed verification of booking %d: %v", b.ID, err)
    }
    metrics.VerificationFailures.WithLabelValues(outcome).Inc()
    return &VerifyResult{BookingID: b.ID, PaymentState: state, BookingState: model.BookingCancelled},
        ErrPaymentVerificationFailed
}

// seatsLost handles the paid-but-unconfirmable conflict.  The booking
// is parked with a refund owed and the operational alert fires; the
// condition is never folded into ordinary failure and never reported
// as the customer's fault.
func (s *Service) seatsLost(ctx context.Context, b *model.Booking, paymentRef string, v *payment.Verification) (*VerifyResult, error) {
    won, err := s.store.MarkSeatsLost(ctx, b.ID)
    if err != nil {
        return nil, err
    }
    if !won {
        // Raced with a duplicate that confirmed first: the seats were
        // "lost" only because the twin already sold them to this very
        // customer.  That is a plain duplicate success.
        return s.reread(ctx, b.ID)
    }
    metrics.RefundAlerts.WithLabelValues("seats_lost").Inc()
    log.Printf("booking: REFUND OWED: booking %d paid %d cents but seats were lost (ref=%s)",
        b.ID, b.TotalAmountCents, paymentRef)
    if s.notify != nil {
        ev := queue.RefundAlertEvent{
            BookingID:     b.ID,
            CustomerID:    b.CustomerID,
            PaymentRef:    paymentRef,
            ProviderTxnID: v.ProviderTxnID,
            AmountCents:   b.TotalAmountCents,
            Reason:        "seats_lost_after_payment",
            RaisedAt:      s.clock.Now().Format(time.RFC3339),
        }
        if err := s.notify.RefundAlert(ctx, ev); err != nil {
            log.Printf("booking: refund alert publish failed for booking %d: %v", b.ID, err)
        }
    }
    return &VerifyResult{BookingID: b.ID, PaymentState: model.PaymentRefundPending, BookingState: model.BookingCancelled},
        ErrPaymentSucceededSeatsLost
}

// reread reports the current state of a booking after losing a
// conditional transition to a concurrent call.
func (s *Service) reread(ctx context.Context, bookingID uint64) (*VerifyResult, error) {
    b, _, err := s.store.GetByID(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    res := s.resolved(b, true)
    if b.BookingState != model.BookingConfirmed && b.PaymentState != model.PaymentCompleted {
        // The concurrent winner failed the booking; report that
        // consistently rather than inventing a success.
        return res, ErrPaymentVerificationFailed
    }
    return res, nil
}

func (s *Service) resolved(b *model.Booking, duplicate bool) *VerifyResult {
    return &VerifyResult{
        BookingID:    b.ID,
        PaymentState: b.PaymentState,
        BookingState: b.BookingState,
        Duplicate:    duplicate,
    }
}

// CancelResult reports the refund outcome of a cancellation.
type CancelResult struct {
    BookingID    uint64
    PaymentState string
    // RefundPending is true when the gateway could not refund
    // synchronously and an operator must follow up.
    RefundPending bool
}

// Cancel cancels a confirmed booking.  Customers may cancel until the
// configured cutoff before the showtime starts; operators may
// override.  Once authorized, the seats are released unconditionally;
// the refund's own success or failure never blocks the cancellation.
func (s *Service) Cancel(ctx context.Context, bookingID, customerID uint64, operator bool) (*CancelResult, error) {
    b, seats, err := s.store.GetByID(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    if !operator && b.CustomerID != customerID {
        return nil, ErrNotBookingOwner
    }
    if b.BookingState != model.BookingConfirmed {
        return nil, ErrCancelNotAllowed
    }
    st, err := s.showtimes.GetByID(ctx, b.ShowtimeID)
    if err != nil {
        return nil, err
    }
    if !operator && s.clock.Now().After(st.StartsAt.Add(-s.cfg.CancelCutoff)) {
        return nil, ErrCancelWindowClosed
    }

    won, err := s.store.CancelConfirmed(ctx, b.ID)
    if err != nil {
        return nil, err
    }
    if !won {
        return nil, ErrCancelNotAllowed
    }

    seatNames := seatNameList(seats)
    if _, err := s.engine.ReleaseSoldSeats(ctx, b.ShowtimeID, seatNames); err != nil {
        log.Printf("booking: releasing sold seats for cancelled booking %d: %v", b.ID, err)
    }

    res := &CancelResult{BookingID: b.ID, PaymentState: model.PaymentRefunded}
    refundErr := s.refund(ctx, b)
    if refundErr != nil {
        res.PaymentState = model.PaymentRefundPending
        res.RefundPending = true
    }
    if err := s.store.SetPaymentState(ctx, b.ID, res.PaymentState); err != nil {
        return nil, err
    }
    if s.notify != nil {
        ev := queue.BookingCancelledEvent{
            BookingID:   b.ID,
            CustomerID:  b.CustomerID,
            ShowtimeID:  b.ShowtimeID,
            SeatNames:   seatNames,
            RefundState: res.PaymentState,
            CancelledAt: s.clock.Now().Format(time.RFC3339),
        }
        if err := s.notify.BookingCancelled(ctx, ev); err != nil {
            log.Printf("booking: cancelled event publish failed for booking %d: %v", b.ID, err)
        }
    }
    return res, nil
}

// refund calls the gateway and, on failure, raises the operational
// alert.  Returns the gateway error so the caller can park the booking
// in REFUND_PENDING.
func (s *Service) refund(ctx context.Context, b *model.Booking) error {
    txnID := ""
    if b.ProviderTxnID != nil {
        txnID = *b.ProviderTxnID
    }
    err := s.gateway.Refund(ctx, txnID)
    if err == nil {
        return nil
    }
    metrics.RefundAlerts.WithLabelValues("refund_failed").Inc()
    log.Printf("booking: REFUND FAILED for booking %d (txn=%s): %v", b.ID, txnID, err)
    if s.notify != nil {
        ref := ""
        if b.PaymentRef != nil {
            ref = *b.PaymentRef
        }
        ev := queue.RefundAlertEvent{
            BookingID:     b.ID,
            CustomerID:    b.CustomerID,
            PaymentRef:    ref,
            ProviderTxnID: txnID,
            AmountCents:   b.TotalAmountCents,
            Reason:        "refund_failed",
            RaisedAt:      s.clock.Now().Format(time.RFC3339),
        }
        if perr := s.notify.RefundAlert(ctx, ev); perr != nil {
            log.Printf("booking: refund alert publish failed for booking %d: %v", b.ID, perr)
        }
    }
    return ErrRefundFailed
}

// publishConfirmed fires the booking.confirmed event.  Best-effort by
// contract: a publish failure is logged and never propagates into the
// confirmation result.
func (s *Service) publishConfirmed(ctx context.Context, b *model.Booking, seatNames []string) {
    if s.notify == nil {
        return
    }
    title, startsAt := "", ""
    if st, err := s.showtimes.GetByID(ctx, b.ShowtimeID); err == nil {
        title = st.Title
        startsAt = st.StartsAt.Format(time.RFC3339)
    }
    ev := queue.BookingConfirmedEvent{
        BookingID:        b.ID,
        CustomerID:       b.CustomerID,
        ShowtimeID:       b.ShowtimeID,
        MovieTitle:       title,
        StartsAt:         startsAt,
        SeatNames:        seatNames,
        TotalAmountCents: b.TotalAmountCents,
        ConfirmedAt:      s.clock.Now().Format(time.RFC3339),
    }
    if err := s.notify.BookingConfirmed(ctx, ev); err != nil {
        log.Printf("booking: confirmed event publish failed for booking %d: %v", b.ID, err)
    }
}

func seatNameList(seats []model.BookingSeat) []string {
    names := make([]string, 0, len(seats))
    for _, s := range seats {
        names = append(names, s.SeatName)
    }
    return names
}
