// Package metrics registers the Prometheus instruments exposed on
// /metrics.  Counters are package-level so the reservation engine,
// sweeper and booking service can increment them without threading a
// registry through every constructor.
package metrics

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    // HoldsAcquired counts successful AcquireHold calls.
    HoldsAcquired = promauto.NewCounter(prometheus.CounterOpts{
        Name: "booking_holds_acquired_total",
        Help: "Successful seat hold acquisitions",
    })

    // HoldsRejected counts AcquireHold calls that failed because a
    // requested seat was sold or held by another customer.
    HoldsRejected = promauto.NewCounter(prometheus.CounterOpts{
        Name: "booking_holds_rejected_total",
        Help: "Hold requests rejected because seats were unavailable",
    })

    // SeatsSwept counts seats reclaimed by the expired-hold sweeper.
    SeatsSwept = promauto.NewCounter(prometheus.CounterOpts{
        Name: "booking_seats_swept_total",
        Help: "Expired holds reclaimed by the background sweeper",
    })

    // SweepRuns counts sweep passes, successful or not.
    SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
        Name: "booking_sweep_runs_total",
        Help: "Background sweep passes executed",
    })

    // BookingsConfirmed counts bookings that reached COMPLETED/CONFIRMED.
    BookingsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
        Name: "booking_confirmed_total",
        Help: "Bookings confirmed after successful payment verification",
    })

    // VerificationFailures counts gateway verifications that did not
    // confirm the payment, by reported outcome.
    VerificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "booking_payment_verification_failures_total",
        Help: "Payment verifications that failed, by gateway outcome",
    }, []string{"outcome"})

    // RefundAlerts counts the loud operational conditions: a paid
    // booking whose seats were lost, or a refund the gateway could not
    // execute.  Anything here needs manual follow-up.
    RefundAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "booking_refund_alerts_total",
        Help: "Operational alerts requiring a manual refund follow-up",
    }, []string{"reason"})
)
