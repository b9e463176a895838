// Package payment defines the abstract payment gateway capability the
// booking service depends on, plus the HTTP client implementing it
// against the provider's API.  Only the server-to-server verification
// response is ever trusted; anything echoed through a client redirect
// is treated as a hint to call Verify, never as a status.
package payment

import "context"

// Verification statuses as the gateway reports them.  Anything the
// provider returns outside these three maps to StatusFailed.
const (
    StatusCompleted     = "COMPLETED"
    StatusFailed        = "FAILED"
    StatusUserCancelled = "USER_CANCELLED"
)

// Intent is the result of creating a payment intent: the provider's
// session identifier (our idempotency key from then on) and where to
// send the customer.
type Intent struct {
    IntentID    string
    RedirectURL string
}

// Verification is the provider's authoritative answer for one intent.
type Verification struct {
    Status          string
    ConfirmedAmount int64
    ProviderTxnID   string
}

// Gateway is the capability surface the reconciliation protocol needs.
// Implementations must be safe for concurrent use.
type Gateway interface {
    // CreateIntent opens a payment session for the amount (in cents)
    // and returns the redirect target.  orderRef is our reference,
    // echoed back by the provider for correlation.
    CreateIntent(ctx context.Context, amountCents int64, currency, orderRef, returnURL string) (*Intent, error)

    // VerifyByReference asks the provider, server-to-server, what
    // happened to the intent.  This is the only trusted status source.
    VerifyByReference(ctx context.Context, intentID string) (*Verification, error)

    // Refund reverses a completed payment by provider transaction id.
    Refund(ctx context.Context, providerTxnID string) error
}
