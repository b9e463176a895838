package payment

import (
    "bytes"
    "context"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "fmt"
    "net/http"
    "sort"
    "strconv"
    "time"
)

// Client talks to the payment provider over HTTP.  Requests carry a
// SHA-256 token computed over the alphabetically sorted request
// parameters plus the merchant secret, per the provider's signing
// scheme.
type Client struct {
    baseURL    string
    merchantID string
    secret     string
    httpClient *http.Client
}

// ClientConfig configures the provider connection.
type ClientConfig struct {
    BaseURL    string
    MerchantID string
    Secret     string
    Timeout    time.Duration
}

// NewClient builds a gateway client.  Timeout defaults to 15 seconds.
func NewClient(cfg ClientConfig) *Client {
    if cfg.Timeout == 0 {
        cfg.Timeout = 15 * time.Second
    }
    return &Client{
        baseURL:    cfg.BaseURL,
        merchantID: cfg.MerchantID,
        secret:     cfg.Secret,
        httpClient: &http.Client{Timeout: cfg.Timeout},
    }
}

var _ Gateway = (*Client)(nil)

type initRequest struct {
    MerchantID string `json:"merchantId"`
    Token      string `json:"token"`
    Amount     int64  `json:"amount"`
    Currency   string `json:"currency"`
    OrderRef   string `json:"orderRef"`
    ReturnURL  string `json:"returnUrl,omitempty"`
}

type initResponse struct {
    Success    bool   `json:"success"`
    IntentID   string `json:"intentId"`
    PaymentURL string `json:"paymentUrl"`
    Status     string `json:"status"`
}

type checkRequest struct {
    MerchantID string `json:"merchantId"`
    Token      string `json:"token"`
    IntentID   string `json:"intentId"`
}

type checkResponse struct {
    Success       bool   `json:"success"`
    Status        string `json:"status"`
    Amount        int64  `json:"amount"`
    TransactionID string `json:"transactionId"`
}

type refundRequest struct {
    MerchantID    string `json:"merchantId"`
    Token         string `json:"token"`
    TransactionID string `json:"transactionId"`
}

type refundResponse struct {
    Success bool   `json:"success"`
    Detail  string `json:"detail"`
}

// token signs the request: values of the given parameters plus the
// merchant credentials are concatenated in alphabetical key order and
// hashed with SHA-256.
func (c *Client) token(params map[string]string) string {
    params["MerchantId"] = c.merchantID
    params["Secret"] = c.secret

    keys := make([]string, 0, len(params))
    for k := range params {
        keys = append(keys, k)
    }
    sort.Strings(keys)

    var payload string
    for _, k := range keys {
        payload += params[k]
    }
    sum := sha256.Sum256([]byte(payload))
    return hex.EncodeToString(sum[:])
}

// CreateIntent implements Gateway.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, currency, orderRef, returnURL string) (*Intent, error) {
    req := initRequest{
        MerchantID: c.merchantID,
        Token: c.token(map[string]string{
            "Amount":   strconv.FormatInt(amountCents, 10),
            "Currency": currency,
            "OrderRef": orderRef,
        }),
        Amount:    amountCents,
        Currency:  currency,
        OrderRef:  orderRef,
        ReturnURL: returnURL,
    }
    var resp initResponse
    if err := c.post(ctx, "/api/v1/intents", req, &resp); err != nil {
        return nil, fmt.Errorf("create intent: %w", err)
    }
    if !resp.Success || resp.IntentID == "" {
        return nil, fmt.Errorf("create intent: provider rejected request (status=%s)", resp.Status)
    }
    return &Intent{IntentID: resp.IntentID, RedirectURL: resp.PaymentURL}, nil
}

// VerifyByReference implements Gateway.
func (c *Client) VerifyByReference(ctx context.Context, intentID string) (*Verification, error) {
    req := checkRequest{
        MerchantID: c.merchantID,
        Token:      c.token(map[string]string{"IntentId": intentID}),
        IntentID:   intentID,
    }
    var resp checkResponse
    if err := c.post(ctx, "/api/v1/intents/check", req, &resp); err != nil {
        return nil, fmt.Errorf("verify payment: %w", err)
    }
    if !resp.Success {
        return nil, fmt.Errorf("verify payment: provider rejected check for %s", intentID)
    }
    return &Verification{
        Status:          normalizeStatus(resp.Status),
        ConfirmedAmount: resp.Amount,
        ProviderTxnID:   resp.TransactionID,
    }, nil
}

// Refund implements Gateway.
func (c *Client) Refund(ctx context.Context, providerTxnID string) error {
    req := refundRequest{
        MerchantID:    c.merchantID,
        Token:         c.token(map[string]string{"TransactionId": providerTxnID}),
        TransactionID: providerTxnID,
    }
    var resp refundResponse
    if err := c.post(ctx, "/api/v1/refunds", req, &resp); err != nil {
        return fmt.Errorf("refund: %w", err)
    }
    if !resp.Success {
        return fmt.Errorf("refund: provider declined transaction %s: %s", providerTxnID, resp.Detail)
    }
    return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
    payload, err := json.Marshal(body)
    if err != nil {
        return fmt.Errorf("marshal request: %w", err)
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
    if err != nil {
        return err
    }
    req.Header.Set("Content-Type", "application/json")

    resp, err := c.httpClient.Do(req)
    if err != nil {
        return err
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
    }
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        return fmt.Errorf("decode response: %w", err)
    }
    return nil
}

// normalizeStatus maps the provider's status vocabulary onto the three
// states the reconciliation protocol understands.  Unknown values are
// conservative failures: the caller compensates rather than guesses.
func normalizeStatus(s string) string {
    switch s {
    case "COMPLETED", "CONFIRMED", "PAID":
        return StatusCompleted
    case "CANCELLED", "CANCELLED_BY_USER", "USER_CANCELLED":
        return StatusUserCancelled
    default:
        return StatusFailed
    }
}
