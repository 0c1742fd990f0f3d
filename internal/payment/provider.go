package payment

import (
	"context"
	"time"

	"github.com/sanctum-app/backend-sanctum/internal/submission"
)

// Provider name tags used for dispatch, logging and metric labels.
const (
	ProviderPayPal  = "paypal"
	ProviderStripe  = "stripe"
	ProviderPesapal = "pesapal"
)

// AccessToken is a provider-issued bearer credential. Tokens are cached
// process-wide and refreshed when their lifetime lapses.
type AccessToken struct {
	Value      string
	Provider   string
	ObtainedAt time.Time
	ExpiresIn  time.Duration
}

// OrderHandle identifies a provider-side order awaiting payer approval. It is
// created at order-submission time and consumed exactly once at capture time;
// nothing durable retains it beyond the redirect round-trip.
type OrderHandle struct {
	OrderID           string
	MerchantReference string
	ApprovalURL       string
	SessionID         string
	ContentType       submission.ContentType
	Amount            string
	CreatedAt         time.Time
}

// Amount mirrors the provider money shape surfaced to API clients.
type Amount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code,omitempty"`
}

// Capture statuses reported across providers.
const (
	StatusCompleted = "COMPLETED"
	StatusPending   = "PENDING"
	StatusFailed    = "FAILED"
)

// CaptureResult is the terminal outcome of a payment order.
type CaptureResult struct {
	Success   bool   `json:"success"`
	CaptureID string `json:"captureID,omitempty"`
	Status    string `json:"status,omitempty"`
	Amount    Amount `json:"amount"`
}

// Provider abstracts a payment provider's order lifecycle: authenticate,
// create an order, and later capture (or confirm) it from the callback.
type Provider interface {
	Name() string
	Authenticate(ctx context.Context) (AccessToken, error)
	CreateOrder(ctx context.Context, req submission.Request) (OrderHandle, error)
	CaptureOrder(ctx context.Context, orderID string) (CaptureResult, error)
}
