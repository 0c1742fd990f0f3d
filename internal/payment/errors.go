package payment

import (
	"errors"
	"fmt"
)

// ErrNoApprovalURL is returned when a provider accepts an order but the
// response carries no hosted-checkout link. Proceeding with an empty redirect
// would strand the payer, so this is a hard failure.
var ErrNoApprovalURL = errors.New("no approval url in order response")

// AuthError indicates the provider rejected our credentials or the token
// endpoint was unreachable. Callers must not proceed to order creation.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// OrderError wraps a provider-side order creation rejection. Message carries
// the provider's own error text; it is logged, never shown to clients.
type OrderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *OrderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: order creation failed: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: order creation failed: %v", e.Provider, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }

// CaptureError wraps a provider-side capture rejection, including attempts to
// capture an order that is already captured, expired or voided.
type CaptureError struct {
	Provider string
	Message  string
	Err      error
}

func (e *CaptureError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: capture failed: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: capture failed: %v", e.Provider, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
