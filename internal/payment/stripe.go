package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/sanctum-app/backend-sanctum/internal/submission"
)

// Stripe integrates hosted Checkout Sessions. There is no separate approval
// and capture step: Stripe hosts the checkout, and CaptureOrder verifies the
// resulting session server-side instead of trusting the redirect alone.
type Stripe struct {
	API           *client.API
	PublicBaseURL string
	ProductName   string
	Logger        zerolog.Logger
}

// NewStripe builds the adapter around an SDK client bound to the secret key.
func NewStripe(secretKey, publicBaseURL string, logger zerolog.Logger) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{
		API:           api,
		PublicBaseURL: publicBaseURL,
		ProductName:   "Tell Me a Secret",
		Logger:        logger,
	}
}

// Name implements Provider.
func (s *Stripe) Name() string { return ProviderStripe }

// Authenticate is a no-op: the SDK authenticates every call with the static
// secret key, so there is no token to fetch or cache.
func (s *Stripe) Authenticate(_ context.Context) (AccessToken, error) {
	return AccessToken{Provider: ProviderStripe, ObtainedAt: time.Now()}, nil
}

// CreateOrder opens a Checkout Session for the submission and returns its id.
// The session metadata carries the content type and a truncated excerpt of
// the raw content; whether that is acceptable is a deployment decision.
func (s *Stripe) CreateOrder(ctx context.Context, req submission.Request) (OrderHandle, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyUSD)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(s.ProductName),
					Description: stripe.String(fmt.Sprintf("Digital ritual - your %s will be sealed forever", req.ContentType)),
				},
				UnitAmount: stripe.Int64(req.AmountCents()),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(fmt.Sprintf("%s/success?type=%s&session_id={CHECKOUT_SESSION_ID}", s.PublicBaseURL, req.ContentType)),
		CancelURL:  stripe.String(s.PublicBaseURL + "/"),
	}
	params.Context = ctx
	params.AddMetadata("type", string(req.ContentType))
	params.AddMetadata("secret", req.Excerpt(500))

	session, err := s.API.CheckoutSessions.New(params)
	if err != nil {
		s.logStripeError("checkout session creation failed", err)
		return OrderHandle{}, &OrderError{Provider: ProviderStripe, Err: err}
	}

	return OrderHandle{
		OrderID:     session.ID,
		SessionID:   session.ID,
		ContentType: req.ContentType,
		Amount:      req.Amount,
		CreatedAt:   time.Now(),
	}, nil
}

// CaptureOrder retrieves the session and reports COMPLETED only when Stripe
// itself says the payment settled.
func (s *Stripe) CaptureOrder(ctx context.Context, sessionID string) (CaptureResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := s.API.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		s.logStripeError("checkout session lookup failed", err)
		return CaptureResult{}, &CaptureError{Provider: ProviderStripe, Err: err}
	}

	status := StatusPending
	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		status = StatusCompleted
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		status = StatusPending
	}

	return CaptureResult{
		Success:   status == StatusCompleted,
		CaptureID: session.ID,
		Status:    status,
		Amount: Amount{
			Value:        decimal.NewFromInt(session.AmountTotal).Shift(-2).StringFixed(2),
			CurrencyCode: strings.ToUpper(string(session.Currency)),
		},
	}, nil
}

func (s *Stripe) logStripeError(msg string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		s.Logger.Error().Str("code", string(stripeErr.Code)).Str("provider_message", stripeErr.Msg).Msg(msg)
		return
	}
	s.Logger.Error().Err(err).Msg(msg)
}
