package payment

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sanctum-app/backend-sanctum/internal/submission"
)

func TestServiceUnknownProvider(t *testing.T) {
	svc := &Service{Providers: map[string]Provider{}, Logger: zerolog.Nop()}

	_, err := svc.CreateOrder(context.Background(), "mpesa", submission.Request{})
	require.ErrorIs(t, err, ErrUnknownProvider)

	_, err = svc.Capture(context.Background(), "mpesa", "order-1")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestServiceProviderLookupIsCaseInsensitive(t *testing.T) {
	paypal := &fakeProvider{name: ProviderPayPal}
	svc := &Service{Providers: map[string]Provider{ProviderPayPal: paypal}, Logger: zerolog.Nop()}

	got, err := svc.Provider(" PayPal ")
	require.NoError(t, err)
	require.Same(t, Provider(paypal), got)
}

func TestServiceCaptureRequiresOrderID(t *testing.T) {
	paypal := &fakeProvider{name: ProviderPayPal}
	svc := &Service{Providers: map[string]Provider{ProviderPayPal: paypal}, Logger: zerolog.Nop()}

	_, err := svc.Capture(context.Background(), ProviderPayPal, "   ")
	require.Error(t, err)
	require.Zero(t, paypal.captureCalls)
}

func TestServiceDispatch(t *testing.T) {
	paypal := &fakeProvider{
		name:    ProviderPayPal,
		handle:  OrderHandle{OrderID: "ORDER-1", ApprovalURL: "https://paypal.example/approve"},
		capture: CaptureResult{Success: true, Status: StatusCompleted},
	}
	stripe := &fakeProvider{name: ProviderStripe, handle: OrderHandle{SessionID: "cs_1"}}
	svc := &Service{
		Providers: map[string]Provider{ProviderPayPal: paypal, ProviderStripe: stripe},
		Logger:    zerolog.Nop(),
	}

	req, err := submission.Parse("secret", "a secret", "")
	require.NoError(t, err)

	handle, err := svc.CreateOrder(context.Background(), ProviderPayPal, req)
	require.NoError(t, err)
	require.Equal(t, "ORDER-1", handle.OrderID)
	require.Equal(t, 1, paypal.createCalls)
	require.Zero(t, stripe.createCalls)

	result, err := svc.Capture(context.Background(), ProviderPayPal, "ORDER-1")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "ORDER-1", paypal.lastOrderID)
}
