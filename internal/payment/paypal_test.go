package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sanctum-app/backend-sanctum/internal/outbound"
	"github.com/sanctum-app/backend-sanctum/internal/submission"
)

func newPayPalTest(t *testing.T, handler http.Handler) *PayPal {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &PayPal{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		BaseURL:       srv.URL,
		PublicBaseURL: "https://sanctum.example",
		Client:        outbound.NewClient(2*time.Second, nil),
		Tokens:        NewTokenCache(5 * time.Minute),
		Logger:        zerolog.Nop(),
	}
}

func paypalTokenHandler(calls *int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}
}

func TestPayPalCreateOrder(t *testing.T) {
	var captured paypalOrderRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", paypalTokenHandler(nil))
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "ORDER-1",
			"status": "CREATED",
			"links": []map[string]string{
				{"href": "https://paypal.example/self", "rel": "self"},
				{"href": "https://paypal.example/approve", "rel": "approve"},
			},
		})
	})

	p := newPayPalTest(t, mux)
	req, err := submission.Parse("confession", "my confession", "2.50")
	require.NoError(t, err)

	handle, err := p.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "ORDER-1", handle.OrderID)
	require.Equal(t, "https://paypal.example/approve", handle.ApprovalURL)

	require.Equal(t, "CAPTURE", captured.Intent)
	require.Len(t, captured.PurchaseUnits, 1)
	require.Equal(t, "2.50", captured.PurchaseUnits[0].Amount.Value)
	require.Equal(t, "USD", captured.PurchaseUnits[0].Amount.CurrencyCode)
	require.Equal(t, "https://sanctum.example/success?type=confession&amount=2.50", captured.ApplicationContext.ReturnURL)
	require.Equal(t, "PAY_NOW", captured.ApplicationContext.UserAction)
	require.Equal(t, "NO_SHIPPING", captured.ApplicationContext.ShippingPreference)
}

func TestPayPalCreateOrderWithoutApprovalLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", paypalTokenHandler(nil))
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "ORDER-2", "status": "CREATED"})
	})

	p := newPayPalTest(t, mux)
	req, err := submission.Parse("secret", "a secret", "")
	require.NoError(t, err)

	_, err = p.CreateOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrNoApprovalURL)
	var orderErr *OrderError
	require.ErrorAs(t, err, &orderErr)
	require.Equal(t, ProviderPayPal, orderErr.Provider)
}

func TestPayPalCreateOrderProviderRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", paypalTokenHandler(nil))
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name":    "UNPROCESSABLE_ENTITY",
			"message": "The requested action could not be performed.",
		})
	})

	p := newPayPalTest(t, mux)
	req, err := submission.Parse("wish", "a wish", "")
	require.NoError(t, err)

	_, err = p.CreateOrder(context.Background(), req)
	var orderErr *OrderError
	require.ErrorAs(t, err, &orderErr)
	require.Equal(t, "The requested action could not be performed.", orderErr.Message)
}

func TestPayPalCaptureOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", paypalTokenHandler(nil))
	mux.HandleFunc("/v2/checkout/orders/ORDER-3/capture", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "ORDER-3",
			"status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]any{{
						"id":     "CAP-1",
						"status": "COMPLETED",
						"amount": map[string]string{"value": "3.00", "currency_code": "USD"},
					}},
				},
			}},
		})
	})

	p := newPayPalTest(t, mux)
	result, err := p.CaptureOrder(context.Background(), "ORDER-3")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "ORDER-3", result.CaptureID)
	require.Equal(t, "COMPLETED", result.Status)
	require.Equal(t, "3.00", result.Amount.Value)
	require.Equal(t, "USD", result.Amount.CurrencyCode)
}

func TestPayPalCaptureOrderSparseResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", paypalTokenHandler(nil))
	mux.HandleFunc("/v2/checkout/orders/ORDER-4/capture", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "ORDER-4", "status": "COMPLETED"})
	})

	p := newPayPalTest(t, mux)
	result, err := p.CaptureOrder(context.Background(), "ORDER-4")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Empty(t, result.Amount.Value)
}

func TestPayPalCaptureAlreadyCaptured(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", paypalTokenHandler(nil))
	mux.HandleFunc("/v2/checkout/orders/ORDER-5/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name":    "UNPROCESSABLE_ENTITY",
			"message": "Order already captured.",
		})
	})

	p := newPayPalTest(t, mux)
	_, err := p.CaptureOrder(context.Background(), "ORDER-5")
	var captureErr *CaptureError
	require.ErrorAs(t, err, &captureErr)
	require.Equal(t, "Order already captured.", captureErr.Message)
}

func TestPayPalAuthenticateReusesCachedToken(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", paypalTokenHandler(&tokenCalls))
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "ORDER-6",
			"links": []map[string]string{{"href": "https://paypal.example/approve", "rel": "approve"}},
		})
	})

	p := newPayPalTest(t, mux)
	req, err := submission.Parse("secret", "cached token secret", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = p.CreateOrder(context.Background(), req)
		require.NoError(t, err)
	}
	require.Equal(t, 1, tokenCalls)
}

func TestPayPalAuthenticateRejectedCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
	})

	p := newPayPalTest(t, mux)
	_, err := p.Authenticate(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, ProviderPayPal, authErr.Provider)
	require.False(t, errors.Is(err, ErrNoApprovalURL))
}
