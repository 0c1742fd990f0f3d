package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sanctum-app/backend-sanctum/internal/ratelimit"
)

func newHandler(t *testing.T, formatted string) ratelimit.Handler {
	t.Helper()
	lim, err := ratelimit.New(formatted)
	require.NoError(t, err)
	return ratelimit.Handler{
		Limiter: lim,
		Config: ratelimit.Config{Key: func(r *http.Request) string {
			return r.Header.Get("X-Test-Key")
		}},
	}
}

func doRequest(mw http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/paypal/create-order", nil)
	req.Header.Set("X-Test-Key", key)
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)
	return rr
}

func TestMiddlewareAllowsWithinLimit(t *testing.T) {
	h := newHandler(t, "2-M")
	mw := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := doRequest(mw, "1.2.3.4")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	second := doRequest(mw, "1.2.3.4")
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
}

func TestMiddlewareBlocksOverLimit(t *testing.T) {
	h := newHandler(t, "1-M")
	mw := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	require.Equal(t, http.StatusOK, doRequest(mw, "1.2.3.4").Code)

	blocked := doRequest(mw, "1.2.3.4")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.NotEmpty(t, blocked.Header().Get("Retry-After"))

	// Another key is unaffected.
	require.Equal(t, http.StatusOK, doRequest(mw, "5.6.7.8").Code)
}

func TestMiddlewarePassesThroughWithoutLimiter(t *testing.T) {
	h := ratelimit.Handler{}
	mw := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	require.Equal(t, http.StatusOK, doRequest(mw, "1.2.3.4").Code)
}
