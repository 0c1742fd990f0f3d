package payment

import (
	"net/http"
	"strings"

	"github.com/sanctum-app/backend-sanctum/internal/common"
)

// Outcome is the common terminal contract the three payment flows converge
// on: a released submission is either confirmed by its provider or it is not.
type Outcome struct {
	Status      string `json:"status"`
	Amount      string `json:"amount,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Outcome statuses.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Reconcile handles GET /api/success, the callback target every provider
// redirects to. It maps the returned identifier back to the owning adapter's
// capture call; a completed capture is the only path to a success outcome.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSON(w, http.StatusOK, Outcome{Status: OutcomeError})
		return
	}

	query := r.URL.Query()
	contentType := strings.TrimSpace(query.Get("type"))
	if contentType == "" {
		contentType = "secret"
	}
	amount := strings.TrimSpace(query.Get("amount"))

	pesapalRef := query.Get("OrderTrackingId")
	if strings.TrimSpace(pesapalRef) == "" {
		pesapalRef = query.Get("order")
	}
	provider, orderID := resolveCallback(query.Get("token"), query.Get("session_id"), pesapalRef)
	if provider == "" {
		h.Logger.Warn().Str("path", r.URL.Path).Msg("callback without a provider token")
		common.JSON(w, http.StatusOK, Outcome{Status: OutcomeError, ContentType: contentType})
		return
	}

	result, err := h.Svc.Capture(r.Context(), provider, orderID)
	if err != nil || !result.Success {
		common.JSON(w, http.StatusOK, Outcome{Status: OutcomeError, ContentType: contentType})
		return
	}

	resolved := result.Amount.Value
	if resolved == "" {
		resolved = amount
	}
	common.JSON(w, http.StatusOK, Outcome{
		Status:      OutcomeSuccess,
		Amount:      resolved,
		ContentType: contentType,
	})
}

// resolveCallback maps the provider-specific callback parameter to the owning
// adapter: PayPal returns ?token=, Stripe substitutes ?session_id= and
// Pesapal appends ?OrderTrackingId= to the callback URL (falling back to the
// ?order= merchant reference we embedded when the tracking id is absent).
func resolveCallback(token, sessionID, order string) (provider, orderID string) {
	switch {
	case strings.TrimSpace(sessionID) != "":
		return ProviderStripe, strings.TrimSpace(sessionID)
	case strings.TrimSpace(token) != "":
		return ProviderPayPal, strings.TrimSpace(token)
	case strings.TrimSpace(order) != "":
		return ProviderPesapal, strings.TrimSpace(order)
	default:
		return "", ""
	}
}
