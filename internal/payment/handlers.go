package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sanctum-app/backend-sanctum/internal/common"
	"github.com/sanctum-app/backend-sanctum/internal/submission"
)

// Handler exposes the public payment endpoints. Validation failures surface
// verbatim with a 400; provider failures map to a generic 500 with the
// detailed cause logged server-side only.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

type createOrderReq struct {
	Content string `json:"content"`
	Type    string `json:"type"`
	Amount  string `json:"amount"`
}

type captureOrderReq struct {
	OrderID string `json:"orderID"`
}

type secretReq struct {
	Secret string `json:"secret"`
}

// PayPalCreateOrder handles POST /api/paypal/create-order.
func (h *Handler) PayPalCreateOrder(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "Payment processing failed")
		return
	}
	var body createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req, err := submission.Parse(body.Type, body.Content, body.Amount)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	handle, err := h.Svc.CreateOrder(r.Context(), ProviderPayPal, req)
	if err != nil {
		if errors.Is(err, ErrNoApprovalURL) {
			common.JSONError(w, http.StatusInternalServerError, "No payment URL received from PayPal")
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "Payment processing failed")
		return
	}

	common.JSON(w, http.StatusOK, map[string]string{
		"orderID":     handle.OrderID,
		"approvalUrl": handle.ApprovalURL,
	})
}

// PayPalCaptureOrder handles POST /api/paypal/capture-order.
func (h *Handler) PayPalCaptureOrder(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "Payment capture failed")
		return
	}
	var body captureOrderReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(body.OrderID) == "" {
		common.JSONError(w, http.StatusBadRequest, "Order ID is required")
		return
	}

	result, err := h.Svc.Capture(r.Context(), ProviderPayPal, body.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "Payment capture failed")
		return
	}
	common.JSON(w, http.StatusOK, result)
}

// StripeCheckout handles POST /api/stripe/checkout.
func (h *Handler) StripeCheckout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "Payment processing failed")
		return
	}
	var body secretReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Secret) == "" {
		common.JSONError(w, http.StatusBadRequest, "Secret is required")
		return
	}
	req, err := submission.Parse(string(submission.TypeSecret), body.Secret, "")
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	handle, err := h.Svc.CreateOrder(r.Context(), ProviderStripe, req)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "Payment processing failed")
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"sessionId": handle.SessionID})
}

// PesapalCheckout handles POST /api/pesapal/checkout.
func (h *Handler) PesapalCheckout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "Payment processing failed")
		return
	}
	var body secretReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Secret) == "" {
		common.JSONError(w, http.StatusBadRequest, "Secret is required")
		return
	}
	req, err := submission.Parse(string(submission.TypeSecret), body.Secret, "")
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	handle, err := h.Svc.CreateOrder(r.Context(), ProviderPesapal, req)
	if err != nil {
		common.JSONErrorDetails(w, http.StatusInternalServerError,
			"Payment processing failed",
			"Please check your Pesapal credentials and try again")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"order_tracking_id":  handle.OrderID,
		"merchant_reference": handle.MerchantReference,
		"redirect_url":       handle.ApprovalURL,
		"orderId":            handle.MerchantReference,
	})
}

// PesapalStatus handles GET /api/pesapal/status. It exists for manual
// confirmation and external reconciliation jobs.
func (h *Handler) PesapalStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "Payment processing failed")
		return
	}
	trackingID := strings.TrimSpace(r.URL.Query().Get("orderTrackingId"))
	if trackingID == "" {
		common.JSONError(w, http.StatusBadRequest, "Order tracking ID is required")
		return
	}
	result, err := h.Svc.Capture(r.Context(), ProviderPesapal, trackingID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "Payment status check failed")
		return
	}
	common.JSON(w, http.StatusOK, result)
}

// PesapalIPN handles GET /api/pesapal/ipn, the registered notification
// endpoint. Pesapal expects the acknowledgement echoed back with status 200.
func (h *Handler) PesapalIPN(w http.ResponseWriter, r *http.Request) {
	trackingID := strings.TrimSpace(r.URL.Query().Get("OrderTrackingId"))
	merchantRef := strings.TrimSpace(r.URL.Query().Get("OrderMerchantReference"))
	if trackingID == "" {
		common.JSONError(w, http.StatusBadRequest, "Order tracking ID is required")
		return
	}

	ack := map[string]any{
		"orderNotificationType":  "IPNCHANGE",
		"orderTrackingId":        trackingID,
		"orderMerchantReference": merchantRef,
		"status":                 200,
	}
	if h != nil && h.Svc != nil {
		if result, err := h.Svc.Capture(r.Context(), ProviderPesapal, trackingID); err == nil {
			h.Logger.Info().
				Str("order_tracking_id", trackingID).
				Str("merchant_reference", merchantRef).
				Str("status", result.Status).
				Msg("pesapal ipn processed")
		} else {
			h.Logger.Error().Err(err).Str("order_tracking_id", trackingID).Msg("pesapal ipn status fetch failed")
			ack["status"] = 500
		}
	}
	common.JSON(w, http.StatusOK, ack)
}
