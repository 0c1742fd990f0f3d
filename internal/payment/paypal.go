package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sanctum-app/backend-sanctum/internal/outbound"
	"github.com/sanctum-app/backend-sanctum/internal/submission"
)

// PayPal integrates the Orders v2 API: client-credentials OAuth2, order
// creation with a hosted approval link, and an explicit capture step.
type PayPal struct {
	ClientID      string
	ClientSecret  string
	BaseURL       string
	PublicBaseURL string
	BrandName     string
	Client        *outbound.Client
	Tokens        *TokenCache
	Logger        zerolog.Logger
}

// Name implements Provider.
func (p *PayPal) Name() string { return ProviderPayPal }

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	Amount      paypalMoney `json:"amount"`
	Description string      `json:"description,omitempty"`
	CustomID    string      `json:"custom_id,omitempty"`
}

type paypalApplicationContext struct {
	ReturnURL          string `json:"return_url"`
	CancelURL          string `json:"cancel_url"`
	BrandName          string `json:"brand_name,omitempty"`
	UserAction         string `json:"user_action,omitempty"`
	ShippingPreference string `json:"shipping_preference,omitempty"`
}

type paypalOrderRequest struct {
	Intent             string                   `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit     `json:"purchase_units"`
	ApplicationContext paypalApplicationContext `json:"application_context"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

type paypalErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type paypalCaptureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments *struct {
			Captures []struct {
				ID     string      `json:"id"`
				Status string      `json:"status"`
				Amount paypalMoney `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// Authenticate obtains (or reuses) a client-credentials bearer token.
func (p *PayPal) Authenticate(ctx context.Context) (AccessToken, error) {
	if token, ok := p.Tokens.Get(ProviderPayPal); ok {
		return token, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(p.ClientID + ":" + p.ClientSecret))
	form := url.Values{"grant_type": []string{"client_credentials"}}
	req, err := http.NewRequest(http.MethodPost, p.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, &AuthError{Provider: ProviderPayPal, Err: err}
	}
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return AccessToken{}, &AuthError{Provider: ProviderPayPal, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AccessToken{}, &AuthError{Provider: ProviderPayPal, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.Logger.Error().Int("status", resp.StatusCode).Msg("paypal token endpoint rejected credentials")
		return AccessToken{}, &AuthError{Provider: ProviderPayPal, Err: fmt.Errorf("token endpoint returned %d", resp.StatusCode)}
	}
	var parsed paypalTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return AccessToken{}, &AuthError{Provider: ProviderPayPal, Err: err}
	}
	if parsed.AccessToken == "" {
		return AccessToken{}, &AuthError{Provider: ProviderPayPal, Err: fmt.Errorf("empty access token")}
	}

	token := AccessToken{
		Value:      parsed.AccessToken,
		Provider:   ProviderPayPal,
		ObtainedAt: time.Now(),
		ExpiresIn:  time.Duration(parsed.ExpiresIn) * time.Second,
	}
	p.Tokens.Put(token)
	return token, nil
}

// CreateOrder submits an intent=CAPTURE order and returns the approval link
// the payer must visit. A success response without an approval link fails
// with ErrNoApprovalURL rather than yielding an empty redirect.
func (p *PayPal) CreateOrder(ctx context.Context, req submission.Request) (OrderHandle, error) {
	token, err := p.Authenticate(ctx)
	if err != nil {
		return OrderHandle{}, err
	}

	order := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			Amount:      paypalMoney{CurrencyCode: "USD", Value: req.Amount},
			Description: fmt.Sprintf("%s - %s", p.brand(), req.Title()),
			CustomID:    fmt.Sprintf("%s-%d", req.ContentType, time.Now().UnixMilli()),
		}},
		ApplicationContext: paypalApplicationContext{
			ReturnURL:          fmt.Sprintf("%s/success?type=%s&amount=%s", p.PublicBaseURL, req.ContentType, req.Amount),
			CancelURL:          p.PublicBaseURL + "/",
			BrandName:          p.brand(),
			UserAction:         "PAY_NOW",
			ShippingPreference: "NO_SHIPPING",
		},
	}

	status, body, err := p.postJSON(ctx, p.BaseURL+"/v2/checkout/orders", token.Value, order)
	if err != nil {
		return OrderHandle{}, &OrderError{Provider: ProviderPayPal, Err: err}
	}
	if status < 200 || status > 299 {
		message := paypalErrorMessage(body)
		p.Logger.Error().Int("status", status).Str("provider_message", message).Msg("paypal order creation failed")
		return OrderHandle{}, &OrderError{Provider: ProviderPayPal, Message: message, Err: fmt.Errorf("order endpoint returned %d", status)}
	}

	var parsed paypalOrderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return OrderHandle{}, &OrderError{Provider: ProviderPayPal, Err: err}
	}
	approval := ""
	for _, link := range parsed.Links {
		if link.Rel == "approve" {
			approval = link.Href
			break
		}
	}
	if approval == "" {
		return OrderHandle{}, &OrderError{Provider: ProviderPayPal, Err: ErrNoApprovalURL}
	}

	return OrderHandle{
		OrderID:     parsed.ID,
		ApprovalURL: approval,
		ContentType: req.ContentType,
		Amount:      req.Amount,
		CreatedAt:   time.Now(),
	}, nil
}

// CaptureOrder finalises a previously approved order. Capturing an order that
// is already captured, expired or voided surfaces a CaptureError carrying the
// provider's message; it is never a silent success.
func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (CaptureResult, error) {
	token, err := p.Authenticate(ctx)
	if err != nil {
		return CaptureResult{}, err
	}

	captureURL := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", p.BaseURL, url.PathEscape(orderID))
	status, body, err := p.postJSON(ctx, captureURL, token.Value, nil)
	if err != nil {
		return CaptureResult{}, &CaptureError{Provider: ProviderPayPal, Err: err}
	}
	if status < 200 || status > 299 {
		message := paypalErrorMessage(body)
		p.Logger.Error().Int("status", status).Str("provider_message", message).Str("order_id", orderID).Msg("paypal capture failed")
		return CaptureResult{}, &CaptureError{Provider: ProviderPayPal, Message: message, Err: fmt.Errorf("capture endpoint returned %d", status)}
	}

	var parsed paypalCaptureResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return CaptureResult{}, &CaptureError{Provider: ProviderPayPal, Err: err}
	}

	result := CaptureResult{
		Success:   true,
		CaptureID: parsed.ID,
		Status:    parsed.Status,
	}
	// The capture amount sits several optional levels deep; a sparse response
	// yields an empty amount, not a panic.
	if len(parsed.PurchaseUnits) > 0 {
		if payments := parsed.PurchaseUnits[0].Payments; payments != nil && len(payments.Captures) > 0 {
			capture := payments.Captures[0]
			result.Amount = Amount{Value: capture.Amount.Value, CurrencyCode: capture.Amount.CurrencyCode}
			if capture.ID != "" && result.CaptureID == "" {
				result.CaptureID = capture.ID
			}
		}
	}
	return result, nil
}

func (p *PayPal) postJSON(ctx context.Context, target, bearer string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(http.MethodPost, target, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (p *PayPal) brand() string {
	if strings.TrimSpace(p.BrandName) != "" {
		return p.BrandName
	}
	return "Tell Me a Secret"
}

func paypalErrorMessage(body []byte) string {
	var parsed paypalErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Message
}
