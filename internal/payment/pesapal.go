package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sanctum-app/backend-sanctum/internal/outbound"
	"github.com/sanctum-app/backend-sanctum/internal/submission"
)

// Pesapal integrates the Pesapal v3 API: bearer-token auth, IPN registration,
// order submission, and transaction status lookup. Submissions are anonymous
// by design, so the mandatory billing address is filled with placeholders.
type Pesapal struct {
	ConsumerKey    string
	ConsumerSecret string
	BaseURL        string
	PublicBaseURL  string
	// IPNID is a pre-registered notification id. When empty, the adapter
	// registers its own IPN endpoint on first use.
	IPNID  string
	Client *outbound.Client
	Tokens *TokenCache
	Logger zerolog.Logger

	ipnMu sync.Mutex
	ipnID string
}

// Name implements Provider.
func (p *Pesapal) Name() string { return ProviderPesapal }

type pesapalTokenResponse struct {
	Token      string `json:"token"`
	ExpiryDate string `json:"expiryDate"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type pesapalBillingAddress struct {
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number"`
	CountryCode  string `json:"country_code"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Line1        string `json:"line_1,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
}

type pesapalOrderRequest struct {
	ID             string                `json:"id"`
	Currency       string                `json:"currency"`
	Amount         float64               `json:"amount"`
	Description    string                `json:"description"`
	CallbackURL    string                `json:"callback_url"`
	NotificationID string                `json:"notification_id"`
	BillingAddress pesapalBillingAddress `json:"billing_address"`
}

type pesapalOrderResponse struct {
	OrderTrackingID   string `json:"order_tracking_id"`
	MerchantReference string `json:"merchant_reference"`
	RedirectURL       string `json:"redirect_url"`
	Status            string `json:"status"`
	Error             *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type pesapalIPNResponse struct {
	IPNID string `json:"ipn_id"`
	URL   string `json:"url"`
}

type pesapalStatusResponse struct {
	PaymentStatusDescription string  `json:"payment_status_description"`
	Amount                   float64 `json:"amount"`
	Currency                 string  `json:"currency"`
	ConfirmationCode         string  `json:"confirmation_code"`
	PaymentMethod            string  `json:"payment_method"`
	Message                  string  `json:"message"`
}

// Authenticate obtains (or reuses) a bearer token from /Auth/RequestToken.
func (p *Pesapal) Authenticate(ctx context.Context) (AccessToken, error) {
	if token, ok := p.Tokens.Get(ProviderPesapal); ok {
		return token, nil
	}

	payload := map[string]string{
		"consumer_key":    p.ConsumerKey,
		"consumer_secret": p.ConsumerSecret,
	}
	status, body, err := p.call(ctx, http.MethodPost, p.BaseURL+"/Auth/RequestToken", "", payload)
	if err != nil {
		return AccessToken{}, &AuthError{Provider: ProviderPesapal, Err: err}
	}
	if status < 200 || status > 299 {
		p.Logger.Error().Int("status", status).Msg("pesapal token endpoint rejected credentials")
		return AccessToken{}, &AuthError{Provider: ProviderPesapal, Err: fmt.Errorf("token endpoint returned %d", status)}
	}
	var parsed pesapalTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return AccessToken{}, &AuthError{Provider: ProviderPesapal, Err: err}
	}
	if parsed.Token == "" {
		return AccessToken{}, &AuthError{Provider: ProviderPesapal, Err: fmt.Errorf("empty token: %s", parsed.Message)}
	}

	token := AccessToken{
		Value:      parsed.Token,
		Provider:   ProviderPesapal,
		ObtainedAt: time.Now(),
		ExpiresIn:  tokenLifetime(parsed.ExpiryDate),
	}
	p.Tokens.Put(token)
	return token, nil
}

// RegisterIPN registers the given URL for GET notifications and returns the
// assigned notification id.
func (p *Pesapal) RegisterIPN(ctx context.Context, ipnURL string) (string, error) {
	token, err := p.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	payload := map[string]string{
		"url":                   ipnURL,
		"ipn_notification_type": "GET",
	}
	status, body, err := p.call(ctx, http.MethodPost, p.BaseURL+"/URLSetup/RegisterIPN", token.Value, payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("ipn registration returned %d", status)
	}
	var parsed pesapalIPNResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.IPNID == "" {
		return "", fmt.Errorf("ipn registration returned no id")
	}
	return parsed.IPNID, nil
}

// CreateOrder submits an order request and returns the hosted redirect URL.
// Order and merchant references are client-generated UUIDs.
func (p *Pesapal) CreateOrder(ctx context.Context, req submission.Request) (OrderHandle, error) {
	token, err := p.Authenticate(ctx)
	if err != nil {
		return OrderHandle{}, err
	}
	notificationID, err := p.notificationID(ctx)
	if err != nil {
		return OrderHandle{}, &OrderError{Provider: ProviderPesapal, Err: err}
	}

	orderID := uuid.NewString()
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return OrderHandle{}, &OrderError{Provider: ProviderPesapal, Err: err}
	}
	value, _ := amount.Float64()

	order := pesapalOrderRequest{
		ID:             orderID,
		Currency:       "USD",
		Amount:         value,
		Description:    fmt.Sprintf("Tell Me a Secret - %s Ritual", req.Title()),
		CallbackURL:    fmt.Sprintf("%s/success?type=%s&order=%s", p.PublicBaseURL, req.ContentType, orderID),
		NotificationID: notificationID,
		BillingAddress: anonymousBillingAddress(),
	}

	status, body, err := p.call(ctx, http.MethodPost, p.BaseURL+"/Transactions/SubmitOrderRequest", token.Value, order)
	if err != nil {
		return OrderHandle{}, &OrderError{Provider: ProviderPesapal, Err: err}
	}
	if status < 200 || status > 299 {
		p.Logger.Error().Int("status", status).Str("body", string(body)).Msg("pesapal order submission failed")
		return OrderHandle{}, &OrderError{Provider: ProviderPesapal, Message: strings.TrimSpace(string(body)), Err: fmt.Errorf("order endpoint returned %d", status)}
	}
	var parsed pesapalOrderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return OrderHandle{}, &OrderError{Provider: ProviderPesapal, Err: err}
	}
	if parsed.Error != nil && parsed.Error.Code != "" {
		p.Logger.Error().Str("code", parsed.Error.Code).Str("provider_message", parsed.Error.Message).Msg("pesapal order rejected")
		return OrderHandle{}, &OrderError{Provider: ProviderPesapal, Message: parsed.Error.Message, Err: fmt.Errorf("order rejected: %s", parsed.Error.Code)}
	}
	if parsed.RedirectURL == "" {
		return OrderHandle{}, &OrderError{Provider: ProviderPesapal, Err: ErrNoApprovalURL}
	}

	return OrderHandle{
		OrderID:           parsed.OrderTrackingID,
		MerchantReference: orderID,
		ApprovalURL:       parsed.RedirectURL,
		ContentType:       req.ContentType,
		Amount:            req.Amount,
		CreatedAt:         time.Now(),
	}, nil
}

// CaptureOrder confirms a transaction by polling GetTransactionStatus with
// the provider-assigned tracking id. It backs the IPN callback and manual
// reconciliation; the synchronous order path never calls it.
func (p *Pesapal) CaptureOrder(ctx context.Context, orderTrackingID string) (CaptureResult, error) {
	token, err := p.Authenticate(ctx)
	if err != nil {
		return CaptureResult{}, err
	}

	statusURL := fmt.Sprintf("%s/Transactions/GetTransactionStatus?orderTrackingId=%s", p.BaseURL, url.QueryEscape(orderTrackingID))
	status, body, err := p.call(ctx, http.MethodGet, statusURL, token.Value, nil)
	if err != nil {
		return CaptureResult{}, &CaptureError{Provider: ProviderPesapal, Err: err}
	}
	if status < 200 || status > 299 {
		p.Logger.Error().Int("status", status).Str("order_tracking_id", orderTrackingID).Msg("pesapal status check failed")
		return CaptureResult{}, &CaptureError{Provider: ProviderPesapal, Err: fmt.Errorf("status endpoint returned %d", status)}
	}
	var parsed pesapalStatusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return CaptureResult{}, &CaptureError{Provider: ProviderPesapal, Err: err}
	}

	mapped := mapPesapalStatus(parsed.PaymentStatusDescription)
	return CaptureResult{
		Success:   mapped == StatusCompleted,
		CaptureID: parsed.ConfirmationCode,
		Status:    mapped,
		Amount: Amount{
			Value:        decimal.NewFromFloat(parsed.Amount).StringFixed(2),
			CurrencyCode: parsed.Currency,
		},
	}, nil
}

// notificationID resolves the IPN id to attach to orders: the configured id,
// the previously registered one, or a fresh registration against our own IPN
// callback endpoint.
func (p *Pesapal) notificationID(ctx context.Context) (string, error) {
	if strings.TrimSpace(p.IPNID) != "" {
		return p.IPNID, nil
	}
	p.ipnMu.Lock()
	defer p.ipnMu.Unlock()
	if p.ipnID != "" {
		return p.ipnID, nil
	}
	registered, err := p.RegisterIPN(ctx, p.PublicBaseURL+"/api/pesapal/ipn")
	if err != nil {
		return "", fmt.Errorf("register ipn: %w", err)
	}
	p.ipnID = registered
	return registered, nil
}

func (p *Pesapal) call(ctx context.Context, method, target, bearer string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

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

// anonymousBillingAddress satisfies Pesapal's mandatory billing fields for a
// product that intentionally collects no identity.
func anonymousBillingAddress() pesapalBillingAddress {
	return pesapalBillingAddress{
		EmailAddress: "anonymous@tellmeasecret.com",
		PhoneNumber:  "+1234567890",
		CountryCode:  "US",
		FirstName:    "Anonymous",
		LastName:     "User",
		Line1:        "Digital Realm",
		City:         "Cyberspace",
		State:        "Virtual",
		PostalCode:   "00000",
	}
}

func mapPesapalStatus(description string) string {
	switch strings.ToLower(strings.TrimSpace(description)) {
	case "completed":
		return StatusCompleted
	case "pending":
		return StatusPending
	default:
		return StatusFailed
	}
}

func tokenLifetime(expiry string) time.Duration {
	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(expiry)); err == nil {
		if d := time.Until(ts); d > 0 {
			return d
		}
	}
	return 0
}
