package submission

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ContentType identifies what kind of text the visitor is releasing.
type ContentType string

// Supported content types.
const (
	TypeSecret     ContentType = "secret"
	TypeConfession ContentType = "confession"
	TypeWish       ContentType = "wish"
)

// MaxContentLength bounds the submitted text.
const MaxContentLength = 5000

// MinAmount is the provider-agnostic payment floor in USD.
var MinAmount = decimal.NewFromInt(1)

var validate = validator.New()

// ValidationError is a user-facing rejection raised before any provider call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidationError reports whether err is a pre-flight validation rejection.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// Request is a validated payment-order request. Construct it through Parse.
type Request struct {
	ContentType ContentType `validate:"required,oneof=secret confession wish"`
	Content     string      `validate:"required,max=5000"`
	// Amount is normalised to exactly two decimal places, e.g. "1.00".
	Amount string `validate:"required"`
}

// Parse validates raw submission fields and normalises them into a Request.
// The empty amount defaults to the minimum fee; the empty content type defaults
// to "secret" to match the single-purpose checkout endpoints.
func Parse(contentType, content, amount string) (Request, error) {
	var zero Request

	content = strings.TrimSpace(content)
	if content == "" {
		return zero, &ValidationError{Message: "Content is required"}
	}
	if len(content) > MaxContentLength {
		return zero, &ValidationError{Message: "Content is too long"}
	}

	ct := ContentType(strings.ToLower(strings.TrimSpace(contentType)))
	if ct == "" {
		ct = TypeSecret
	}

	if strings.TrimSpace(amount) == "" {
		amount = "1.00"
	}
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return zero, &ValidationError{Message: "Invalid amount"}
	}
	if value.LessThan(MinAmount) {
		return zero, &ValidationError{Message: "Minimum amount is $1.00"}
	}

	req := Request{
		ContentType: ct,
		Content:     content,
		Amount:      value.StringFixed(2),
	}
	if err := validate.Struct(req); err != nil {
		return zero, &ValidationError{Message: "Invalid content type"}
	}
	return req, nil
}

// AmountCents returns the amount in integer cents, as required by Stripe.
func (r Request) AmountCents() int64 {
	value, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return 0
	}
	return value.Shift(2).IntPart()
}

// Title returns the content type with its first letter upper-cased, for
// provider-facing order descriptions.
func (r Request) Title() string {
	s := string(r.ContentType)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Excerpt returns at most n leading bytes of the content for provider metadata.
func (r Request) Excerpt(n int) string {
	if n <= 0 || len(r.Content) <= n {
		return r.Content
	}
	return r.Content[:n]
}
