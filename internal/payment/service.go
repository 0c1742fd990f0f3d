package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sanctum-app/backend-sanctum/internal/obs"
	"github.com/sanctum-app/backend-sanctum/internal/submission"
)

// Service dispatches order creation and capture to the configured providers.
// Each order is single-user, single-attempt and request-scoped; the only
// shared state is the read-only provider set and the token cache inside the
// adapters.
type Service struct {
	Providers map[string]Provider
	Logger    zerolog.Logger
}

// ErrUnknownProvider is returned when no adapter is registered for the name.
var ErrUnknownProvider = errors.New("unknown payment provider")

// Provider returns the adapter registered under name.
func (s *Service) Provider(name string) (Provider, error) {
	if s == nil || s.Providers == nil {
		return nil, errors.New("payment service not configured")
	}
	provider, ok := s.Providers[normaliseLabel(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return provider, nil
}

// CreateOrder authenticates against the named provider and submits an order
// for the validated request.
func (s *Service) CreateOrder(ctx context.Context, providerName string, req submission.Request) (OrderHandle, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateOrder")
	defer span.End()

	providerLabel := normaliseLabel(providerName)
	start := time.Now()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", providerLabel),
			attribute.Float64("payment.order.duration_ms", obs.DurationMillis(time.Since(start))),
			attribute.String("payment.order.result", result),
		)
		if obs.PaymentOrderTotal != nil {
			obs.PaymentOrderTotal.WithLabelValues(providerLabel, result).Inc()
		}
		if obs.ProviderCallLatency != nil {
			obs.ProviderCallLatency.WithLabelValues(providerLabel, "create_order").Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	provider, err := s.Provider(providerName)
	if err != nil {
		span.RecordError(err)
		return OrderHandle{}, err
	}

	handle, err := provider.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.Logger.Error().Err(err).
			Str("provider", providerLabel).
			Str("content_type", string(req.ContentType)).
			Msg("order creation failed")
		return OrderHandle{}, err
	}

	result = "success"
	span.SetAttributes(attribute.String("order.id", handle.OrderID))
	s.Logger.Info().
		Str("provider", providerLabel).
		Str("order_id", handle.OrderID).
		Str("content_type", string(req.ContentType)).
		Str("amount", handle.Amount).
		Msg("payment order created")
	return handle, nil
}

// Capture finalises (or verifies) the order identified by orderID against the
// named provider and returns the terminal result.
func (s *Service) Capture(ctx context.Context, providerName, orderID string) (CaptureResult, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Capture")
	defer span.End()

	providerLabel := normaliseLabel(providerName)
	start := time.Now()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", providerLabel),
			attribute.String("order.id", orderID),
			attribute.Float64("payment.capture.duration_ms", obs.DurationMillis(time.Since(start))),
			attribute.String("payment.capture.result", result),
		)
		if obs.PaymentCaptureTotal != nil {
			obs.PaymentCaptureTotal.WithLabelValues(providerLabel, result).Inc()
		}
		if obs.ProviderCallLatency != nil {
			obs.ProviderCallLatency.WithLabelValues(providerLabel, "capture_order").Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	provider, err := s.Provider(providerName)
	if err != nil {
		span.RecordError(err)
		return CaptureResult{}, err
	}
	if strings.TrimSpace(orderID) == "" {
		err := errors.New("order id is required")
		span.RecordError(err)
		return CaptureResult{}, err
	}

	capture, err := provider.CaptureOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		s.Logger.Error().Err(err).
			Str("provider", providerLabel).
			Str("order_id", orderID).
			Msg("capture failed")
		return CaptureResult{}, err
	}

	result = strings.ToLower(capture.Status)
	if result == "" {
		result = "success"
	}
	s.Logger.Info().
		Str("provider", providerLabel).
		Str("order_id", orderID).
		Str("capture_id", capture.CaptureID).
		Str("status", capture.Status).
		Msg("payment capture resolved")
	return capture, nil
}

func normaliseLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
