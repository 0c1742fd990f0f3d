package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	paypalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	pesapalSandboxAPI    = "https://cybqa.pesapal.com/pesapalv3/api"
	pesapalLiveAPI       = "https://pay.pesapal.com/v3/api"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv        string
	Port          string
	PublicBaseURL string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalBaseURL      string

	StripeSecretKey string

	PesapalConsumerKey    string
	PesapalConsumerSecret string
	PesapalBaseURL        string
	PesapalIPNID          string

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	RateLimit          string

	ProviderTimeout time.Duration
	TokenCacheTTL   time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:        valueOrDefault(k.String("APP_ENV"), "development"),
		Port:          valueOrDefault(k.String("PORT"), "8080"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(k.String("PUBLIC_BASE_URL")), "/"),

		PayPalClientID:     strings.TrimSpace(k.String("PAYPAL_CLIENT_ID")),
		PayPalClientSecret: strings.TrimSpace(k.String("PAYPAL_CLIENT_SECRET")),
		PayPalBaseURL:      valueOrDefault(strings.TrimRight(strings.TrimSpace(k.String("PAYPAL_BASE_URL")), "/"), paypalSandboxBaseURL),

		StripeSecretKey: strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),

		PesapalConsumerKey:    strings.TrimSpace(k.String("PESAPAL_CONSUMER_KEY")),
		PesapalConsumerSecret: strings.TrimSpace(k.String("PESAPAL_CONSUMER_SECRET")),
		PesapalBaseURL:        pesapalBaseURL(k.String("PESAPAL_ENVIRONMENT")),
		PesapalIPNID:          strings.TrimSpace(k.String("PESAPAL_IPN_ID")),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MaxBodyBytes:       int64(k.Int("MAX_BODY_BYTES")),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "30-M"),

		ProviderTimeout: parseDuration(k.String("PROVIDER_TIMEOUT"), "15s"),
		TokenCacheTTL:   parseDuration(k.String("TOKEN_CACHE_TTL"), "5m"),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("PUBLIC_BASE_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// PayPalConfigured reports whether PayPal credentials are present.
func (c *Config) PayPalConfigured() bool {
	return c.PayPalClientID != "" && c.PayPalClientSecret != ""
}

// StripeConfigured reports whether the Stripe secret key is present.
func (c *Config) StripeConfigured() bool {
	return c.StripeSecretKey != ""
}

// PesapalConfigured reports whether Pesapal credentials are present.
func (c *Config) PesapalConfigured() bool {
	return c.PesapalConsumerKey != "" && c.PesapalConsumerSecret != ""
}

func pesapalBaseURL(environment string) string {
	if strings.ToLower(strings.TrimSpace(environment)) == "live" {
		return pesapalLiveAPI
	}
	return pesapalSandboxAPI
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
