package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanctum-app/backend-sanctum/internal/common"
	"github.com/sanctum-app/backend-sanctum/internal/config"
	"github.com/sanctum-app/backend-sanctum/internal/health"
	"github.com/sanctum-app/backend-sanctum/internal/obs"
	"github.com/sanctum-app/backend-sanctum/internal/outbound"
	"github.com/sanctum-app/backend-sanctum/internal/payment"
	"github.com/sanctum-app/backend-sanctum/internal/ratelimit"
	"github.com/sanctum-app/backend-sanctum/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "sanctum")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "sanctum-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	tokens := payment.NewTokenCache(cfg.TokenCacheTTL)
	providers := map[string]payment.Provider{}

	if cfg.PayPalConfigured() {
		breaker := outbound.NewBreaker("paypal", 5, 0.5, 30*time.Second, logger)
		providers[payment.ProviderPayPal] = &payment.PayPal{
			ClientID:      cfg.PayPalClientID,
			ClientSecret:  cfg.PayPalClientSecret,
			BaseURL:       cfg.PayPalBaseURL,
			PublicBaseURL: cfg.PublicBaseURL,
			Client:        outbound.NewClient(cfg.ProviderTimeout, breaker),
			Tokens:        tokens,
			Logger:        logger.With().Str("provider", payment.ProviderPayPal).Logger(),
		}
	}
	if cfg.StripeConfigured() {
		providers[payment.ProviderStripe] = payment.NewStripe(
			cfg.StripeSecretKey,
			cfg.PublicBaseURL,
			logger.With().Str("provider", payment.ProviderStripe).Logger(),
		)
	}
	if cfg.PesapalConfigured() {
		breaker := outbound.NewBreaker("pesapal", 5, 0.5, 30*time.Second, logger)
		providers[payment.ProviderPesapal] = &payment.Pesapal{
			ConsumerKey:    cfg.PesapalConsumerKey,
			ConsumerSecret: cfg.PesapalConsumerSecret,
			BaseURL:        cfg.PesapalBaseURL,
			PublicBaseURL:  cfg.PublicBaseURL,
			IPNID:          cfg.PesapalIPNID,
			Client:         outbound.NewClient(cfg.ProviderTimeout, breaker),
			Tokens:         tokens,
			Logger:         logger.With().Str("provider", payment.ProviderPesapal).Logger(),
		}
	}
	if len(providers) == 0 {
		logger.Warn().Msg("no payment provider configured; all payment endpoints will fail")
	}

	paymentSvc := &payment.Service{Providers: providers, Logger: logger}
	paymentHandler := &payment.Handler{Svc: paymentSvc, Logger: logger}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimit).Msg("parse rate limit")
	}
	rl := ratelimit.Handler{
		Limiter: limiter,
		Config:  ratelimit.Config{Key: common.ClientIP},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
	}
	bodyLimit := security.BodyLimit{Max: cfg.MaxBodyBytes}
	secureHeaders := security.Headers{
		Enable:     envBool("SECURE_HEADERS", true),
		EnableHSTS: envBool("SECURE_HSTS", cfg.AppEnv == "production"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(secureHeaders.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Providers: map[string]bool{
		payment.ProviderPayPal:  cfg.PayPalConfigured(),
		payment.ProviderStripe:  cfg.StripeConfigured(),
		payment.ProviderPesapal: cfg.PesapalConfigured(),
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.Use(rl.Middleware)
		api.Use(bodyLimit.Middleware)

		api.Post("/paypal/create-order", paymentHandler.PayPalCreateOrder)
		api.Post("/paypal/capture-order", paymentHandler.PayPalCaptureOrder)
		api.Post("/stripe/checkout", paymentHandler.StripeCheckout)
		api.Post("/pesapal/checkout", paymentHandler.PesapalCheckout)
		api.Get("/pesapal/status", paymentHandler.PesapalStatus)
		api.Get("/pesapal/ipn", paymentHandler.PesapalIPN)
		api.Get("/success", paymentHandler.Reconcile)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
