package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Rate limit strategies. Sliding needs Redis; fixed windows use the ulule
// store (Redis when configured, process memory otherwise).
const (
	RateLimitSliding = "sliding"
	RateLimitFixed   = "fixed"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	PaystackSecretKey string
	PaystackPublicKey string
	PaystackBaseURL   string

	RedisURL           string
	CORSAllowedOrigins []string

	VerifyTimeout       time.Duration
	VerifyMaxAttempts   int
	VerifyBackoffBase   time.Duration
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	WebhookReplayTTL         time.Duration
	BodyLimitBytes           int64
	RateLimitVerifyPerMinute int
	RateLimitStrategy        string
	LedgerTTL                time.Duration

	MerchantName     string
	MerchantWhatsApp string
	CurrencyCode     string
	BackendURL       string
	CartFile         string
	CartSession      string

	KafkaBrokers []string
	KafkaTopic   string

	WorkerConcurrency  int
	NotifyEmailEnabled bool
	NotifyEmailFrom    string

	Obs ObsConfig
}

// ObsConfig groups logging, metrics, tracing and profiling toggles (OBS_*).
// Profiling endpoints stay hidden unless a basic-auth user is configured.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPassword    string
}

// Load reads server configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if cfg.PaystackSecretKey == "" {
		return nil, errors.New("PAYSTACK_SECRET_KEY is required")
	}
	if cfg.VerifyMaxAttempts < 1 {
		return nil, errors.New("VERIFY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.BreakerMinRequests < 1 {
		return nil, errors.New("BREAKER_MIN_REQUESTS must be at least 1")
	}
	if cfg.BreakerFailureRatio <= 0 || cfg.BreakerFailureRatio > 1 {
		return nil, errors.New("BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	return cfg, nil
}

// LoadClient reads the subset the storefront client needs. The Paystack secret is not required.
func LoadClient() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL is required")
	}
	return cfg, nil
}

func read() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "5000"),
		PaystackSecretKey:  strings.TrimSpace(k.String("PAYSTACK_SECRET_KEY")),
		PaystackPublicKey:  strings.TrimSpace(k.String("PAYSTACK_PUBLIC_KEY")),
		PaystackBaseURL:    valueOrDefault(k.String("PAYSTACK_BASE_URL"), "https://api.paystack.co"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		VerifyTimeout:       parseDuration(k.String("VERIFY_TIMEOUT"), "10s"),
		VerifyMaxAttempts:   parseInt(k.String("VERIFY_MAX_ATTEMPTS"), 2),
		VerifyBackoffBase:   parseDuration(k.String("VERIFY_BACKOFF_BASE"), "200ms"),
		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		WebhookReplayTTL:         parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "72h"),
		BodyLimitBytes:           int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		RateLimitVerifyPerMinute: parseInt(k.String("RATE_LIMIT_VERIFY_PER_MINUTE"), 30),
		RateLimitStrategy:        strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), RateLimitSliding)),
		LedgerTTL:                parseDuration(k.String("LEDGER_TTL"), "2160h"),

		MerchantName:     valueOrDefault(k.String("MERCHANT_NAME"), "Centuryboy's Hub"),
		MerchantWhatsApp: valueOrDefault(k.String("MERCHANT_WHATSAPP"), "233540639091"),
		CurrencyCode:     strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "GHS")),
		BackendURL:       strings.TrimRight(valueOrDefault(k.String("BACKEND_URL"), "http://localhost:5000"), "/"),
		CartFile:         valueOrDefault(k.String("CART_FILE"), "cb_cart.json"),
		CartSession:      strings.TrimSpace(k.String("CART_SESSION")),

		KafkaBrokers: splitAndTrim(k.String("KAFKA_BROKERS")),
		KafkaTopic:   valueOrDefault(k.String("KAFKA_TOPIC"), "cbhub.payments"),

		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 5),
		NotifyEmailEnabled: parseBool(k.String("NOTIFY_EMAIL_ENABLED"), false),
		NotifyEmailFrom:    strings.TrimSpace(k.String("NOTIFY_EMAIL_FROM")),

		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "cbhub"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPassword:    strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "5000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// RedisEnabled reports whether Redis-backed components should be wired.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
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
		return strings.TrimSpace(value)
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

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return v
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return v
	}
	return fallback
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
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
	return withEnv(env, Load)
}

// LoadClientForTests is LoadForTests for LoadClient.
func LoadClientForTests(env map[string]string) (*Config, error) {
	return withEnv(env, LoadClient)
}

func withEnv(env map[string]string, load func() (*Config, error)) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := load()
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
