package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string

	Pricing    PricingConfig
	Outbound   OutboundConfig
	RateLimit  RateLimitConfig
	Security   SecurityConfig
	ShutdownIn time.Duration
}

// PricingConfig selects the pricing mode and the collaborating services.
type PricingConfig struct {
	Mode               string
	MembershipURL      string
	DiscountURL        string
	Timezone           string
	MembershipCacheTTL time.Duration
}

// OutboundConfig tunes calls to the membership and discount services.
type OutboundConfig struct {
	Timeout             time.Duration
	RetryBase           time.Duration
	RetryMaxAttempts    int
	RetryJitterPercent  float64
	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration
}

// RateLimitConfig configures throttling of the quote endpoint.
type RateLimitConfig struct {
	Strategy string
	Window   time.Duration
	Max      int
}

// SecurityConfig toggles response hardening.
type SecurityConfig struct {
	BodyLimitBytes     int64
	HSTSEnabled        bool
	HSTSMaxAge         time.Duration
	FrameDeny          bool
	ContentTypeNosniff bool
	ReferrerPolicy     string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		Pricing: PricingConfig{
			Mode:               strings.ToLower(valueOrDefault(k.String("PRICING_MODE"), "local")),
			MembershipURL:      strings.TrimSpace(k.String("PRICING_SERVICE_URL")),
			DiscountURL:        strings.TrimSpace(k.String("DISCOUNT_SERVICE_URL")),
			Timezone:           valueOrDefault(k.String("PRICING_TIMEZONE"), "Asia/Ho_Chi_Minh"),
			MembershipCacheTTL: parseDuration(k.String("MEMBERSHIP_CACHE_TTL"), "30s"),
		},
		Outbound: OutboundConfig{
			Timeout:             parseDuration(k.String("OUTBOUND_TIMEOUT"), "3s"),
			RetryBase:           parseDuration(k.String("RETRY_BASE"), "100ms"),
			RetryMaxAttempts:    parseInt(k.String("RETRY_MAX_ATTEMPTS"), 2),
			RetryJitterPercent:  parseFloat(k.String("RETRY_JITTER_PERCENT"), 20) / 100,
			CircuitMinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 10),
			CircuitFailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
			CircuitOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
		},
		RateLimit: RateLimitConfig{
			Strategy: strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), "sliding")),
			Window:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
			Max:      parseInt(k.String("RATE_LIMIT_MAX"), 120),
		},
		Security: SecurityConfig{
			BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
			HSTSEnabled:        parseBool(k.String("SECURE_HSTS_ENABLED"), false),
			HSTSMaxAge:         parseDuration(k.String("SECURE_HSTS_MAX_AGE"), "4320h"),
			FrameDeny:          parseBool(k.String("SECURE_FRAME_DENY"), true),
			ContentTypeNosniff: parseBool(k.String("SECURE_CONTENT_TYPE_NOSNIFF"), true),
			ReferrerPolicy:     valueOrDefault(k.String("SECURE_REFERRER_POLICY"), "no-referrer"),
		},
		ShutdownIn: parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Pricing.Mode {
	case "local":
	case "api":
		if c.Pricing.MembershipURL == "" {
			return errors.New("PRICING_SERVICE_URL is required when PRICING_MODE=api")
		}
		if c.Pricing.DiscountURL == "" {
			return errors.New("DISCOUNT_SERVICE_URL is required when PRICING_MODE=api")
		}
	default:
		return fmt.Errorf("PRICING_MODE must be local or api, got %q", c.Pricing.Mode)
	}
	if _, err := time.LoadLocation(c.Pricing.Timezone); err != nil {
		return fmt.Errorf("PRICING_TIMEZONE: %w", err)
	}
	switch c.RateLimit.Strategy {
	case "sliding", "fixed", "off":
	default:
		return fmt.Errorf("RATE_LIMIT_STRATEGY must be sliding, fixed or off, got %q", c.RateLimit.Strategy)
	}
	return nil
}

// Location returns the time zone used for the seasonal promotion.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pricing.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
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
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
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
