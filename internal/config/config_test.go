package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"PRICING_MODE":         "",
		"PRICING_SERVICE_URL":  "",
		"DISCOUNT_SERVICE_URL": "",
		"PRICING_TIMEZONE":     "",
		"OUTBOUND_TIMEOUT":     "",
		"RATE_LIMIT_STRATEGY":  "",
		"RETRY_MAX_ATTEMPTS":   "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Pricing.Mode)
	require.Equal(t, "Asia/Ho_Chi_Minh", cfg.Pricing.Timezone)
	require.Equal(t, 3*time.Second, cfg.Outbound.Timeout)
	require.Equal(t, 2, cfg.Outbound.RetryMaxAttempts)
	require.InDelta(t, 0.2, cfg.Outbound.RetryJitterPercent, 1e-9)
	require.Equal(t, "sliding", cfg.RateLimit.Strategy)
	require.Equal(t, "Asia/Ho_Chi_Minh", cfg.Location().String())
}

func TestLoadAPIModeRequiresServiceURLs(t *testing.T) {
	env := baseEnv()
	env["PRICING_MODE"] = "api"
	env["PRICING_SERVICE_URL"] = "http://membership:8081"
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "DISCOUNT_SERVICE_URL")

	env["DISCOUNT_SERVICE_URL"] = "http://discounts:8082"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "api", cfg.Pricing.Mode)
	require.Equal(t, "http://membership:8081", cfg.Pricing.MembershipURL)
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	env := baseEnv()
	env["PRICING_MODE"] = "remote"
	_, err := LoadForTests(env)
	require.Error(t, err)

	env = baseEnv()
	env["PRICING_TIMEZONE"] = "Mars/Olympus"
	_, err = LoadForTests(env)
	require.Error(t, err)

	env = baseEnv()
	env["RATE_LIMIT_STRATEGY"] = "token-bucket"
	_, err = LoadForTests(env)
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["OUTBOUND_TIMEOUT"] = "750ms"
	env["RATE_LIMIT_STRATEGY"] = "fixed"
	env["RETRY_MAX_ATTEMPTS"] = "4"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, 750*time.Millisecond, cfg.Outbound.Timeout)
	require.Equal(t, "fixed", cfg.RateLimit.Strategy)
	require.Equal(t, 4, cfg.Outbound.RetryMaxAttempts)
}

func TestHTTPAddr(t *testing.T) {
	require.Equal(t, ":9090", (&Config{Port: "9090"}).HTTPAddr())
	require.Equal(t, ":7000", (&Config{Port: ":7000"}).HTTPAddr())
	require.Equal(t, ":8080", (&Config{}).HTTPAddr())
}
