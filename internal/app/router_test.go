package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-buku/internal/config"
)

func testConfig(mode string) *config.Config {
	return &config.Config{
		AppEnv:    "test",
		JWTSecret: "router-secret",
		Pricing: config.PricingConfig{
			Mode:               mode,
			Timezone:           "Asia/Ho_Chi_Minh",
			MembershipCacheTTL: time.Minute,
		},
		Outbound: config.OutboundConfig{
			Timeout:             time.Second,
			RetryBase:           time.Millisecond,
			RetryMaxAttempts:    1,
			CircuitMinRequests:  5,
			CircuitFailureRatio: 0.5,
			CircuitOpenFor:      time.Minute,
		},
		RateLimit: config.RateLimitConfig{Strategy: "fixed", Window: time.Minute, Max: 100},
		Security:  config.SecurityConfig{BodyLimitBytes: 4096, ContentTypeNosniff: true, FrameDeny: true},
	}
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "198.51.100.7:5000"
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterLocalQuote(t *testing.T) {
	deps, err := Build(testConfig("local"), nil, zerolog.Nop())
	require.NoError(t, err)
	h := NewRouter(deps)

	rr := do(t, h, http.MethodPost, "/api/v1/checkout/quote", `{"items":[{"unitPrice":600000,"quantity":1}]}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rr.Header().Get("X-RateLimit-Limit"))

	var env struct {
		Data struct {
			Mode    string `json:"mode"`
			Pricing struct {
				Total    int64 `json:"total"`
				Shipping int64 `json:"shipping"`
			} `json:"pricing"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Equal(t, "local", env.Data.Mode)
	require.Equal(t, int64(0), env.Data.Pricing.Shipping)
	require.Equal(t, int64(600_000), env.Data.Pricing.Total)
}

func TestRouterAPIModeUsesServicesForSignedInBuyer(t *testing.T) {
	var membershipCalls, discountCalls int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pricing/calculate":
			membershipCalls++
			_, _ = w.Write([]byte(`{"finalPrice":450000,"strategy":{"name":"Gold"}}`))
		case "/discounts/calculate":
			discountCalls++
			_, _ = w.Write([]byte(`{"finalPrice":405000}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer upstream.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig("api")
	cfg.Pricing.MembershipURL = upstream.URL
	cfg.Pricing.DiscountURL = upstream.URL
	deps, err := Build(cfg, rdb, zerolog.Nop())
	require.NoError(t, err)
	h := NewRouter(deps)

	token, _, err := deps.Verifier.Issue("user-9")
	require.NoError(t, err)

	body := `{"items":[{"unitPrice":100000,"quantity":5}],"membershipTier":"gold","coupon":{"code":"SALE10","discountType":"percentage","discountValue":10}}`
	rr := do(t, h, http.MethodPost, "/api/v1/checkout/quote", body, token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, membershipCalls)
	require.Equal(t, 1, discountCalls)
	require.Contains(t, rr.Body.String(), `"mode":"api"`)

	rr = do(t, h, http.MethodPost, "/api/v1/checkout/quote", body, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, membershipCalls, "anonymous buyers are priced locally")

	rr = do(t, h, http.MethodPost, "/api/v1/checkout/quote", body, token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, membershipCalls, "membership quote served from cache")
	require.Equal(t, 2, discountCalls)

	rr = do(t, h, http.MethodPost, "/api/v1/checkout/quote", body, token+"x")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, 2, discountCalls)
}

func TestRouterRateLimit(t *testing.T) {
	cfg := testConfig("local")
	cfg.RateLimit.Max = 1
	deps, err := Build(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	h := NewRouter(deps)

	body := `{"items":[]}`
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/checkout/quote", body, "").Code)
	rr := do(t, h, http.MethodPost, "/api/v1/checkout/quote", body, "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestRouterBodyLimit(t *testing.T) {
	cfg := testConfig("local")
	cfg.Security.BodyLimitBytes = 16
	deps, err := Build(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	h := NewRouter(deps)

	big := bytes.Repeat([]byte(`{"unitPrice":1,"quantity":1},`), 10)
	body := `{"items":[` + strings.TrimSuffix(string(big), ",") + `]}`
	rr := do(t, h, http.MethodPost, "/api/v1/checkout/quote", body, "")
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestRouterHealthAndPolicy(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	deps, err := Build(testConfig("local"), rdb, zerolog.Nop())
	require.NoError(t, err)
	h := NewRouter(deps)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/live", "", "").Code)
	rr := do(t, h, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"redis":"ok"`)

	rr = do(t, h, http.MethodGet, "/api/v1/checkout/shipping-policy", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"freeShippingThreshold":500000`)
}

func TestRouterWithoutSecretTreatsEveryoneAsAnonymous(t *testing.T) {
	cfg := testConfig("local")
	cfg.JWTSecret = ""
	deps, err := Build(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	require.Nil(t, deps.Verifier)

	rr := do(t, NewRouter(deps), http.MethodPost, "/api/v1/checkout/quote", `{"items":[]}`, "some-token")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestNewLimiterStrategies(t *testing.T) {
	l, err := NewLimiter(config.RateLimitConfig{Strategy: "off"}, nil)
	require.NoError(t, err)
	require.Nil(t, l)

	l, err = NewLimiter(config.RateLimitConfig{Strategy: "sliding"}, nil)
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = NewLimiter(config.RateLimitConfig{Strategy: "leaky"}, nil)
	require.Error(t, err)
}
