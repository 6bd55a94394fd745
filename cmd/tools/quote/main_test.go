package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-buku/internal/pricing"
)

func TestRunPrintsBreakdownFromStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cart := `{"items":[{"unitPrice":100000,"quantity":2}],"coupon":{"code":"SALE10","discountType":"percentage","discountValue":10}}`

	code := run([]string{"-at", "2025-03-10"}, strings.NewReader(cart), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	out := stdout.String()
	require.Contains(t, out, "Tạm tính")
	require.Contains(t, out, "Mã SALE10")
	require.Contains(t, out, "Tổng cộng")
	require.Contains(t, out, "mode: local")
}

func TestRunJSONFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cart.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items":[{"unitPrice":600000,"quantity":1}]}`), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-file", path, "-json"}, nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var res pricing.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	require.Equal(t, pricing.Money(600_000), res.Total)
	require.Zero(t, res.Shipping)
}

func TestRunExitCodes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 1, run(nil, strings.NewReader(`{"items":[{"unitPrice":1,"quantity":0}]}`), &stdout, &stderr))
	require.Equal(t, 2, run(nil, strings.NewReader(`not json`), &stdout, &stderr))
	require.Equal(t, 2, run([]string{"-at", "March"}, strings.NewReader(`{"items":[]}`), &stdout, &stderr))
}

func TestRunAPIModeHonoursPricingDate(t *testing.T) {
	var (
		mu         sync.Mutex
		directives [][]pricing.Directive
	)
	received := func() [][]pricing.Directive {
		mu.Lock()
		defer mu.Unlock()
		return directives
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pricing/calculate":
			_, _ = w.Write([]byte(`{"strategy":{"name":"Regular"}}`))
		case "/discounts/calculate":
			var req pricing.StackRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			mu.Lock()
			directives = append(directives, req.Discounts)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"finalPrice":190000}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	t.Setenv("PRICING_MODE", "api")
	t.Setenv("PRICING_SERVICE_URL", srv.URL)
	t.Setenv("DISCOUNT_SERVICE_URL", srv.URL)
	t.Setenv("PRICING_TIMEZONE", "Asia/Ho_Chi_Minh")
	cart := `{"items":[{"unitPrice":100000,"quantity":2}]}`

	var stdout, stderr bytes.Buffer
	code := run([]string{"-user", "u-1", "-at", "2025-01-15"}, strings.NewReader(cart), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	got := received()
	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	require.Equal(t, "seasonal", got[0][0].Type)
	require.Contains(t, stdout.String(), "Khuyến mãi Tết")
	require.Contains(t, stdout.String(), "mode: api")

	stdout.Reset()
	code = run([]string{"-user", "u-1", "-at", "2025-03-15"}, strings.NewReader(cart), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Len(t, received(), 1, "no directives outside the Tet window, so the discount service is skipped")
}
