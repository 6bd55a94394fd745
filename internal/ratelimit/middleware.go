package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/toko-buku/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// ByClientIP keys requests by the caller's address under scope.
func ByClientIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return scope + ":" + common.ClientIP(r)
	}
}

// Handler enforces rate limits before delegating to the next handler. A nil
// Limiter disables limiting; limiter errors fail open.
type Handler struct {
	Limiter Allower
	Config  Config
	OnError func(error)
}

// Middleware wraps next with the configured limit.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}
		writeHeaders(w.Header(), decision)
		if !decision.Allowed {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many quote requests, try again later", map[string]any{
				"retryAfterSeconds": retryAfter(decision.Reset),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeHeaders(h http.Header, d Decision) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(d.Limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(retryAfter(d.Reset)))
	}
}

// retryAfter rounds up so clients never retry before the window resets.
func retryAfter(reset time.Time) int {
	secs := math.Ceil(time.Until(reset).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}
