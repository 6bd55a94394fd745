package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Headers configures the security headers attached to API responses.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            time.Duration
	HSTSIncludeSubdomains bool
	FrameDeny             bool
	ContentTypeNosniff    bool
	ReferrerPolicy        string
	// NoStore marks responses as uncacheable. Quotes are per-user and short-lived.
	NoStore bool
}

// Middleware attaches the configured headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		if h.ContentTypeNosniff {
			headers.Set("X-Content-Type-Options", "nosniff")
		}
		if h.FrameDeny {
			headers.Set("X-Frame-Options", "DENY")
		}
		if policy := strings.TrimSpace(h.ReferrerPolicy); policy != "" {
			headers.Set("Referrer-Policy", policy)
		}
		headers.Set("Permissions-Policy", "geolocation=(), microphone=()")
		if h.NoStore {
			headers.Set("Cache-Control", "no-store")
		}
		if h.EnableHSTS && isHTTPS(r) {
			maxAge := int64(h.HSTSMaxAge / time.Second)
			if maxAge <= 0 {
				maxAge = 31536000
			}
			value := "max-age=" + strconv.FormatInt(maxAge, 10)
			if h.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}
