package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-buku/internal/common"
	"github.com/noah-isme/toko-buku/internal/obs"
)

var errNoToken = errors.New("auth: token missing")

// TokenParser resolves an access token into a user ID.
type TokenParser interface {
	Parse(token string) (string, error)
}

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Parser TokenParser
}

// Authenticate attaches the user identifier to the request context. Requests
// without a bearer token, or served without a configured parser, continue
// anonymously and are priced locally. A token that is present but invalid is
// answered with 401 so the storefront refreshes the session instead of
// silently losing member pricing.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	if m.Parser == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		switch {
		case errors.Is(err, errNoToken):
			next.ServeHTTP(w, r)
		case err != nil:
			logger := obs.LoggerFrom(r.Context(), zerolog.Nop())
			logger.Debug().Err(err).Msg("auth_token_rejected")
			if !common.WriteAppError(w, err, http.StatusUnauthorized, "UNAUTHORIZED") {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			}
		default:
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	token := extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	userID, err := m.Parser.Parse(token)
	if err != nil {
		return r.Context(), err
	}
	return common.WithUserID(r.Context(), userID), nil
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
