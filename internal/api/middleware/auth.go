package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// TokenCookie is the cookie the login endpoint sets.
const TokenCookie = "token"

// Revocations reports whether a token id has been revoked by logout.
type Revocations interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthMiddleware verifies bearer tokens on protected endpoints.
type AuthMiddleware struct {
	tokens  *crypto.TokenManager
	revoked Revocations
	logger  zerolog.Logger
}

// NewAuthMiddleware creates a new auth middleware. revoked may be nil when
// no shared store is configured.
func NewAuthMiddleware(tokens *crypto.TokenManager, revoked Revocations, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		revoked: revoked,
		logger:  logger,
	}
}

// RequireAuth rejects requests without a valid, unrevoked token and stores
// its claims in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := TokenFromRequest(r)
		if raw == "" {
			jsonError(w, http.StatusUnauthorized, "not authorized, no token")
			return
		}

		claims, err := m.tokens.Parse(raw)
		if err != nil {
			m.logger.Warn().
				Str("type", "security").
				Str("event", "invalid_token").
				Str("ip", RealIP(r)).
				Str("endpoint", r.URL.Path).
				Err(err).
				Msg("token rejected")
			if errors.Is(err, crypto.ErrTokenExpired) {
				jsonError(w, http.StatusUnauthorized, "not authorized, token expired")
				return
			}
			jsonError(w, http.StatusUnauthorized, "not authorized, token failed")
			return
		}

		if m.isRevoked(r.Context(), claims.ID) {
			jsonError(w, http.StatusUnauthorized, "not authorized, token revoked")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) isRevoked(ctx context.Context, tokenID string) bool {
	if m.revoked == nil || tokenID == "" {
		return false
	}
	revoked, err := m.revoked.IsTokenRevoked(ctx, tokenID)
	if err != nil {
		m.logger.Warn().Err(err).Msg("token revocation check failed")
		return false
	}
	return revoked
}

// RequireRole allows the request only when the authenticated user has one of
// roles. It must run after RequireAuth.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				jsonError(w, http.StatusUnauthorized, "not authorized")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			jsonError(w, http.StatusForbidden, "access denied")
		})
	}
}

// TokenFromRequest returns the token from the auth cookie or, failing that,
// the Authorization bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *crypto.Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// GetClaims retrieves the authenticated user's claims from the request context.
func GetClaims(ctx context.Context) *crypto.Claims {
	claims, ok := ctx.Value(ClaimsContextKey).(*crypto.Claims)
	if !ok {
		return nil
	}
	return claims
}
