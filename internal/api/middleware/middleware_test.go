package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
	"github.com/Addy-9595/northeasternconnect-backend/internal/ratelimit"
	"github.com/Addy-9595/northeasternconnect-backend/internal/store"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func newTokens(t *testing.T, ttl time.Duration) *crypto.TokenManager {
	t.Helper()
	tm, err := crypto.NewTokenManager("test-secret", ttl)
	require.NoError(t, err)
	return tm
}

func newRedis(t *testing.T) *store.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	return store.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestRequireAuth(t *testing.T) {
	tokens := newTokens(t, time.Hour)
	rs := newRedis(t)
	auth := NewAuthMiddleware(tokens, rs, zerolog.Nop())

	userID := uuid.New()
	valid, _, err := tokens.Issue(userID, "a@northeastern.edu", models.RoleStudent)
	require.NoError(t, err)
	expired, _, err := newTokens(t, -time.Minute).Issue(userID, "a@northeastern.edu", models.RoleStudent)
	require.NoError(t, err)
	revoked, revokedClaims, err := tokens.Issue(userID, "a@northeastern.edu", models.RoleStudent)
	require.NoError(t, err)
	require.NoError(t, rs.RevokeToken(context.Background(), revokedClaims.ID, time.Hour))

	var seen *crypto.Claims
	h := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClaims(r.Context())
	}))

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    int
		message string
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized, "no token"},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, "token failed"},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, http.StatusUnauthorized, "token expired"},
		{"revoked", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+revoked) }, http.StatusUnauthorized, "token revoked"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+valid) }, http.StatusOK, ""},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: valid}) }, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, userID, seen.UserID)
				return
			}
			assert.Nil(t, seen)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleAdmin)(okHandler)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for role, want := range map[models.Role]int{
		models.RoleStudent:   http.StatusForbidden,
		models.RoleProfessor: http.StatusForbidden,
		models.RoleAdmin:     http.StatusOK,
	} {
		ctx := WithClaims(context.Background(), &crypto.Claims{UserID: uuid.New(), Role: role})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req.WithContext(ctx))
		assert.Equal(t, want, w.Code, role)
	}
}

func do(h http.Handler, method, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimiterPerRoute(t *testing.T) {
	rl := NewRateLimiter(zerolog.Nop(), RateLimiterConfig{
		Limits: []RateLimit{
			{Name: "chat", Method: http.MethodPost, Path: "/api/chat", Requests: 5, Window: time.Minute},
			{Name: "chat_send", Method: http.MethodPost, Path: "/api/chat/send", Requests: 2, Window: time.Minute},
		},
		Whitelist: []string{"10.0.0.0/8", "192.168.1.7", "not-a-cidr/"},
	})
	h := rl.Middleware(okHandler)

	for i := 0; i < 2; i++ {
		w := do(h, http.MethodPost, "/api/chat/send", "1.2.3.4")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"), "most specific limit applies")
	}
	w := do(h, http.MethodPost, "/api/chat/send", "1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many requests, please try again later"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/chat/send", "5.6.7.8").Code, "limits are per IP")
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/chat/other", "1.2.3.4").Code, "separate budget")
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/chat/send", "1.2.3.4").Code, "method must match")

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/chat/send", "10.1.2.3").Code)
		assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/chat/send", "192.168.1.7").Code)
	}

	assert.Equal(t, 0, rl.Sweep(time.Now()))
	assert.Greater(t, rl.Sweep(time.Now().Add(2*time.Minute)), 0)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, time.Time) (bool, error) {
	return false, assert.AnError
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rl := NewRateLimiter(zerolog.Nop(), RateLimiterConfig{
		NewLimiter: func(int, time.Duration) ratelimit.Limiter { return failingLimiter{} },
	})
	assert.Equal(t, http.StatusOK, do(rl.Middleware(okHandler), http.MethodPost, "/api/auth/register", "1.2.3.4").Code)
}

func TestRateLimiterSharedAndAutoBlock(t *testing.T) {
	rs := newRedis(t)
	cfg := RateLimiterConfig{
		Limits:           []RateLimit{{Name: "login", Method: http.MethodPost, Path: "/api/auth/login", Requests: 1, Window: time.Minute}},
		AutoBlockEnabled: true,
		Blocker:          rs,
		NewLimiter: func(limit int, window time.Duration) ratelimit.Limiter {
			return ratelimit.NewShared(rs, limit, window)
		},
	}
	first := NewRateLimiter(zerolog.Nop(), cfg).Middleware(okHandler)
	second := NewRateLimiter(zerolog.Nop(), cfg).Middleware(okHandler)

	assert.Equal(t, http.StatusOK, do(first, http.MethodPost, "/api/auth/login", "1.2.3.4").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(second, http.MethodPost, "/api/auth/login", "1.2.3.4").Code, "budget shared across instances")

	for i := 1; i < autoBlockThreshold; i++ {
		do(first, http.MethodPost, "/api/auth/login", "1.2.3.4")
	}
	w := do(second, http.MethodGet, "/api/posts", "1.2.3.4")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "temporarily blocked")

	assert.Equal(t, http.StatusOK, do(second, http.MethodGet, "/api/posts", "4.3.2.1").Code)
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	assert.Equal(t, "9.9.9.9", RealIP(req))

	req.Header.Set("X-Real-IP", "8.8.8.8")
	assert.Equal(t, "8.8.8.8", RealIP(req))

	req.Header.Set("X-Forwarded-For", " 7.7.7.7 , 6.6.6.6")
	assert.Equal(t, "7.7.7.7", RealIP(req))
}

func TestValidateRequest(t *testing.T) {
	h := ValidateRequest("application/json")(okHandler)

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		want        int
	}{
		{"json body", http.MethodPost, "/api/posts", "application/json; charset=utf-8", `{}`, http.StatusOK},
		{"form body", http.MethodPost, "/api/posts", "application/x-www-form-urlencoded", `a=b`, http.StatusUnsupportedMediaType},
		{"empty body", http.MethodPost, "/api/auth/logout", "", "", http.StatusOK},
		{"traversal", http.MethodGet, "/api/../etc/passwd", "", "", http.StatusBadRequest},
		{"script in query", http.MethodGet, "/api/skills/search?q=<script>", "", "", http.StatusBadRequest},
		{"url in query", http.MethodGet, "/api/certifications/fetch?platform=aws&id=https://aws.amazon.com/x", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			req.URL.Path, req.URL.RawQuery, _ = strings.Cut(tt.target, "?")
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	upload := ValidateRequest("multipart/form-data")(okHandler)
	req := httptest.NewRequest(http.MethodPost, "/api/posts/upload-images", strings.NewReader("--x--"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	upload.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMaxBodySize(t *testing.T) {
	h := MaxBodySize(4)(okHandler)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(okHandler)

	w := do(h, http.MethodGet, "/api/posts", "1.1.1.1")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "default-src 'none'", w.Header().Get("Content-Security-Policy"))

	w = do(h, http.MethodGet, "/uploads/profiles/a.png", "1.1.1.1")
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "img-src 'self'")
}

func TestRoutePattern(t *testing.T) {
	var pattern string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			pattern = RoutePattern(req)
		})
	})
	r.Get("/api/posts/{id}", okHandler)

	do(r, http.MethodGet, "/api/posts/"+uuid.NewString(), "1.1.1.1")
	assert.Equal(t, "/api/posts/{id}", pattern)

	assert.Equal(t, "unmatched", RoutePattern(httptest.NewRequest(http.MethodGet, "/", nil)))
}
