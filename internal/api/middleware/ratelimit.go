package middleware

import (
	"context"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Addy-9595/northeasternconnect-backend/internal/metrics"
	"github.com/Addy-9595/northeasternconnect-backend/internal/ratelimit"
)

const (
	autoBlockThreshold = 10
	autoBlockDuration  = 24 * time.Hour
)

// RateLimit defines limits for an endpoint.
type RateLimit struct {
	Name     string // metric label and key namespace
	Method   string
	Path     string // matched as a prefix
	Requests int
	Window   time.Duration

	limiter ratelimit.Limiter
}

// DefaultLimits are the per-IP limits applied at the HTTP edge.
func DefaultLimits() []RateLimit {
	return []RateLimit{
		{Name: "register", Method: http.MethodPost, Path: "/api/auth/register", Requests: 10, Window: time.Hour},
		{Name: "login", Method: http.MethodPost, Path: "/api/auth/login", Requests: 20, Window: 15 * time.Minute},
		{Name: "skills", Method: http.MethodGet, Path: "/api/skills/search", Requests: 60, Window: time.Minute},
		{Name: "certifications", Method: http.MethodGet, Path: "/api/certifications/fetch", Requests: 30, Window: time.Minute},
		{Name: "chat_send", Method: http.MethodPost, Path: "/api/chat/send", Requests: 120, Window: time.Minute},
	}
}

// Blocker tracks violations and temporary IP blocks.
type Blocker interface {
	TrackViolation(ctx context.Context, ip string) (int64, error)
	BlockIP(ctx context.Context, ip string, duration time.Duration, reason string) error
	IsIPBlocked(ctx context.Context, ip string) (bool, error)
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Limits           []RateLimit // DefaultLimits when empty
	Whitelist        []string    // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled bool        // Enable auto-blocking after repeated violations
	Blocker          Blocker     // optional; required for auto-blocking

	// NewLimiter builds the limiter for one endpoint. In-process limiters
	// are used when nil.
	NewLimiter func(limit int, window time.Duration) ratelimit.Limiter
}

// RateLimiter applies sliding window limits per client IP and endpoint.
type RateLimiter struct {
	limits           []RateLimit
	blocker          Blocker
	logger           zerolog.Logger
	whitelist        []*net.IPNet
	whitelistIPs     map[string]bool
	autoBlockEnabled bool
	now              func() time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	newLimiter := cfg.NewLimiter
	if newLimiter == nil {
		newLimiter = func(limit int, window time.Duration) ratelimit.Limiter {
			return ratelimit.NewMemory(limit, window)
		}
	}
	limits := cfg.Limits
	if len(limits) == 0 {
		limits = DefaultLimits()
	}

	rl := &RateLimiter{
		limits:           make([]RateLimit, len(limits)),
		blocker:          cfg.Blocker,
		logger:           logger,
		whitelistIPs:     make(map[string]bool),
		autoBlockEnabled: cfg.AutoBlockEnabled && cfg.Blocker != nil,
		now:              time.Now,
	}
	for i, l := range limits {
		l.limiter = newLimiter(l.Requests, l.Window)
		rl.limits[i] = l
	}
	// Longest path first so that the most specific limit wins.
	sort.SliceStable(rl.limits, func(i, j int) bool {
		return len(rl.limits[i].Path) > len(rl.limits[j].Path)
	})

	// Parse whitelist entries
	for _, entry := range cfg.Whitelist {
		if strings.Contains(entry, "/") {
			// CIDR notation
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in whitelist")
				continue
			}
			rl.whitelist = append(rl.whitelist, ipNet)
		} else {
			// Single IP
			rl.whitelistIPs[entry] = true
		}
	}

	if len(cfg.Whitelist) > 0 {
		logger.Info().
			Int("ips", len(rl.whitelistIPs)).
			Int("cidrs", len(rl.whitelist)).
			Msg("rate limit whitelist configured")
	}

	return rl
}

// isWhitelisted checks if an IP is in the whitelist.
func (rl *RateLimiter) isWhitelisted(ipStr string) bool {
	// Check exact IP match
	if rl.whitelistIPs[ipStr] {
		return true
	}

	// Check CIDR ranges
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range rl.whitelist {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// RealIP extracts the real client IP from headers or connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	// Fallback to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)

		// Skip rate limiting for whitelisted IPs
		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		// Check IP block first
		if rl.isBlocked(r.Context(), ip) {
			metrics.BlockedRequests.WithLabelValues("ip_blocked").Inc()
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "blocked_request").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("blocked IP attempted request")
			jsonError(w, http.StatusForbidden, "temporarily blocked")
			return
		}

		// Find matching limit
		limit := rl.findLimit(r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := "ip:" + limit.Name + ":" + ip
		allowed, err := limit.limiter.Allow(r.Context(), key, rl.now())
		if err != nil {
			rl.logger.Warn().Err(err).Str("endpoint", limit.Name).Msg("rate limiter unavailable")
			allowed = true
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			metrics.RateLimitHits.WithLabelValues(limit.Name).Inc()

			// Track violation
			rl.trackViolation(r.Context(), ip)

			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Str("key", key).
				Msg("rate limit exceeded")

			jsonError(w, http.StatusTooManyRequests, "too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit finds the matching rate limit for a request.
func (rl *RateLimiter) findLimit(r *http.Request) *RateLimit {
	for i := range rl.limits {
		l := &rl.limits[i]
		if r.Method == l.Method && strings.HasPrefix(r.URL.Path, l.Path) {
			return l
		}
	}
	return nil
}

// Sweep drops idle keys from in-process limiters. Shared limiters expire
// their keys on their own.
func (rl *RateLimiter) Sweep(now time.Time) int {
	removed := 0
	for _, l := range rl.limits {
		if s, ok := l.limiter.(interface{ Sweep(time.Time) int }); ok {
			removed += s.Sweep(now)
		}
	}
	return removed
}

func (rl *RateLimiter) isBlocked(ctx context.Context, ip string) bool {
	if rl.blocker == nil {
		return false
	}
	blocked, err := rl.blocker.IsIPBlocked(ctx, ip)
	if err != nil {
		rl.logger.Warn().Err(err).Msg("ip block check failed")
		return false
	}
	return blocked
}

// trackViolation tracks rate limit violations and auto-blocks repeat offenders.
func (rl *RateLimiter) trackViolation(ctx context.Context, ip string) {
	if !rl.autoBlockEnabled {
		return
	}

	count, err := rl.blocker.TrackViolation(ctx, ip)
	if err != nil {
		rl.logger.Warn().Err(err).Msg("failed to track rate limit violation")
		return
	}

	if count >= autoBlockThreshold {
		if err := rl.blocker.BlockIP(ctx, ip, autoBlockDuration, "repeated rate limit violations"); err != nil {
			rl.logger.Warn().Err(err).Msg("failed to block IP")
			return
		}
		rl.logger.Warn().
			Str("type", "security").
			Str("event", "ip_auto_blocked").
			Str("ip", ip).
			Int64("violations", count).
			Msg("IP auto-blocked for repeated violations")
	}
}
