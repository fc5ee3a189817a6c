package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexus_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_users_registered_total",
			Help: "Total users registered",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_messages_sent_total",
			Help: "Total direct messages sent",
		},
	)

	PostsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_posts_created_total",
			Help: "Total posts created",
		},
	)

	SkillSearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_skill_searches_total",
			Help: "Total skill search queries",
		},
	)

	// LookupOutcomes counts certification and skill lookups by outcome:
	// verified, unverified, fallback, static or error.
	LookupOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_lookup_outcomes_total",
			Help: "External lookup outcomes",
		},
		[]string{"service", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_cache_lookups_total",
			Help: "Read-through cache lookups",
		},
		[]string{"cache", "result"}, // "hit" or "miss"
	)

	UploadsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_uploads_stored_total",
			Help: "Total uploaded images stored",
		},
		[]string{"kind"}, // "profile" or "content"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
