package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Addy-9595/northeasternconnect-backend/internal/api"
	"github.com/Addy-9595/northeasternconnect-backend/internal/api/middleware"
	"github.com/Addy-9595/northeasternconnect-backend/internal/cache"
	"github.com/Addy-9595/northeasternconnect-backend/internal/config"
	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/handlers"
	"github.com/Addy-9595/northeasternconnect-backend/internal/lookup"
	"github.com/Addy-9595/northeasternconnect-backend/internal/messaging"
	"github.com/Addy-9595/northeasternconnect-backend/internal/ratelimit"
	"github.com/Addy-9595/northeasternconnect-backend/internal/store"
	"github.com/Addy-9595/northeasternconnect-backend/internal/uploads"
)

const (
	lookupCacheSize = 1024
	sweepInterval   = 10 * time.Minute
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the relational store
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite store")
	}
	defer dataStore.Close()

	// Redis shares limiter ledgers, caches and token revocations across
	// instances. Without it every instance keeps its own.
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	var (
		newLimiter   func(limit int, window time.Duration) ratelimit.Limiter
		certBackend  cache.Backend
		skillBackend cache.Backend
		blocker      middleware.Blocker
	)
	if redisStore != nil {
		newLimiter = func(limit int, window time.Duration) ratelimit.Limiter {
			return ratelimit.NewShared(redisStore, limit, window)
		}
		certBackend = redisStore.Cache("cache:cert:")
		skillBackend = redisStore.Cache("cache:skills:")
		blocker = redisStore
	} else {
		newLimiter = func(limit int, window time.Duration) ratelimit.Limiter {
			return ratelimit.NewMemory(limit, window)
		}
		certBackend = cache.NewMemory(lookupCacheSize, cfg.LookupCacheTTL)
		skillBackend = cache.NewMemory(lookupCacheSize, cfg.LookupCacheTTL)
	}

	tokens, err := crypto.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid token configuration")
	}

	uploadStorage, err := uploads.NewStorage(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	lookupCfg := lookup.Config{
		Timeout:                 cfg.LookupTimeout,
		CacheTTL:                cfg.LookupCacheTTL,
		ESCOURL:                 cfg.ESCOURL,
		CourseraVerifyURL:       cfg.CourseraVerifyURL,
		MicrosoftCredentialsURL: cfg.MicrosoftCredentialsURL,
	}

	messageLimiter := newLimiter(cfg.MessagesPerHour, time.Hour)
	limiter := middleware.NewRateLimiter(logger, middleware.RateLimiterConfig{
		Whitelist:        cfg.RateLimitWhitelist,
		AutoBlockEnabled: cfg.AutoBlockEnabled,
		Blocker:          blocker,
		NewLimiter:       newLimiter,
	})

	// Create router
	router := api.NewRouter(logger, api.Config{
		Handlers: handlers.Options{
			Store:          dataStore,
			Redis:          redisStore,
			Tokens:         tokens,
			Messages:       messaging.NewService(dataStore, messageLimiter, logger),
			Certifications: lookup.NewCertificationService(lookupCfg, certBackend, logger),
			Skills:         lookup.NewSkillService(lookupCfg, skillBackend, logger),
			Uploads:        uploadStorage,
			Logger:         logger,
			SecureCookies:  cfg.IsProduction(),
		},
		RateLimiter: limiter,
		CORSOrigins: cfg.CORSOrigins,
	})

	// In-process ledgers grow with every distinct key; drop idle ones.
	if redisStore == nil {
		go sweep(ctx, logger, limiter, messageLimiter)
	}

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting NexusNU server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// sweep periodically prunes idle keys from the in-process limiters.
func sweep(ctx context.Context, logger zerolog.Logger, edge *middleware.RateLimiter, messages ratelimit.Limiter) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := edge.Sweep(now)
			if m, ok := messages.(*ratelimit.Memory); ok {
				removed += m.Sweep(now)
			}
			if removed > 0 {
				logger.Debug().Int("keys", removed).Msg("swept idle rate limit keys")
			}
		}
	}
}
