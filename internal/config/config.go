package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // Postgres; empty selects SQLite
	SQLitePath  string
	RedisURL    string

	JWTSecret string
	TokenTTL  time.Duration

	UploadDir   string
	CORSOrigins []string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	MessagesPerHour    int
	AutoBlockEnabled   bool // Block IPs after repeated rate limit violations (requires Redis)

	// External lookups
	LookupTimeout           time.Duration
	LookupCacheTTL          time.Duration
	ESCOURL                 string
	CourseraVerifyURL       string
	MicrosoftCredentialsURL string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		SQLitePath:              getEnv("SQLITE_PATH", "./data/nexusnu.db"),
		RedisURL:                os.Getenv("REDIS_URL"),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		TokenTTL:                getDuration("TOKEN_TTL", 7*24*time.Hour),
		UploadDir:               getEnv("UPLOAD_DIR", "./uploads"),
		CORSOrigins:             splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RateLimitWhitelist:      splitList(os.Getenv("RATE_LIMIT_WHITELIST")),
		MessagesPerHour:         getInt("MESSAGES_PER_HOUR", 50),
		AutoBlockEnabled:        os.Getenv("AUTO_BLOCK_ENABLED") == "true",
		LookupTimeout:           getDuration("LOOKUP_TIMEOUT", 5*time.Second),
		LookupCacheTTL:          getDuration("LOOKUP_CACHE_TTL", 24*time.Hour),
		ESCOURL:                 getEnv("ESCO_URL", "https://ec.europa.eu/esco/api/search"),
		CourseraVerifyURL:       getEnv("COURSERA_VERIFY_URL", "https://www.coursera.org/account/accomplishments/verify/"),
		MicrosoftCredentialsURL: getEnv("MICROSOFT_CREDENTIALS_URL", "https://learn.microsoft.com/api/credentials/"),
	}

	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == "" {
			panic("JWT_SECRET is required in production")
		}
	} else if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-me"
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
