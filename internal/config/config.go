package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL      string
	Port             string
	JWTSecret        string
	TokenTTL         time.Duration
	WebhookSecret    string
	RateLimitWebhook RateLimitConfig
	StorageTimeout   time.Duration
	DedupWindow      time.Duration
	AMQPURL          string
	SyncExchange     string
	SyncRoutingKey   string
	SyncPollInterval time.Duration
	SyncMaxAttempts  int
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Port:             getEnv("PORT", "8080"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		TokenTTL:         parseDuration(getEnv("JWT_TTL", "24h"), 24*time.Hour),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		StorageTimeout:   parseDuration(getEnv("STORAGE_TIMEOUT", "5s"), 5*time.Second),
		DedupWindow:      parseDuration(getEnv("DEDUP_WINDOW", "24h"), 24*time.Hour),
		AMQPURL:          os.Getenv("AMQP_URL"),
		SyncExchange:     getEnv("SYNC_EXCHANGE", "crm.sync"),
		SyncRoutingKey:   getEnv("SYNC_ROUTING_KEY", "lead.sync"),
		SyncPollInterval: parseDuration(getEnv("SYNC_POLL_INTERVAL", "5s"), 5*time.Second),
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_WEBHOOK", "60/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WEBHOOK value: %w", err)
	}
	cfg.RateLimitWebhook = rl

	attempts, err := strconv.Atoi(getEnv("SYNC_MAX_ATTEMPTS", "8"))
	if err != nil || attempts <= 0 {
		return nil, fmt.Errorf("invalid SYNC_MAX_ATTEMPTS value: %q", getEnv("SYNC_MAX_ATTEMPTS", "8"))
	}
	cfg.SyncMaxAttempts = attempts

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil {
		return fallback
	}
	return d
}
