package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Booking windows. Entities carry the defaults; these let an operator
	// tighten or relax them without a deploy.
	MinBookingAdvance  time.Duration
	CancellationWindow time.Duration
	GraceWindow        time.Duration

	NoShowSweepInterval time.Duration
	NoShowLookbackDays  int
	NoShowBatchSize     int

	SlotExpiryInterval time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		MinBookingAdvance:  getEnvAsDuration("BOOKING_MIN_ADVANCE", 60*time.Minute),
		CancellationWindow: getEnvAsDuration("CANCELLATION_WINDOW", 120*time.Minute),
		GraceWindow:        getEnvAsDuration("GRACE_WINDOW", 5*time.Minute),

		NoShowSweepInterval: getEnvAsDuration("NOSHOW_SWEEP_INTERVAL", time.Hour),
		NoShowLookbackDays:  getEnvAsInt("NOSHOW_LOOKBACK_DAYS", 3),
		NoShowBatchSize:     getEnvAsInt("NOSHOW_BATCH_SIZE", 500),

		SlotExpiryInterval: getEnvAsDuration("SLOT_EXPIRY_INTERVAL", 6*time.Hour),

		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 25),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
