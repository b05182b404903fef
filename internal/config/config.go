package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// Scheduling
	Timezone           string
	BookingHorizonDays int

	// Chat assistant
	ChatSessionTTL time.Duration
	ChatRateLimit  float64
	ChatRateBurst  int

	// Daily digest
	DigestEnabled    bool
	DigestSchedule   string
	DigestRecipients []string

	// Email delivery for the digest: "sendgrid", "ses" or empty to log only.
	EmailProvider  string
	EmailFrom      string
	EmailFromName  string
	SendGridAPIKey string
	AWSRegion      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		Timezone:           getEnv("SPA_TIMEZONE", "Local"),
		BookingHorizonDays: getEnvAsInt("BOOKING_HORIZON_DAYS", 45),

		ChatSessionTTL: getEnvAsDuration("CHAT_SESSION_TTL", 30*time.Minute),
		ChatRateLimit:  getEnvAsFloat("CHAT_RATE_LIMIT", 2),
		ChatRateBurst:  getEnvAsInt("CHAT_RATE_BURST", 10),

		DigestEnabled:    getEnvAsBool("DIGEST_ENABLED", false),
		DigestSchedule:   getEnv("DIGEST_SCHEDULE", "0 20 * * *"),
		DigestRecipients: getEnvAsList("DIGEST_RECIPIENTS"),

		EmailProvider:  strings.ToLower(getEnv("EMAIL_PROVIDER", "")),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Spa Desk"),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
	}
}

// Location resolves the configured timezone, falling back to the server's local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
