package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Backend proxy in front of the payment gateway
	GatewayBaseURL string
	HTTPTimeout    time.Duration
	SimulationMode bool // fabricate gateway responses on transport failure (dev only)

	// Checkout timings
	PollInterval       time.Duration
	PollTimeout        time.Duration
	DisplayDelay       time.Duration
	SessionTTL         time.Duration
	DefaultRedirectURL string

	// Audit recording (best-effort)
	AuditMaxRetries     int
	AuditInitialBackoff time.Duration
	AuditMaxConcurrency int

	// Observability
	OTLPEndpoint string

	// HTTP surface
	CORSAllowedOrigins []string

	// Admin / JWT
	AdminPasswordHash string
	JWTSecret         string
	JWTAdminTTL       time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GatewayBaseURL: strings.TrimRight(getEnv("GATEWAY_BASE_URL", "http://localhost:8081"), "/"),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		SimulationMode: getEnvBool("SIMULATION_MODE", false),

		PollInterval:       getEnvDuration("POLL_INTERVAL", 3*time.Second),
		PollTimeout:        getEnvDuration("POLL_TIMEOUT", 10*time.Minute),
		DisplayDelay:       getEnvDuration("DISPLAY_DELAY", 2*time.Second),
		SessionTTL:         getEnvDuration("SESSION_TTL", 30*time.Minute),
		DefaultRedirectURL: getEnv("DEFAULT_REDIRECT_URL", ""),

		AuditMaxRetries:     getEnvInt("AUDIT_MAX_RETRIES", 3),
		AuditInitialBackoff: getEnvDuration("AUDIT_INITIAL_BACKOFF", 200*time.Millisecond),
		AuditMaxConcurrency: getEnvInt("AUDIT_MAX_CONCURRENCY", 16),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", "checkout-default-dev-secret-change-me"),
		JWTAdminTTL:       getEnvDuration("JWT_ADMIN_TTL", 15*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
