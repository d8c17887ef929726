package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	PublicBaseURL      string
	LogLevel           string
	CORSAllowedOrigins []string
	// CatalogPath points at a YAML catalog. Empty uses the bundled one.
	CatalogPath string

	// Chat provider: gemini or bedrock
	ChatProvider     string
	GeminiAPIKey     string
	GeminiModelID    string
	BedrockModelID   string
	ChatTurnTimeout  time.Duration
	ChatWebSearch    bool
	BookingStepDelay time.Duration

	// Visitors
	VisitorIdleTTL       time.Duration
	VisitorSweepInterval time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Chat rate limiting. Redis is used when RedisAddr is set.
	RedisAddr              string
	RedisPassword          string
	RedisTLS               bool
	ChatRateLimitPerMinute int

	// Doctor notification email: none, sendgrid or ses
	EmailProvider     string
	SendGridAPIKey    string
	EmailFromAddress  string
	EmailFromName     string
	DoctorNotifyEmail string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		CatalogPath:        getEnv("CATALOG_PATH", ""),

		ChatProvider:     strings.ToLower(strings.TrimSpace(getEnv("CHAT_PROVIDER", "gemini"))),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", ""),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		ChatTurnTimeout:  getEnvAsDuration("CHAT_TURN_TIMEOUT", 60*time.Second),
		ChatWebSearch:    getEnvAsBool("CHAT_WEB_SEARCH", true),
		BookingStepDelay: getEnvAsDuration("BOOKING_STEP_DELAY", 800*time.Millisecond),

		VisitorIdleTTL:       getEnvAsDuration("VISITOR_IDLE_TTL", 30*time.Minute),
		VisitorSweepInterval: getEnvAsDuration("VISITOR_SWEEP_INTERVAL", time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisTLS:               getEnvAsBool("REDIS_TLS", false),
		ChatRateLimitPerMinute: getEnvAsInt("CHAT_RATE_LIMIT_PER_MINUTE", 20),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Clinic Assistant"),
		DoctorNotifyEmail: getEnv("DOCTOR_NOTIFY_EMAIL", ""),
	}
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
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

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
