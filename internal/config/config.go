// Package config handles application configuration via environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all configurable values for the app, loaded once at startup.
type Config struct {
	Env  string
	Addr string

	Webhook  WebhookConfig
	Forward  ForwardConfig
	Storage  StorageConfig
	Provider ProviderConfig
	Email    EmailConfig
}

// WebhookConfig controls inbound webhook signature verification.
type WebhookConfig struct {
	SigningSecret string
	MaxAge        time.Duration
	Debug         bool
}

// ForwardConfig controls delivery of canonical events downstream.
type ForwardConfig struct {
	TargetURL           string
	AuthToken           string
	MaxAttempts         int
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	RequestTimeout      time.Duration
	RetryOn4xx          bool
	StoreFailedPayloads bool
}

// StorageConfig selects and namespaces the key-value backend. RedisAddr
// empty means the non-durable in-process store is used.
type StorageConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Namespace     string
	DefaultTTL    time.Duration
}

// ProviderConfig points at the voice-call provider API.
type ProviderConfig struct {
	APIKey          string
	BaseURL         string
	AgentID         string
	MaxCallDuration int
}

// EmailConfig points at the email provider used for call notifications.
// APIKey empty disables outbound notifications.
type EmailConfig struct {
	APIKey string
	APIURL string
	From   string
}

// Load reads environment variables and populates a Config struct,
// panicking on malformed or missing required values so the process
// fails fast at startup rather than per request.
func Load() *Config {
	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Addr: ":" + getEnv("PORT", "8080"),
		Webhook: WebhookConfig{
			SigningSecret: mustEnv("WEBHOOK_SIGNING_SECRET"),
			MaxAge:        time.Duration(getEnvInt("MAX_SIGNATURE_AGE_SECONDS", 300)) * time.Second,
			Debug:         getEnvBool("DEBUG_WEBHOOKS", false),
		},
		Forward: ForwardConfig{
			TargetURL:           mustEnv("FORWARD_URL"),
			AuthToken:           os.Getenv("FORWARD_AUTH_TOKEN"),
			MaxAttempts:         getEnvInt("FORWARD_MAX_RETRIES", 5),
			BaseDelay:           getEnvDuration("FORWARD_BASE_DELAY", 5*time.Second),
			MaxDelay:            getEnvDuration("FORWARD_MAX_DELAY", 5*time.Minute),
			RequestTimeout:      getEnvDuration("FORWARD_TIMEOUT", 10*time.Second),
			RetryOn4xx:          getEnvBool("FORWARD_RETRY_ON_4XX", false),
			StoreFailedPayloads: getEnvBool("STORE_FAILED_PAYLOADS", true),
		},
		Storage: StorageConfig{
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			Namespace:     getEnv("STORAGE_NAMESPACE", "phone-agent"),
			DefaultTTL:    time.Duration(getEnvInt("STORAGE_DEFAULT_TTL_SECONDS", 0)) * time.Second,
		},
		Provider: ProviderConfig{
			APIKey:          mustEnv("CALL_PROVIDER_API_KEY"),
			BaseURL:         getEnv("CALL_PROVIDER_BASE_URL", "https://api.bland.ai"),
			AgentID:         os.Getenv("CALL_PROVIDER_AGENT_ID"),
			MaxCallDuration: getEnvInt("MAX_CALL_DURATION_MINUTES", 30),
		},
		Email: EmailConfig{
			APIKey: os.Getenv("EMAIL_API_KEY"),
			APIURL: getEnv("EMAIL_API_URL", "https://api.resend.com"),
			From:   getEnv("EMAIL_FROM", "calls@example.com"),
		},
	}

	validate(cfg)
	return cfg
}

func validate(cfg *Config) {
	if cfg.Forward.MaxAttempts <= 0 {
		log.Panicf("FORWARD_MAX_RETRIES must be > 0")
	}
	if cfg.Forward.BaseDelay <= 0 {
		log.Panicf("FORWARD_BASE_DELAY must be > 0")
	}
	if cfg.Webhook.MaxAge <= 0 {
		log.Panicf("MAX_SIGNATURE_AGE_SECONDS must be > 0")
	}
	if cfg.Provider.MaxCallDuration <= 0 {
		log.Panicf("MAX_CALL_DURATION_MINUTES must be > 0")
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Panicf("missing required env var: %s", key)
	}
	return val
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Panicf("invalid int for %s: %v", key, err)
	}
	return i
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Panicf("invalid bool for %s: %v", key, err)
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Panicf("invalid duration for %s: %v", key, err)
	}
	return d
}
