package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string

	// Extraction pipeline tuning.
	ValidationThreshold float64
	EscalationThreshold float64

	// Coaching conversation state.
	HistoryLimit      int
	CoachingMaxTokens int
	ConversationTTL   time.Duration
	ConversationCap   int

	// Per-user request limits.
	RequestsPerMinute int
	RequestsPerDay    int
}

func Load() Config {
	return Config{
		Port:            envInt("NUANCE_PORT", 8751),
		NatsURL:         envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("NUANCE_MODEL", "claude-sonnet-4-20250514"),

		ValidationThreshold: envFloat("NUANCE_VALIDATION_THRESHOLD", 0.7),
		EscalationThreshold: envFloat("NUANCE_ESCALATION_THRESHOLD", 0.6),

		HistoryLimit:      envInt("NUANCE_HISTORY_LIMIT", 10),
		CoachingMaxTokens: envInt("NUANCE_COACHING_MAX_TOKENS", 500),
		ConversationTTL:   envDuration("NUANCE_CONVERSATION_TTL", time.Hour),
		ConversationCap:   envInt("NUANCE_CONVERSATION_CAP", 1000),

		RequestsPerMinute: envInt("NUANCE_REQUESTS_PER_MINUTE", 60),
		RequestsPerDay:    envInt("NUANCE_REQUESTS_PER_DAY", 500),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
