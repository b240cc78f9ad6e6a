package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port                int
	NatsURL             string
	NatsToken           string
	DatabaseURL         string
	LogLevel            string
	AnthropicAPIKey     string
	AnthropicModel      string
	SlackBotToken       string
	SlackChannel        string
	APIToken            string
	GraphPath           string
	ConfidenceThreshold float64
	MaxRetries          int
	ApprovalToken       string
}

func Load() Config {
	return Config{
		Port:                envInt("VOIGHT_PORT", 8760),
		NatsURL:             envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:           envStr("NATS_TOKEN", ""),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		LogLevel:            envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey:     envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      envStr("VOIGHT_MODEL", "claude-sonnet-4-20250514"),
		SlackBotToken:       envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:        envStr("SLACK_INTAKE_CHANNEL", ""),
		APIToken:            envStr("VOIGHT_API_TOKEN", ""),
		GraphPath:           envStr("VOIGHT_GRAPH_PATH", ""),
		ConfidenceThreshold: envFloat("VOIGHT_CONFIDENCE_THRESHOLD", 0.7),
		MaxRetries:          envInt("VOIGHT_MAX_RETRIES", 2),
		ApprovalToken:       envStr("VOIGHT_APPROVAL_TOKEN", "approved"),
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
