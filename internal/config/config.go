// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat server.
type Config struct {
	Port   string
	Env    string
	DBPath string

	// Liveness sweep
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	// Agent collaborator
	AgentTimeout time.Duration

	// Inbound A2A identity
	A2AAgentID   string
	A2AAgentName string

	// WebSocket origin allowlist. Empty means all origins are accepted.
	AllowedOrigins []string
}

// Load reads configuration from environment variables. In development, a
// .env file is honored if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		DBPath:        getEnv("DB_PATH", "data/chat.db"),
		IdleTimeout:   getDurationSeconds("IDLE_TIMEOUT", 300),
		SweepInterval: getDurationSeconds("SWEEP_INTERVAL", 60),
		AgentTimeout:  getDurationSeconds("AGENT_TIMEOUT", 30),

		A2AAgentID:   getEnv("A2A_AGENT_ID", "ai-chat-agent-001"),
		A2AAgentName: getEnv("A2A_AGENT_NAME", "AI Chat Agent"),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var values []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func getDurationSeconds(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}
