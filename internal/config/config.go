// Package config provides configuration loading and validation from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration for the bot integration gateway.
type Config struct {
	LogLevel          string        // debug, info, warn, error
	ListenAddr        string        // Server listen address (e.g., ":8080")
	MetricsListenAddr string        // Metrics listener address (e.g., "localhost:9090")
	DatabasePath      string        // Optional: SQLite database path (empty = in-memory stores)
	IntegrationToken  string        // Required: shared secret for the bot service
	AdminBotUserIDs   []string      // botUserIds allowed to call admin endpoints
	Enabled           bool          // Whether the integration is enabled
	AgentID           string        // Identifier reported to the bot service in /status
	RateLimitMax      int           // Max requests per window per identifier
	RateLimitWindow   time.Duration // Fixed rate-limit window duration
}

// Load parses configuration from environment variables.
// Everything except the integration token has a sensible default.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:          envOr("LOG_LEVEL", "info"),
		ListenAddr:        envOr("LISTEN_ADDR", ":8080"),
		MetricsListenAddr: envOr("METRICS_LISTEN_ADDR", "localhost:9090"),
		DatabasePath:      os.Getenv("DATABASE_PATH"),
		IntegrationToken:  os.Getenv("BOTGATE_INTEGRATION_TOKEN"),
		AgentID:           envOr("BOTGATE_AGENT_ID", "clawdbot"),
		Enabled:           true,
		RateLimitMax:      100,
		RateLimitWindow:   60 * time.Second,
	}

	if v := os.Getenv("BOTGATE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BOTGATE_ENABLED value %q: %w", v, err)
		}
		cfg.Enabled = enabled
	}

	if v := os.Getenv("BOTGATE_ADMIN_BOT_USER_IDS"); v != "" {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.AdminBotUserIDs = append(cfg.AdminBotUserIDs, id)
			}
		}
	}

	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_MAX value %q", v)
		}
		cfg.RateLimitMax = n
	}

	if v := os.Getenv("RATE_LIMIT_WINDOW_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS value %q", v)
		}
		cfg.RateLimitWindow = time.Duration(n) * time.Second
	}

	return cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if c.IntegrationToken == "" {
		return fmt.Errorf("BOTGATE_INTEGRATION_TOKEN environment variable is required")
	}
	return nil
}

// Presence reports which configuration variables are set, without exposing
// any values. Used by the admin config endpoint.
func (c *Config) Presence() map[string]bool {
	return map[string]bool{
		"integrationToken": c.IntegrationToken != "",
		"adminBotUserIds":  len(c.AdminBotUserIDs) > 0,
		"agentId":          c.AgentID != "",
		"databasePath":     c.DatabasePath != "",
		"enabled":          c.Enabled,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
