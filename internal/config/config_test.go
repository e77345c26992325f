package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_LEVEL", "LISTEN_ADDR", "METRICS_LISTEN_ADDR", "DATABASE_PATH",
		"BOTGATE_INTEGRATION_TOKEN", "BOTGATE_ADMIN_BOT_USER_IDS",
		"BOTGATE_ENABLED", "BOTGATE_AGENT_ID", "RATE_LIMIT_MAX",
		"RATE_LIMIT_WINDOW_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.MetricsListenAddr != "localhost:9090" {
		t.Errorf("MetricsListenAddr = %q", cfg.MetricsListenAddr)
	}
	if !cfg.Enabled {
		t.Error("Enabled should default to true")
	}
	if cfg.RateLimitMax != 100 {
		t.Errorf("RateLimitMax = %d, want 100", cfg.RateLimitMax)
	}
	if cfg.RateLimitWindow != 60*time.Second {
		t.Errorf("RateLimitWindow = %v, want 60s", cfg.RateLimitWindow)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOTGATE_INTEGRATION_TOKEN", "secret")
	t.Setenv("BOTGATE_ADMIN_BOT_USER_IDS", "bot_a, bot_b ,,")
	t.Setenv("BOTGATE_ENABLED", "false")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.AdminBotUserIDs) != 2 || cfg.AdminBotUserIDs[0] != "bot_a" || cfg.AdminBotUserIDs[1] != "bot_b" {
		t.Errorf("AdminBotUserIDs = %v", cfg.AdminBotUserIDs)
	}
	if cfg.Enabled {
		t.Error("Enabled should be false")
	}
	if cfg.RateLimitMax != 5 || cfg.RateLimitWindow != 10*time.Second {
		t.Errorf("rate limit = %d/%v", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad enabled", "BOTGATE_ENABLED", "maybe"},
		{"bad max", "RATE_LIMIT_MAX", "lots"},
		{"negative max", "RATE_LIMIT_MAX", "-1"},
		{"bad window", "RATE_LIMIT_WINDOW_SECONDS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load should reject %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should require the integration token")
	}

	cfg.IntegrationToken = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestPresenceNeverExposesValues(t *testing.T) {
	cfg := &Config{
		IntegrationToken: "super-secret-value",
		AdminBotUserIDs:  []string{"bot_a"},
		AgentID:          "agent",
	}

	presence := cfg.Presence()
	if !presence["integrationToken"] {
		t.Error("presence should report the token as set")
	}
	if !presence["adminBotUserIds"] || !presence["agentId"] {
		t.Error("presence should report configured fields as set")
	}
	if presence["databasePath"] {
		t.Error("presence should report unset fields as false")
	}
}
