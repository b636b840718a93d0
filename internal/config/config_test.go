// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if !cfg.Audit.Enabled {
		t.Error("Audit.Enabled = false, want true by default")
	}
	if cfg.Audit.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", cfg.Audit.RetentionDays)
	}
	if cfg.Queue.Topic != "audit.log" {
		t.Errorf("Queue.Topic = %q", cfg.Queue.Topic)
	}
	// 3 total attempts per job: 1 initial + 2 retries.
	if cfg.Queue.RetryMaxRetries != 2 {
		t.Errorf("RetryMaxRetries = %d, want 2", cfg.Queue.RetryMaxRetries)
	}
	if cfg.Queue.RetryInitialInterval != 2*time.Second {
		t.Errorf("RetryInitialInterval = %v, want 2s", cfg.Queue.RetryInitialInterval)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")
	t.Setenv("AUDITRAIL_SERVER_PORT", "9999")
	t.Setenv("AUDITRAIL_AUDIT_ENABLED", "false")
	t.Setenv("AUDITRAIL_AUDIT_RETENTION_DAYS", "30")
	t.Setenv("AUDITRAIL_QUEUE_RETRY_MAX_RETRIES", "5")
	t.Setenv("AUDITRAIL_TOKEN_STORE_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Audit.Enabled {
		t.Error("Audit.Enabled = true, want false")
	}
	if cfg.Audit.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.Audit.RetentionDays)
	}
	if cfg.Queue.RetryMaxRetries != 5 {
		t.Errorf("RetryMaxRetries = %d, want 5", cfg.Queue.RetryMaxRetries)
	}
	if cfg.TokenStore.TTL != 30*time.Minute {
		t.Errorf("TokenStore.TTL = %v, want 30m", cfg.TokenStore.TTL)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 7070
audit:
  retention_days: 14
queue:
  topic: custom.audit
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Audit.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d, want 14", cfg.Audit.RetentionDays)
	}
	if cfg.Queue.Topic != "custom.audit" {
		t.Errorf("Queue.Topic = %q, want custom.audit", cfg.Queue.Topic)
	}
	// Untouched values keep defaults.
	if cfg.Queue.PoisonTopic != "audit.dlq" {
		t.Errorf("Queue.PoisonTopic = %q, want default", cfg.Queue.PoisonTopic)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("AUDITRAIL_SERVER_PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 6060 {
		t.Errorf("Server.Port = %d, want env override 6060", cfg.Server.Port)
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")
	t.Setenv("AUDITRAIL_SERVER_PORT", "-1")

	if _, err := Load(); err == nil {
		t.Error("expected validation error for negative port")
	}
}

func TestEnvTransform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"AUDITRAIL_SERVER_PORT", "server.port"},
		{"AUDITRAIL_AUDIT_RETENTION_DAYS", "audit.retention_days"},
		{"AUDITRAIL_QUEUE_RETRY_MAX_RETRIES", "queue.retry_max_retries"},
		{"AUDITRAIL_TOKEN_STORE_TTL", "token_store.ttl"},
		{"AUDITRAIL_TOKEN_STORE_PATH", "token_store.path"},
		{"AUDITRAIL_DATABASE_PATH", "database.path"},
		{"AUDITRAIL_LOGGING_LEVEL", "logging.level"},
	}

	for _, tc := range tests {
		if got := envTransform(tc.in); got != tc.want {
			t.Errorf("envTransform(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := defaultConfig()
	if err := valid.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.Server.Port = -1 }},
		{"zero retention", func(c *Config) { c.Audit.RetentionDays = 0 }},
		{"empty topic", func(c *Config) { c.Queue.Topic = "" }},
		{"negative retries", func(c *Config) { c.Queue.RetryMaxRetries = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
