package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Apify.BaseURL != "https://api.apify.com/v2" {
		t.Fatalf("unexpected base url %q", cfg.Apify.BaseURL)
	}
	if cfg.Monitor.MaxAttempts != 120 || cfg.Monitor.OneShotMaxAttempts != 60 {
		t.Fatalf("unexpected attempt budgets: %+v", cfg.Monitor)
	}
	if got := cfg.PollInterval(); got != 30*time.Second {
		t.Fatalf("expected 30s poll interval, got %v", got)
	}
	if !cfg.Webhook.RequireHTTPS {
		t.Fatal("expected https to be required by default")
	}
	if cfg.Apify.RequestsPerSecond != 10 || cfg.Apify.Burst != 5 {
		t.Fatalf("unexpected rate limits: %+v", cfg.Apify)
	}
	if cfg.Receiver.Path != "/webhook/apollo-data" {
		t.Fatalf("unexpected receiver path %q", cfg.Receiver.Path)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
apify:
  base_url: https://apify.internal/v2
  token: file-token
  actor_id: someone~actor
  request_timeout_seconds: 10
  dataset_timeout_seconds: 45
webhook:
  url: https://hooks.example.com/in
  timeout_seconds: 5
  success_timeout_seconds: 90
monitor:
  poll_interval_seconds: 2
  max_attempts: 7
  oneshot_max_attempts: 3
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
logging:
  development: false
db:
  dsn: postgres://localhost/monitor
  table: outcomes
storage:
  provider: memory
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Apify.Token != "file-token" || cfg.Apify.ActorID != "someone~actor" {
		t.Fatalf("expected apify overrides, got %+v", cfg.Apify)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Monitor.MaxAttempts != 7 || cfg.PollInterval() != 2*time.Second {
		t.Fatalf("expected monitor overrides, got %+v", cfg.Monitor)
	}
	if cfg.SuccessTimeout() != 90*time.Second || cfg.NotifyTimeout() != 5*time.Second {
		t.Fatalf("unexpected webhook timeouts %v/%v", cfg.SuccessTimeout(), cfg.NotifyTimeout())
	}
	if cfg.RequestTimeout() != 10*time.Second || cfg.DatasetTimeout() != 45*time.Second {
		t.Fatalf("unexpected apify timeouts %v/%v", cfg.RequestTimeout(), cfg.DatasetTimeout())
	}
	if cfg.DB.Table != "outcomes" || cfg.Storage.Provider != "memory" {
		t.Fatalf("expected db/storage overrides, got %+v %+v", cfg.DB, cfg.Storage)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("ValidateCredentials() error = %v", err)
	}
}

// Not parallel: mutates process environment.
func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("APIFY_TOKEN", "env-token")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/env")
	t.Setenv("APOLLO_ACTOR_ID", "env~actor")
	t.Setenv("MONITOR_MONITOR_MAX_ATTEMPTS", "12")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Apify.Token != "env-token" || cfg.Webhook.URL != "https://hooks.example.com/env" {
		t.Fatalf("expected legacy env names to bind, got %+v %+v", cfg.Apify, cfg.Webhook)
	}
	if cfg.Apify.ActorID != "env~actor" {
		t.Fatalf("expected actor id from env, got %q", cfg.Apify.ActorID)
	}
	if cfg.Monitor.MaxAttempts != 12 {
		t.Fatalf("expected prefixed env override, got %d", cfg.Monitor.MaxAttempts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func validConfig() Config {
	return Config{
		Apify: ApifyConfig{
			Token:                 "token",
			RequestTimeoutSeconds: 30,
			DatasetTimeoutSeconds: 60,
		},
		Webhook: WebhookConfig{
			URL:                   "https://hooks.example.com",
			RequireHTTPS:          true,
			TimeoutSeconds:        30,
			SuccessTimeoutSeconds: 60,
		},
		Monitor: MonitorConfig{PollIntervalSeconds: 30, MaxAttempts: 120, OneShotMaxAttempts: 60},
		Server:  ServerConfig{Port: 3000},
		Storage: StorageConfig{Provider: "local"},
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := validConfig()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "poll interval", mutate: func(c *Config) { c.Monitor.PollIntervalSeconds = 0 }, want: "monitor.poll_interval_seconds"},
		{name: "max attempts", mutate: func(c *Config) { c.Monitor.MaxAttempts = 0 }, want: "monitor.max_attempts"},
		{name: "oneshot attempts", mutate: func(c *Config) { c.Monitor.OneShotMaxAttempts = -1 }, want: "monitor.oneshot_max_attempts"},
		{name: "apify timeout", mutate: func(c *Config) { c.Apify.DatasetTimeoutSeconds = 0 }, want: "apify timeouts"},
		{name: "rate limit", mutate: func(c *Config) { c.Apify.RequestsPerSecond = -1 }, want: "apify rate limits"},
		{name: "webhook timeout", mutate: func(c *Config) { c.Webhook.TimeoutSeconds = 0 }, want: "webhook timeouts"},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "gcs bucket", mutate: func(c *Config) { c.Storage.Provider = "gcs" }, want: "storage.gcs_bucket"},
		{name: "unknown provider", mutate: func(c *Config) { c.Storage.Provider = "s3" }, want: "storage.provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:   "everything missing",
			mutate: func(c *Config) { c.Apify.Token = ""; c.Webhook.URL = "" },
			want:   []string{"apify.token", "webhook.url (WEBHOOK_URL) is required"},
		},
		{
			name:   "plain http",
			mutate: func(c *Config) { c.Webhook.URL = "http://hooks.example.com" },
			want:   []string{"must use https"},
		},
		{
			name: "plain http allowed",
			mutate: func(c *Config) {
				c.Webhook.URL = "http://localhost:8081/webhook"
				c.Webhook.RequireHTTPS = false
			},
		},
		{
			name:   "not a url",
			mutate: func(c *Config) { c.Webhook.URL = "hooks" },
			want:   []string{"not a valid URL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.ValidateCredentials()
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %v", tt.want)
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Fatalf("expected error containing %q, got %v", w, err)
				}
			}
		})
	}
}
