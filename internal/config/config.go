// Package config loads and validates monitor configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Apify    ApifyConfig    `mapstructure:"apify"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Receiver ReceiverConfig `mapstructure:"receiver"`
}

// ApifyConfig points at the scraping job API.
type ApifyConfig struct {
	BaseURL               string `mapstructure:"base_url"`
	Token                 string `mapstructure:"token"`
	ActorID               string `mapstructure:"actor_id"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	DatasetTimeoutSeconds int    `mapstructure:"dataset_timeout_seconds"`

	// RequestsPerSecond caps API traffic per host across all loops; 0 disables the cap.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// WebhookConfig controls where and how results are delivered.
type WebhookConfig struct {
	URL                   string `mapstructure:"url"`
	RequireHTTPS          bool   `mapstructure:"require_https"`
	TimeoutSeconds        int    `mapstructure:"timeout_seconds"`
	SuccessTimeoutSeconds int    `mapstructure:"success_timeout_seconds"`
}

// MonitorConfig sets polling cadence and attempt budgets.
type MonitorConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	MaxAttempts         int `mapstructure:"max_attempts"`
	OneShotMaxAttempts  int `mapstructure:"oneshot_max_attempts"`
}

// ServerConfig controls the HTTP-triggered monitor.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// Address is the base URL the status/stop commands use to reach a running server.
	Address string `mapstructure:"address"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// DBConfig controls the optional outcome audit table.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for outcome notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// StorageConfig selects where the receiver archives payloads.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ReceiverConfig configures the reference webhook receiver.
type ReceiverConfig struct {
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.token", "")
	v.SetDefault("apify.actor_id", "code_crafter~apollo-io-scraper")
	v.SetDefault("apify.request_timeout_seconds", 30)
	v.SetDefault("apify.dataset_timeout_seconds", 60)
	v.SetDefault("apify.requests_per_second", 10)
	v.SetDefault("apify.burst", 5)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.require_https", true)
	v.SetDefault("webhook.timeout_seconds", 30)
	v.SetDefault("webhook.success_timeout_seconds", 60)
	v.SetDefault("monitor.poll_interval_seconds", 30)
	v.SetDefault("monitor.max_attempts", 120)
	v.SetDefault("monitor.oneshot_max_attempts", 60)
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.address", "http://localhost:3000")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "run_outcomes")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("receiver.port", 8081)
	v.SetDefault("receiver.path", "/webhook/apollo-data")
}

// bindLegacyEnv keeps the variable names existing deployments already export.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"apify.token":    {"MONITOR_APIFY_TOKEN", "APIFY_TOKEN"},
		"apify.actor_id": {"MONITOR_APIFY_ACTOR_ID", "APOLLO_ACTOR_ID"},
		"webhook.url":    {"MONITOR_WEBHOOK_URL", "WEBHOOK_URL"},
		"server.port":    {"MONITOR_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces reasonable limits on numeric settings.
func (c Config) Validate() error {
	if c.Monitor.PollIntervalSeconds <= 0 {
		return fmt.Errorf("monitor.poll_interval_seconds must be > 0")
	}
	if c.Monitor.MaxAttempts <= 0 {
		return fmt.Errorf("monitor.max_attempts must be > 0")
	}
	if c.Monitor.OneShotMaxAttempts <= 0 {
		return fmt.Errorf("monitor.oneshot_max_attempts must be > 0")
	}
	if c.Apify.RequestTimeoutSeconds <= 0 || c.Apify.DatasetTimeoutSeconds <= 0 {
		return fmt.Errorf("apify timeouts must be > 0")
	}
	if c.Apify.RequestsPerSecond < 0 || c.Apify.Burst < 0 {
		return fmt.Errorf("apify rate limits must be >= 0")
	}
	if c.Webhook.TimeoutSeconds <= 0 || c.Webhook.SuccessTimeoutSeconds <= 0 {
		return fmt.Errorf("webhook timeouts must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Provider {
	case "local", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("storage.provider %q is not supported", c.Storage.Provider)
	}
	return nil
}

// ValidateCredentials reports every missing or malformed setting the monitor core needs.
func (c Config) ValidateCredentials() error {
	var errs []error
	if strings.TrimSpace(c.Apify.Token) == "" {
		errs = append(errs, errors.New("apify.token (APIFY_TOKEN) is required"))
	}
	if strings.TrimSpace(c.Webhook.URL) == "" {
		errs = append(errs, errors.New("webhook.url (WEBHOOK_URL) is required"))
	} else if err := c.validateWebhookURL(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) validateWebhookURL() error {
	u, err := url.Parse(c.Webhook.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("webhook.url is not a valid URL")
	}
	if c.Webhook.RequireHTTPS && u.Scheme != "https" {
		return errors.New("webhook.url must use https")
	}
	return nil
}

// PollInterval is the fixed delay between status checks.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalSeconds) * time.Second
}

// RequestTimeout bounds a single run-status call.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Apify.RequestTimeoutSeconds) * time.Second
}

// DatasetTimeout bounds a single dataset download.
func (c Config) DatasetTimeout() time.Duration {
	return time.Duration(c.Apify.DatasetTimeoutSeconds) * time.Second
}

// NotifyTimeout bounds a failure notification POST.
func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutSeconds) * time.Second
}

// SuccessTimeout bounds the (possibly large) success delivery POST.
func (c Config) SuccessTimeout() time.Duration {
	return time.Duration(c.Webhook.SuccessTimeoutSeconds) * time.Second
}
