// Package app_test contains unit tests for the app package.
package app_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/app"
	"github.com/JakeFAU/apify-webhook-monitor/internal/config"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Apify: config.ApifyConfig{
			BaseURL:               "https://api.example.test/v2",
			Token:                 "tok",
			RequestTimeoutSeconds: 30,
			DatasetTimeoutSeconds: 60,
		},
		Webhook: config.WebhookConfig{
			URL:                   "https://hooks.example.test/apollo",
			TimeoutSeconds:        30,
			SuccessTimeoutSeconds: 60,
		},
		Monitor: config.MonitorConfig{PollIntervalSeconds: 1, MaxAttempts: 3, OneShotMaxAttempts: 2},
		Server:  config.ServerConfig{Port: 3000, Address: "http://localhost:3000"},
		Storage: config.StorageConfig{Provider: "memory"},
	}
}

func TestNewMonitorWithoutObservers(t *testing.T) {
	t.Parallel()

	a := app.New(testConfig(t), zap.NewNop())
	defer func() { require.NoError(t, a.Close()) }()

	observers, err := a.Observers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, observers)

	mon, err := a.NewMonitor(context.Background(), app.MonitorOptions{
		MaxAttempts: 2,
		Sender:      webhook.SenderBackgroundMonitor,
		UserAgent:   webhook.UserAgentBackgroundMonitor,
		Background:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, mon.Status().ActiveRuns)
	require.NoError(t, mon.Close(context.Background()))
}

func TestDispatcherTargetsConfiguredURL(t *testing.T) {
	t.Parallel()

	a := app.New(testConfig(t), nil)
	assert.Equal(t, "https://hooks.example.test/apollo", a.Dispatcher(webhook.UserAgentSender).URL())
	assert.NotNil(t, a.APIClient())
	assert.NotNil(t, a.Apify())
}

func TestBlobStoreProviders(t *testing.T) {
	t.Parallel()

	t.Run("Memory", func(t *testing.T) {
		t.Parallel()
		a := app.New(testConfig(t), nil)
		first, err := a.BlobStore(context.Background())
		require.NoError(t, err)
		second, err := a.BlobStore(context.Background())
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("Local", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Storage = config.StorageConfig{Provider: "local", BaseDir: t.TempDir()}
		a := app.New(cfg, nil)
		store, err := a.BlobStore(context.Background())
		require.NoError(t, err)
		uri, err := store.PutObject(context.Background(), "x.json", "application/json", bytes.NewReader([]byte("{}")))
		require.NoError(t, err)
		assert.Contains(t, uri, "file://")
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Storage.Provider = "s3"
		_, err := app.New(cfg, nil).BlobStore(context.Background())
		assert.ErrorContains(t, err, "unknown storage provider")
	})
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	a := app.New(testConfig(t), nil)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
