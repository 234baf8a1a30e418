// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/api"
	"github.com/JakeFAU/apify-webhook-monitor/internal/apify"
	"github.com/JakeFAU/apify-webhook-monitor/internal/clock/system"
	"github.com/JakeFAU/apify-webhook-monitor/internal/config"
	"github.com/JakeFAU/apify-webhook-monitor/internal/httpclient"
	"github.com/JakeFAU/apify-webhook-monitor/internal/id/uuid"
	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
	pubsubpublisher "github.com/JakeFAU/apify-webhook-monitor/internal/publisher/pubsub"
	"github.com/JakeFAU/apify-webhook-monitor/internal/ratelimit"
	"github.com/JakeFAU/apify-webhook-monitor/internal/receiver"
	gcsstore "github.com/JakeFAU/apify-webhook-monitor/internal/storage/gcs"
	localstore "github.com/JakeFAU/apify-webhook-monitor/internal/storage/local"
	memstore "github.com/JakeFAU/apify-webhook-monitor/internal/storage/memory"
	"github.com/JakeFAU/apify-webhook-monitor/internal/storage/postgres"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

// App holds the shared, long-lived services for one command invocation.
// Remote resources (Postgres, Pub/Sub, GCS) are opened on first use so that
// commands which never touch them do not need credentials.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  *system.Clock
	http   *httpclient.Client
	apify  *apify.Client

	mu        sync.Mutex
	observers []monitor.Observer
	obsReady  bool
	blobs     receiver.BlobStore
	closers   []func() error
	closed    bool
}

// New creates the container from a validated configuration.
func New(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpc := httpclient.New(httpclient.Config{})
	return &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		http:   httpc,
		apify: apify.NewClient(apify.Config{
			BaseURL:        cfg.Apify.BaseURL,
			Token:          cfg.Apify.Token,
			RequestTimeout: cfg.RequestTimeout(),
			DatasetTimeout: cfg.DatasetTimeout(),
		}, apify.Throttle(httpc, ratelimit.New(ratelimit.Config{
			RPS:   cfg.Apify.RequestsPerSecond,
			Burst: cfg.Apify.Burst,
		})), logger),
	}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Clock returns the wall clock.
func (a *App) Clock() *system.Clock {
	return a.clock
}

// HTTP returns the shared HTTP client.
func (a *App) HTTP() *httpclient.Client {
	return a.http
}

// Apify returns the job API client.
func (a *App) Apify() *apify.Client {
	return a.apify
}

// Dispatcher returns a webhook dispatcher that identifies itself as userAgent.
func (a *App) Dispatcher(userAgent string) *webhook.Dispatcher {
	return webhook.NewDispatcher(webhook.Config{
		URL:            a.cfg.Webhook.URL,
		UserAgent:      userAgent,
		SuccessTimeout: a.cfg.SuccessTimeout(),
		NotifyTimeout:  a.cfg.NotifyTimeout(),
	}, a.http, a.logger)
}

// MonitorOptions distinguishes the one-shot watcher from the multi-run server.
type MonitorOptions struct {
	MaxAttempts int
	Sender      string
	UserAgent   string
	Background  bool
}

// NewMonitor assembles a Monitor with a fresh registry and the configured observers.
func (a *App) NewMonitor(ctx context.Context, opts MonitorOptions) (*monitor.Monitor, error) {
	observers, err := a.Observers(ctx)
	if err != nil {
		return nil, err
	}
	cfg := monitor.Config{
		PollInterval: a.cfg.PollInterval(),
		MaxAttempts:  opts.MaxAttempts,
		Sender:       opts.Sender,
		WebhookURL:   a.cfg.Webhook.URL,
		Background:   opts.Background,
	}
	return monitor.New(
		cfg,
		a.apify,
		a.apify,
		a.Dispatcher(opts.UserAgent),
		memstore.NewRegistry(),
		a.clock,
		a.logger.Named("monitor"),
		observers...,
	), nil
}

// Observers opens the outcome sinks enabled in configuration.
func (a *App) Observers(ctx context.Context) ([]monitor.Observer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.obsReady {
		return a.observers, nil
	}

	var observers []monitor.Observer
	if a.cfg.DB.DSN != "" {
		store, err := postgres.NewOutcomeStore(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
		}, uuid.New())
		if err != nil {
			return nil, fmt.Errorf("initialize outcome store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("initialize outcome store: %w", err)
		}
		a.logger.Info("recording outcomes in postgres", zap.String("table", a.cfg.DB.Table))
		observers = append(observers, store)
	}
	if a.cfg.PubSub.TopicName != "" {
		pub, err := pubsubpublisher.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("initialize outcome publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		a.logger.Info("publishing outcomes", zap.String("topic", a.cfg.PubSub.TopicName))
		observers = append(observers, pub)
	}

	a.observers, a.obsReady = observers, true
	return observers, nil
}

// BlobStore opens the archive backend selected by storage.provider.
func (a *App) BlobStore(ctx context.Context) (receiver.BlobStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.blobs != nil {
		return a.blobs, nil
	}

	sc := a.cfg.Storage
	switch sc.Provider {
	case "memory":
		a.blobs = memstore.NewBlobStore()
	case "local":
		store, err := localstore.New(localstore.Config{BaseDir: sc.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("initialize local storage: %w", err)
		}
		a.blobs = store
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: sc.GCSBucket, Prefix: sc.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("initialize gcs storage: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.blobs = store
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", sc.Provider)
	}
	a.logger.Info("archiving received payloads", zap.String("provider", sc.Provider))
	return a.blobs, nil
}

// APIClient returns a client for the server at server.address.
func (a *App) APIClient() *api.Client {
	return api.NewClient(a.cfg.Server.Address, a.cfg.Auth.APIKey, a.http)
}

// Closed reports whether Close has run.
func (a *App) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Close releases every opened resource. It is safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
