package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/httpclient"
	"github.com/JakeFAU/apify-webhook-monitor/internal/metrics"
)

// DispatchError reports a delivery that did not reach a 2xx response.
// StatusCode is zero when no response was received.
type DispatchError struct {
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook delivery failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("webhook delivery failed: %v", e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Config controls a Dispatcher.
type Config struct {
	URL            string
	UserAgent      string
	SuccessTimeout time.Duration
	NotifyTimeout  time.Duration
}

// Dispatcher posts payloads to a single webhook URL.
type Dispatcher struct {
	client *httpclient.Client
	cfg    Config
	logger *zap.Logger
}

// NewDispatcher builds a Dispatcher that identifies itself with cfg.UserAgent.
func NewDispatcher(cfg Config, client *httpclient.Client, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SuccessTimeout <= 0 {
		cfg.SuccessTimeout = 60 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}
	if cfg.UserAgent != "" {
		client = client.WithUserAgent(cfg.UserAgent)
	}
	return &Dispatcher{client: client, cfg: cfg, logger: logger}
}

// URL returns the delivery target.
func (d *Dispatcher) URL() string { return d.cfg.URL }

// Dispatch delivers the payload once. Success payloads get the longer timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) error {
	timeout := d.cfg.NotifyTimeout
	if p.Metadata.Success {
		timeout = d.cfg.SuccessTimeout
	}
	resp, err := d.client.PostJSON(ctx, d.cfg.URL, p, timeout)
	if err != nil {
		metrics.ObserveDispatch(d.cfg.URL, kind(p), "error")
		dispatchErr := &DispatchError{Err: err}
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			dispatchErr.StatusCode = statusErr.StatusCode
		}
		return dispatchErr
	}
	metrics.ObserveDispatch(d.cfg.URL, kind(p), "ok")
	d.logger.Info("webhook delivered",
		zap.String("run_id", p.Metadata.RunID),
		zap.Bool("success", p.Metadata.Success),
		zap.Int("records", p.Metadata.TotalRecords),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

// Notify is Dispatch for failure notifications: errors are logged and dropped.
func (d *Dispatcher) Notify(ctx context.Context, p Payload) {
	if err := d.Dispatch(ctx, p); err != nil {
		d.logger.Error("failure notification not delivered",
			zap.String("run_id", p.Metadata.RunID),
			zap.Error(err),
		)
	}
}

func kind(p Payload) string {
	switch {
	case p.Metadata.Timeout:
		return "timeout"
	case !p.Metadata.Success:
		return "failure"
	case p.Metadata.TotalRecords == 0:
		return "empty"
	default:
		return "success"
	}
}
