package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/apify"
	"github.com/JakeFAU/apify-webhook-monitor/internal/metrics"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

func (m *Monitor) loop(ctx context.Context, h *RunHandle) Outcome {
	var (
		lastRun apify.Run
		lastErr error
	)
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if !m.tracked(h) || ctx.Err() != nil {
			return m.stopped(h, attempt-1)
		}
		h.beginAttempt(attempt)

		run, err := m.poller.GetRun(ctx, h.RunID)
		if !m.tracked(h) {
			return m.stopped(h, attempt)
		}
		if err != nil {
			if ctx.Err() != nil {
				return m.stopped(h, attempt)
			}
			metrics.ObservePoll("")
			lastErr = err
			m.logger.Warn("status poll failed",
				zap.String("run_id", h.RunID),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", m.cfg.MaxAttempts),
				zap.Error(err),
			)
		} else {
			metrics.ObservePoll(string(run.Status))
			lastRun, lastErr = run, nil
			h.observe(run.Status)
			m.logger.Debug("status polled",
				zap.String("run_id", h.RunID),
				zap.Int("attempt", attempt),
				zap.String("status", string(run.Status)),
			)
			switch {
			case run.Status == apify.StatusSucceeded:
				return m.deliver(ctx, h, run, attempt)
			case run.Status.Failed():
				return m.fail(ctx, h, run, attempt)
			}
		}

		if attempt == m.cfg.MaxAttempts {
			break
		}
		if !m.sleep(ctx, h) {
			return m.stopped(h, attempt)
		}
	}
	return m.timeout(ctx, h, lastRun, lastErr)
}

// tracked reports whether the registry still points at h.
func (m *Monitor) tracked(h *RunHandle) bool {
	current, ok := m.registry.Get(h.RunID)
	return ok && current == h
}

func (m *Monitor) sleep(ctx context.Context, h *RunHandle) bool {
	timer := time.NewTimer(m.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-h.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (m *Monitor) stopped(h *RunHandle, attempts int) Outcome {
	snap := h.Snapshot(m.clock.Now())
	return Outcome{
		State:          snap.Status,
		ProviderStatus: snap.ProviderStatus,
		Attempts:       attempts,
		Err:            ErrStopped,
	}
}

func (m *Monitor) deliver(ctx context.Context, h *RunHandle, run apify.Run, attempt int) Outcome {
	out := Outcome{
		State:          StateSucceeded,
		ProviderStatus: string(run.Status),
		Attempts:       attempt,
		DatasetID:      run.DefaultDatasetID,
	}
	meta := m.metadata(h, run, attempt)

	ds, err := m.fetcher.FetchRunDataset(ctx, run)
	if !m.tracked(h) || ctx.Err() != nil {
		return m.stopped(h, attempt)
	}
	if err != nil {
		msg := "Run succeeded but its dataset could not be retrieved"
		if errors.Is(err, apify.ErrNoDataset) {
			msg = "Run succeeded but no dataset is attached to it"
		}
		m.dispatcher.Notify(ctx, webhook.NewFailure(meta, msg, err))
		out.Err = err
		return out
	}

	retrieved := ds.RetrievedAt
	meta.DatasetID = ds.ID
	meta.RetrievedAt = &retrieved
	out.DatasetID = ds.ID
	out.Records = len(ds.Items)

	if err := m.dispatcher.Dispatch(ctx, webhook.NewSuccess(meta, ds.Items)); err != nil {
		m.logger.Error("dataset delivery failed",
			zap.String("run_id", h.RunID),
			zap.Int("records", out.Records),
			zap.Error(err),
		)
		m.dispatcher.Notify(ctx, webhook.NewFailure(meta, "Dataset was retrieved but webhook delivery failed", err))
		out.Err = fmt.Errorf("deliver dataset: %w", err)
		return out
	}
	out.Delivered = true
	return out
}

func (m *Monitor) fail(ctx context.Context, h *RunHandle, run apify.Run, attempt int) Outcome {
	meta := m.metadata(h, run, attempt)
	meta.RunStats = run.Stats
	msg := fmt.Sprintf("Run ended with status %s", run.Status)
	if run.StatusMessage != "" {
		msg = fmt.Sprintf("%s: %s", msg, run.StatusMessage)
	}
	m.dispatcher.Notify(ctx, webhook.NewFailure(meta, msg, nil))

	return Outcome{
		State:          stateFor(run.Status),
		ProviderStatus: string(run.Status),
		Attempts:       attempt,
		DatasetID:      run.DefaultDatasetID,
		Err:            &RunFailedError{RunID: h.RunID, Status: run.Status},
	}
}

func (m *Monitor) timeout(ctx context.Context, h *RunHandle, lastRun apify.Run, lastErr error) Outcome {
	if !m.tracked(h) {
		return m.stopped(h, m.cfg.MaxAttempts)
	}
	meta := m.metadata(h, lastRun, m.cfg.MaxAttempts)
	m.dispatcher.Notify(ctx, webhook.NewTimeout(meta, lastErr))

	err := fmt.Errorf("%w after %d attempts", ErrMonitoringTimeout, m.cfg.MaxAttempts)
	if lastErr != nil {
		err = fmt.Errorf("%w after %d attempts: %w", ErrMonitoringTimeout, m.cfg.MaxAttempts, lastErr)
	}
	return Outcome{
		State:          StateTimedOut,
		ProviderStatus: string(lastRun.Status),
		Attempts:       m.cfg.MaxAttempts,
		Err:            err,
	}
}

func (m *Monitor) metadata(h *RunHandle, run apify.Run, attempts int) webhook.Metadata {
	return webhook.Metadata{
		RunID:                h.RunID,
		DatasetID:            run.DefaultDatasetID,
		Timestamp:            m.clock.Now(),
		RunStartedAt:         run.StartedAt,
		RunFinishedAt:        run.FinishedAt,
		RunStatus:            string(run.Status),
		MonitoringAttempts:   attempts,
		ConfiguredWebhookURL: m.cfg.WebhookURL,
		AutomatedDelivery:    true,
		BackgroundMonitor:    m.cfg.Background,
		Sender:               m.cfg.Sender,
	}
}
