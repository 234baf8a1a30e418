// Package monitor drives the poll, fetch and deliver loop for Apify runs.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/clock/system"
	"github.com/JakeFAU/apify-webhook-monitor/internal/metrics"
)

const observeTimeout = 10 * time.Second

// Config controls loop cadence and payload stamping.
type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
	// Sender is copied into metadata.sender.
	Sender string
	// WebhookURL is echoed into metadata.configuredWebhookUrl when set.
	WebhookURL string
	Background bool
}

// Monitor runs one loop per tracked run.
type Monitor struct {
	poller     Poller
	fetcher    DatasetFetcher
	dispatcher Dispatcher
	registry   Registry
	observers  []Observer
	clock      Clock
	cfg        Config
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// lifeMu orders wg.Add in Start against Close.
	lifeMu sync.Mutex
	closed bool
}

// New constructs a Monitor. A nil clock uses the wall clock.
func New(
	cfg Config,
	poller Poller,
	fetcher DatasetFetcher,
	dispatcher Dispatcher,
	registry Registry,
	clock Clock,
	logger *zap.Logger,
	observers ...Observer,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 120
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		poller:     poller,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		registry:   registry,
		observers:  observers,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins monitoring runID in the background.
// It returns false without side effects when the run is already tracked.
func (m *Monitor) Start(runID string) (string, bool) {
	id, err := m.TryStart(runID)
	return id, err == nil
}

// TryStart is Start with the reason for not starting: ErrAlreadyMonitoring
// when runID already has a loop, ErrShuttingDown after Close.
func (m *Monitor) TryStart(runID string) (string, error) {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.closed {
		m.logger.Warn("monitor is shutting down; start ignored", zap.String("run_id", runID))
		return runID, ErrShuttingDown
	}
	h := NewRunHandle(runID, m.clock.Now())
	if existing, added := m.registry.Add(h); !added {
		m.logger.Warn("run already monitored", zap.String("run_id", runID))
		return existing.RunID, ErrAlreadyMonitoring
	}
	metrics.IncActiveRuns()
	m.logger.Info("monitoring started",
		zap.String("run_id", runID),
		zap.Int("max_attempts", m.cfg.MaxAttempts),
		zap.Duration("poll_interval", m.cfg.PollInterval),
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(m.ctx, h)
	}()
	return runID, nil
}

// Watch runs the loop for runID on the calling goroutine and returns its outcome.
// The returned error is the outcome's error.
func (m *Monitor) Watch(ctx context.Context, runID string) (Outcome, error) {
	h := NewRunHandle(runID, m.clock.Now())
	if _, added := m.registry.Add(h); !added {
		return Outcome{RunID: runID}, ErrAlreadyMonitoring
	}
	metrics.IncActiveRuns()
	m.logger.Info("watching run",
		zap.String("run_id", runID),
		zap.Int("max_attempts", m.cfg.MaxAttempts),
	)
	out := m.run(ctx, h)
	return out, out.Err
}

// Stop removes runID and wakes its loop. In-flight requests finish, but nothing is dispatched afterwards.
func (m *Monitor) Stop(runID string) bool {
	h, ok := m.registry.Delete(runID)
	if !ok {
		return false
	}
	h.signalStop()
	m.logger.Info("monitoring stopped", zap.String("run_id", runID), zap.Int("attempts", h.Attempts()))
	return true
}

// StopAll stops every tracked run and returns their ids.
func (m *Monitor) StopAll() []string {
	stopped := []string{}
	for _, h := range m.registry.List() {
		if m.Stop(h.RunID) {
			stopped = append(stopped, h.RunID)
		}
	}
	sort.Strings(stopped)
	return stopped
}

// Status snapshots every active run, oldest first.
func (m *Monitor) Status() Report {
	now := m.clock.Now()
	handles := m.registry.List()
	runs := make([]RunSnapshot, 0, len(handles))
	for _, h := range handles {
		runs = append(runs, h.Snapshot(now))
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartTime.Equal(runs[j].StartTime) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
	return Report{ActiveRuns: len(runs), Runs: runs}
}

// Lookup returns the snapshot of one run.
func (m *Monitor) Lookup(runID string) (RunSnapshot, bool) {
	h, ok := m.registry.Get(runID)
	if !ok {
		return RunSnapshot{}, false
	}
	return h.Snapshot(m.clock.Now()), true
}

// Close cancels background loops and waits for them to return.
func (m *Monitor) Close(ctx context.Context) error {
	m.lifeMu.Lock()
	m.closed = true
	m.cancel()
	m.lifeMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) run(ctx context.Context, h *RunHandle) Outcome {
	defer metrics.DecActiveRuns()

	out := m.safeLoop(ctx, h)
	out.RunID = h.RunID
	out.StartedAt = h.StartTime
	out.FinishedAt = m.clock.Now()
	if out.Attempts == 0 {
		out.Attempts = h.Attempts()
	}

	m.registry.CompareAndDelete(h.RunID, h)
	if !errors.Is(out.Err, ErrStopped) {
		h.finish(out.State)
	}
	metrics.ObserveOutcome(out.Label(), out.FinishedAt.Sub(out.StartedAt))

	fields := []zap.Field{
		zap.String("run_id", h.RunID),
		zap.String("outcome", out.Label()),
		zap.Int("attempts", out.Attempts),
		zap.Int("records", out.Records),
	}
	if out.Err != nil {
		m.logger.Warn("monitoring finished", append(fields, zap.Error(out.Err))...)
	} else {
		m.logger.Info("monitoring finished", fields...)
	}

	m.notifyObservers(ctx, out)
	return out
}

func (m *Monitor) safeLoop(ctx context.Context, h *RunHandle) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("monitor loop panicked",
				zap.String("run_id", h.RunID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			out = Outcome{State: StateFailed, Err: &panicError{value: r}}
		}
	}()
	return m.loop(ctx, h)
}

func (m *Monitor) notifyObservers(ctx context.Context, out Outcome) {
	if len(m.observers) == 0 {
		return
	}
	obsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), observeTimeout)
	defer cancel()
	for _, o := range m.observers {
		if err := o.ObserveOutcome(obsCtx, out); err != nil {
			m.logger.Error("outcome observer failed", zap.String("run_id", out.RunID), zap.Error(err))
		}
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("monitor loop panicked: %v", e.value)
}
