package monitor_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/JakeFAU/apify-webhook-monitor/internal/apify"
	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

// fakePoller replays scripted results; the last entry repeats forever.
type fakePoller struct {
	mu      sync.Mutex
	script  []pollResult
	calls   int
	gate    chan struct{}
	entered chan struct{}
	panicOn int
}

type pollResult struct {
	status apify.RunStatus
	err    error
}

func newPoller(results ...pollResult) *fakePoller {
	return &fakePoller{script: results}
}

func statuses(s ...apify.RunStatus) []pollResult {
	out := make([]pollResult, len(s))
	for i, st := range s {
		out[i] = pollResult{status: st}
	}
	return out
}

func (p *fakePoller) GetRun(ctx context.Context, runID string) (apify.Run, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	res := p.script[min(n, len(p.script))-1]
	gate, entered, panicOn := p.gate, p.entered, p.panicOn
	p.mu.Unlock()

	if panicOn == n {
		panic("poller exploded")
	}
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return apify.Run{}, ctx.Err()
		}
	}
	if res.err != nil {
		return apify.Run{}, res.err
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return apify.Run{
		ID:               runID,
		Status:           res.status,
		DefaultDatasetID: "ds-" + runID,
		StartedAt:        &start,
		Stats:            map[string]any{"runTimeSecs": 12.0},
	}, nil
}

func (p *fakePoller) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeFetcher struct {
	mu      sync.Mutex
	records int
	err     error
	calls   int
}

func (f *fakeFetcher) FetchRunDataset(_ context.Context, run apify.Run) (apify.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return apify.Dataset{}, f.err
	}
	if run.DefaultDatasetID == "" {
		return apify.Dataset{}, apify.ErrNoDataset
	}
	items := make([]json.RawMessage, f.records)
	for i := range items {
		items[i] = json.RawMessage(`{"name":"record"}`)
	}
	return apify.Dataset{ID: run.DefaultDatasetID, Items: items, RetrievedAt: time.Unix(500, 0).UTC()}, nil
}

type sent struct {
	payload webhook.Payload
	notify  bool
}

type fakeDispatcher struct {
	mu          sync.Mutex
	sent        []sent
	dispatchErr error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, p webhook.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sent{payload: p})
	return d.dispatchErr
}

func (d *fakeDispatcher) Notify(_ context.Context, p webhook.Payload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sent{payload: p, notify: true})
}

func (d *fakeDispatcher) Sent() []sent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sent(nil), d.sent...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []monitor.Outcome
	err      error
}

func (o *recordingObserver) ObserveOutcome(_ context.Context, out monitor.Outcome) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
	return o.err
}

func (o *recordingObserver) Outcomes() []monitor.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]monitor.Outcome(nil), o.outcomes...)
}

var errBoom = errors.New("boom")
