package monitor

import (
	"context"
	"time"

	"github.com/JakeFAU/apify-webhook-monitor/internal/apify"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

// Poller reads the provider status of a run.
type Poller interface {
	GetRun(ctx context.Context, runID string) (apify.Run, error)
}

// DatasetFetcher retrieves the result set of a succeeded run.
type DatasetFetcher interface {
	FetchRunDataset(ctx context.Context, run apify.Run) (apify.Dataset, error)
}

// Dispatcher delivers payloads. Notify never reports failure to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, p webhook.Payload) error
	Notify(ctx context.Context, p webhook.Payload)
}

// Registry tracks the active handle per run id.
type Registry interface {
	// Add stores h unless the run is already tracked, in which case the existing handle is returned.
	Add(h *RunHandle) (*RunHandle, bool)
	Get(runID string) (*RunHandle, bool)
	Delete(runID string) (*RunHandle, bool)
	// CompareAndDelete removes the entry only while it still points at h.
	CompareAndDelete(runID string, h *RunHandle) bool
	List() []*RunHandle
}

// Observer is told about every finished monitoring loop.
type Observer interface {
	ObserveOutcome(ctx context.Context, outcome Outcome) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
