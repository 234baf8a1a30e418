package monitor

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/apify-webhook-monitor/internal/apify"
)

// State is the monitor-side lifecycle of a run.
type State string

// Monitor states.
const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateAborted   State = "ABORTED"
	StateTimedOut  State = "TIMED_OUT"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateAborted, StateTimedOut:
		return true
	default:
		return false
	}
}

func stateFor(status apify.RunStatus) State {
	switch status {
	case apify.StatusReady:
		return StatePending
	case apify.StatusSucceeded:
		return StateSucceeded
	case apify.StatusAborted:
		return StateAborted
	case apify.StatusFailed, apify.StatusTimedOut:
		return StateFailed
	default:
		return StateRunning
	}
}

var runIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// ValidRunID reports whether id looks like a provider run id.
func ValidRunID(id string) bool {
	return runIDPattern.MatchString(id)
}

// RunHandle is the registry entry of one monitored run.
// Only the owning loop mutates it; readers go through Snapshot.
type RunHandle struct {
	RunID     string
	StartTime time.Time

	mu             sync.Mutex
	attempts       int
	state          State
	providerStatus apify.RunStatus

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRunHandle creates a pending handle.
func NewRunHandle(runID string, start time.Time) *RunHandle {
	return &RunHandle{
		RunID:     runID,
		StartTime: start,
		state:     StatePending,
		stop:      make(chan struct{}),
	}
}

func (h *RunHandle) beginAttempt(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = n
}

func (h *RunHandle) observe(status apify.RunStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.providerStatus = status
	next := stateFor(status)
	// Never move backwards out of a terminal state.
	if !h.state.Terminal() {
		h.state = next
	}
}

func (h *RunHandle) finish(state State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.Terminal() && state != "" {
		h.state = state
	}
}

func (h *RunHandle) signalStop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Attempts returns the number of polls started so far.
func (h *RunHandle) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

// Snapshot copies the handle's observable state.
func (h *RunHandle) Snapshot(now time.Time) RunSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return RunSnapshot{
		RunID:          h.RunID,
		Status:         h.state,
		ProviderStatus: string(h.providerStatus),
		Attempts:       h.attempts,
		StartTime:      h.StartTime,
		ElapsedMinutes: int(now.Sub(h.StartTime) / time.Minute),
	}
}

// RunSnapshot is a point-in-time view of one handle.
type RunSnapshot struct {
	RunID          string    `json:"runId"`
	Status         State     `json:"status"`
	ProviderStatus string    `json:"providerStatus,omitempty"`
	Attempts       int       `json:"attempts"`
	StartTime      time.Time `json:"startTime"`
	ElapsedMinutes int       `json:"elapsedMinutes"`
}

// Report lists every active run.
type Report struct {
	ActiveRuns int           `json:"activeRuns"`
	Runs       []RunSnapshot `json:"runs"`
}

// Outcome summarizes a finished loop.
type Outcome struct {
	RunID          string
	State          State
	ProviderStatus string
	Attempts       int
	Records        int
	DatasetID      string
	Delivered      bool
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Label is a short lowercase classification used for metrics and logs.
func (o Outcome) Label() string {
	switch {
	case errors.Is(o.Err, ErrStopped):
		return "stopped"
	case o.State == StateSucceeded && !o.Delivered:
		return "undelivered"
	default:
		return strings.ToLower(string(o.State))
	}
}
