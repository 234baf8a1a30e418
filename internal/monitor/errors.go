package monitor

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/apify-webhook-monitor/internal/apify"
)

var (
	// ErrMonitoringTimeout means the attempt budget ran out before a terminal status.
	ErrMonitoringTimeout = errors.New("monitoring timed out")
	// ErrStopped means the run was stopped manually or the monitor shut down.
	ErrStopped = errors.New("monitoring stopped")
	// ErrAlreadyMonitoring is returned by Watch for a run that already has a loop.
	ErrAlreadyMonitoring = errors.New("run is already being monitored")
	// ErrShuttingDown is returned by TryStart once Close has begun.
	ErrShuttingDown = errors.New("monitor is shutting down")
)

// RunFailedError reports a run that ended in a failed provider status.
type RunFailedError struct {
	RunID  string
	Status apify.RunStatus
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s finished with status %s", e.RunID, e.Status)
}
