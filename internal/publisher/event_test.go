package publisher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
)

func TestNewOutcomeEvent(t *testing.T) {
	t.Parallel()

	start := time.Unix(1700000000, 0).UTC()
	ev := NewOutcomeEvent(monitor.Outcome{
		RunID:      "run1",
		State:      monitor.StateTimedOut,
		Attempts:   120,
		Err:        monitor.ErrMonitoringTimeout,
		StartedAt:  start,
		FinishedAt: start.Add(time.Hour),
	})

	require.Equal(t, "timed_out", ev.Outcome)
	require.Equal(t, "TIMED_OUT", ev.State)
	require.Equal(t, "monitoring timed out", ev.Error)
	require.Equal(t, map[string]string{"run_id": "run1", "outcome": "timed_out"}, ev.Attributes())
}
