// Package publisher defines the event emitted when a monitoring loop finishes.
package publisher

import (
	"time"

	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
)

// OutcomeEvent is the JSON body published for each outcome.
type OutcomeEvent struct {
	RunID          string    `json:"runId"`
	Outcome        string    `json:"outcome"`
	State          string    `json:"state"`
	ProviderStatus string    `json:"providerStatus,omitempty"`
	Attempts       int       `json:"attempts"`
	Records        int       `json:"records"`
	DatasetID      string    `json:"datasetId,omitempty"`
	Delivered      bool      `json:"delivered"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// NewOutcomeEvent flattens an outcome for publishing.
func NewOutcomeEvent(out monitor.Outcome) OutcomeEvent {
	ev := OutcomeEvent{
		RunID:          out.RunID,
		Outcome:        out.Label(),
		State:          string(out.State),
		ProviderStatus: out.ProviderStatus,
		Attempts:       out.Attempts,
		Records:        out.Records,
		DatasetID:      out.DatasetID,
		Delivered:      out.Delivered,
		StartedAt:      out.StartedAt,
		FinishedAt:     out.FinishedAt,
	}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	return ev
}

// Attributes are the message attributes subscribers can filter on.
func (e OutcomeEvent) Attributes() map[string]string {
	return map[string]string{
		"run_id":  e.RunID,
		"outcome": e.Outcome,
	}
}
