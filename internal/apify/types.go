// Package apify talks to the Apify actor-run and dataset endpoints.
package apify

import (
	"encoding/json"
	"time"
)

// RunStatus is the provider-side lifecycle value of an actor run.
type RunStatus string

// Provider statuses.
const (
	StatusReady     RunStatus = "READY"
	StatusRunning   RunStatus = "RUNNING"
	StatusSucceeded RunStatus = "SUCCEEDED"
	StatusFailed    RunStatus = "FAILED"
	StatusAborting  RunStatus = "ABORTING"
	StatusAborted   RunStatus = "ABORTED"
	StatusTimingOut RunStatus = "TIMING-OUT"
	StatusTimedOut  RunStatus = "TIMED-OUT"
)

// Terminal reports whether the run will not change status again.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Failed reports whether the run ended without producing a usable dataset.
func (s RunStatus) Failed() bool {
	return s == StatusFailed || s == StatusAborted || s == StatusTimedOut
}

// Run is the subset of the actor-run resource the monitor cares about.
type Run struct {
	ID               string         `json:"id"`
	ActID            string         `json:"actId,omitempty"`
	Status           RunStatus      `json:"status"`
	StatusMessage    string         `json:"statusMessage,omitempty"`
	DefaultDatasetID string         `json:"defaultDatasetId,omitempty"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	FinishedAt       *time.Time     `json:"finishedAt,omitempty"`
	Stats            map[string]any `json:"stats,omitempty"`
}

// Actor identifies an actor; only fetched for connectivity checks.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Dataset is a fetched result set. Items are kept opaque.
type Dataset struct {
	ID          string
	Items       []json.RawMessage
	RetrievedAt time.Time
}

type envelope[T any] struct {
	Data T `json:"data"`
}
