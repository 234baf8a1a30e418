package apify

import (
	"errors"
	"fmt"
)

// ErrNoDataset is returned when a succeeded run carries no default dataset id.
var ErrNoDataset = errors.New("run has no default dataset")

// PollError wraps a failed run-status request. It is transient: callers retry within their budget.
type PollError struct {
	RunID string
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll run %s: %v", e.RunID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// FetchError wraps a failed dataset download.
type FetchError struct {
	DatasetID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch dataset %s: %v", e.DatasetID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
