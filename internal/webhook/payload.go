// Package webhook builds delivery payloads and posts them to the configured endpoint.
package webhook

import (
	"encoding/json"
	"time"
)

// User agents identifying each delivery path.
const (
	UserAgentAutoMonitor       = "Apify-Apollo-Auto-Monitor/1.0"
	UserAgentBackgroundMonitor = "Apify-Apollo-Background-Monitor/1.0"
	UserAgentSender            = "Apify-Apollo-Webhook-Sender/1.0"
	UserAgentConnectivityCheck = "Apollo-Scraper-Test/1.0"
)

// Sender names stamped into metadata.sender.
const (
	SenderAutoMonitor       = "auto-monitor"
	SenderBackgroundMonitor = "background-monitor"
	SenderOneTime           = "webhook-sender"
)

// Payload is the single body shape for success, empty and failure deliveries.
type Payload struct {
	Data     []json.RawMessage `json:"data"`
	Metadata Metadata          `json:"metadata"`
}

// Metadata describes the run a payload belongs to.
type Metadata struct {
	Success              bool           `json:"success"`
	Message              string         `json:"message,omitempty"`
	Error                string         `json:"error,omitempty"`
	TotalRecords         int            `json:"totalRecords"`
	RunID                string         `json:"runId"`
	DatasetID            string         `json:"datasetId,omitempty"`
	Timestamp            time.Time      `json:"timestamp"`
	RetrievedAt          *time.Time     `json:"retrievedAt,omitempty"`
	RunStartedAt         *time.Time     `json:"runStartedAt,omitempty"`
	RunFinishedAt        *time.Time     `json:"runFinishedAt,omitempty"`
	RunStatus            string         `json:"runStatus,omitempty"`
	RunStats             map[string]any `json:"runStats,omitempty"`
	MonitoringAttempts   int            `json:"monitoringAttempts"`
	Timeout              bool           `json:"timeout,omitempty"`
	ConfiguredWebhookURL string         `json:"configuredWebhookUrl,omitempty"`
	AutomatedDelivery    bool           `json:"automatedDelivery,omitempty"`
	BackgroundMonitor    bool           `json:"backgroundMonitor,omitempty"`
	Sender               string         `json:"sender"`
}

// MarshalJSON keeps data an array even when no records were attached.
func (p Payload) MarshalJSON() ([]byte, error) {
	type alias Payload
	if p.Data == nil {
		p.Data = []json.RawMessage{}
	}
	return json.Marshal(alias(p))
}

// NewSuccess builds a payload carrying records. An empty slice is still a success.
func NewSuccess(meta Metadata, records []json.RawMessage) Payload {
	if records == nil {
		records = []json.RawMessage{}
	}
	meta.Success = true
	meta.TotalRecords = len(records)
	if meta.Message == "" {
		if len(records) == 0 {
			meta.Message = "Run completed successfully but no records were found"
		} else {
			meta.Message = "Run completed successfully"
		}
	}
	return Payload{Data: records, Metadata: meta}
}

// NewFailure builds a payload announcing that no data will follow.
func NewFailure(meta Metadata, message string, cause error) Payload {
	meta.Success = false
	meta.TotalRecords = 0
	meta.Message = message
	if cause != nil {
		meta.Error = cause.Error()
	}
	return Payload{Data: []json.RawMessage{}, Metadata: meta}
}

// NewTimeout builds the payload sent once the attempt budget is spent.
func NewTimeout(meta Metadata, lastErr error) Payload {
	p := NewFailure(meta, "Monitoring timed out before the run reached a terminal state", lastErr)
	p.Metadata.Timeout = true
	return p
}
