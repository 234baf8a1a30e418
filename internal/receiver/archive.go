package receiver

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

// BlobStore persists archive objects and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

var csvHeader = []string{
	"name", "email", "title", "organization_name", "linkedin_url",
	"city", "state", "country", "phone", "email_status",
}

type archiveRecord struct {
	Metadata   webhook.Metadata  `json:"metadata"`
	Data       []json.RawMessage `json:"data"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

type errorRecord struct {
	Metadata   webhook.Metadata `json:"metadata"`
	ReceivedAt time.Time        `json:"receivedAt"`
}

// stamp renders t with millisecond precision, without colons or dots.
func stamp(t time.Time) string {
	return strings.Replace(t.UTC().Format("2006-01-02T15-04-05.000Z"), ".", "-", 1)
}

// nextStamp is stamp(t) made unique within this receiver. Deliveries landing in
// the same millisecond get a -1, -2, ... suffix.
func (rc *Receiver) nextStamp(t time.Time) string {
	ts := stamp(t)
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if ts != rc.lastStamp {
		rc.lastStamp, rc.stampSeq = ts, 0
		return ts
	}
	rc.stampSeq++
	return fmt.Sprintf("%s-%d", ts, rc.stampSeq)
}

func putJSON(ctx context.Context, store BlobStore, name string, v any) (string, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	uri, err := store.PutObject(ctx, name, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return uri, nil
}

// encodeCSV writes one row per lead under csvHeader.
func encodeCSV(leads []Lead) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, l := range leads {
		row := []string{
			l.Name, l.Email, l.Title, l.OrganizationName, l.LinkedInURL,
			l.City, l.State, l.Country, l.Phone(), l.EmailStatus,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
