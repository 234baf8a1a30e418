// Package receiver implements a reference endpoint that accepts delivered datasets.
package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/metrics"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

const (
	// DefaultPath is where the receiver listens when none is configured.
	DefaultPath = "/webhook/apollo-data"

	maxBodyBytes = 50 << 20
)

var safeName = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Clock abstracts time for archive names.
type Clock interface {
	Now() time.Time
}

// Receiver handles webhook deliveries.
type Receiver struct {
	store  BlobStore
	clock  Clock
	logger *zap.Logger
	path   string
	start  time.Time

	mu        sync.Mutex
	lastStamp string
	stampSeq  int
}

// Response is the acknowledgement body.
type Response struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	RecordsReceived *int      `json:"recordsReceived,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

type incoming struct {
	Data     []json.RawMessage `json:"data"`
	Metadata *webhook.Metadata `json:"metadata"`
}

// New builds a Receiver listening on path.
func New(store BlobStore, clock Clock, path string, logger *zap.Logger) *Receiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = DefaultPath
	}
	return &Receiver{
		store:  store,
		clock:  clock,
		logger: logger.Named("receiver"),
		path:   path,
		start:  clock.Now(),
	}
}

// Handler returns the receiver routes.
func (rc *Receiver) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/health", rc.health)
	r.Post(rc.path, rc.receive)
	return r
}

func (rc *Receiver) health(w http.ResponseWriter, _ *http.Request) {
	now := rc.clock.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": now,
		"uptime":    now.Sub(rc.start).Seconds(),
	})
}

func (rc *Receiver) receive(w http.ResponseWriter, r *http.Request) {
	var in incoming
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil || in.Metadata == nil {
		metrics.ObserveReceived("malformed", 0)
		msg := "payload must be a JSON object with data and metadata"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "payload too large"
		}
		writeJSON(w, http.StatusBadRequest, Response{Message: msg, Timestamp: rc.clock.Now()})
		return
	}

	now := rc.clock.Now()
	logger := rc.logger.With(zap.String("run_id", in.Metadata.RunID))
	if !in.Metadata.Success {
		logger.Warn("scraping failure reported", zap.String("error", in.Metadata.Error))
		metrics.ObserveReceived("failure", 0)
		rc.archiveError(r.Context(), logger, *in.Metadata, now)
		writeJSON(w, http.StatusOK, Response{
			Success:   true,
			Message:   "Error notification received",
			Timestamp: now,
		})
		return
	}

	if in.Data == nil {
		in.Data = []json.RawMessage{}
	}
	leads := decodeLeads(in.Data)
	summary := Summarize(leads)
	logger.Info("dataset received",
		zap.Int("records", len(in.Data)),
		zap.Int("verified_emails", len(summary.VerifiedEmails)),
		zap.Int("phones", len(summary.Phones)),
		zap.Any("companies", summary.Companies),
	)
	metrics.ObserveReceived("success", len(in.Data))
	rc.archive(r.Context(), logger, *in.Metadata, in.Data, leads, now)

	count := len(in.Data)
	writeJSON(w, http.StatusOK, Response{
		Success:         true,
		Message:         "Data received and processed successfully",
		RecordsReceived: &count,
		Timestamp:       now,
	})
}

// archive stores the payload and, for non-empty datasets, a CSV view. Failures are logged.
func (rc *Receiver) archive(ctx context.Context, logger *zap.Logger, meta webhook.Metadata, data []json.RawMessage, leads []Lead, now time.Time) {
	ts := rc.nextStamp(now)
	uri, err := putJSON(ctx, rc.store, "apollo-data-"+ts+".json", archiveRecord{Metadata: meta, Data: data, ReceivedAt: now})
	if err != nil {
		logger.Error("archive payload failed", zap.Error(err))
		return
	}
	logger.Info("payload archived", zap.String("uri", uri))

	if len(leads) == 0 {
		return
	}
	body, err := encodeCSV(leads)
	if err != nil {
		logger.Error("encode csv failed", zap.Error(err))
		return
	}
	uri, err = rc.store.PutObject(ctx, "apollo-data-"+ts+".csv", "text/csv", bytes.NewReader(body))
	if err != nil {
		logger.Error("archive csv failed", zap.Error(err))
		return
	}
	logger.Info("csv archived", zap.String("uri", uri))
}

func (rc *Receiver) archiveError(ctx context.Context, logger *zap.Logger, meta webhook.Metadata, now time.Time) {
	ts := rc.nextStamp(now)
	name := "errors/error-" + ts + ".json"
	if safeName.MatchString(meta.RunID) {
		name = "errors/" + meta.RunID + "-" + ts + ".json"
	}
	uri, err := putJSON(ctx, rc.store, name, errorRecord{Metadata: meta, ReceivedAt: now})
	if err != nil {
		logger.Error("archive error record failed", zap.Error(err))
		return
	}
	logger.Info("error record archived", zap.String("uri", uri))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
