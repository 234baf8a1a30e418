package apify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/httpclient"
)

// Getter is the slice of httpclient.Client the API client needs.
type Getter interface {
	GetJSON(ctx context.Context, url string, timeout time.Duration, out any) error
}

// Waiter delays a request until it may be sent.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

type throttled struct {
	Getter
	w Waiter
}

func (t throttled) GetJSON(ctx context.Context, url string, timeout time.Duration, out any) error {
	if err := t.w.Wait(ctx, url); err != nil {
		return err
	}
	return t.Getter.GetJSON(ctx, url, timeout, out)
}

// Throttle makes every request through g wait on w first. The wait does not count against the request timeout.
func Throttle(g Getter, w Waiter) Getter {
	if w == nil {
		return g
	}
	return throttled{Getter: g, w: w}
}

// Config controls the API client.
type Config struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	DatasetTimeout time.Duration
}

// Client issues run-status, dataset and actor requests.
type Client struct {
	http   Getter
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// NewClient builds a Client. A nil logger is replaced with a no-op logger.
func NewClient(cfg Config, http Getter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.DatasetTimeout <= 0 {
		cfg.DatasetTimeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		http:   http,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// GetRun performs one status request. Every failure comes back as *PollError.
func (c *Client) GetRun(ctx context.Context, runID string) (Run, error) {
	var env envelope[Run]
	if err := c.http.GetJSON(ctx, c.endpoint("actor-runs", runID), c.cfg.RequestTimeout, &env); err != nil {
		return Run{}, &PollError{RunID: runID, Err: err}
	}
	if env.Data.Status == "" {
		return Run{}, &PollError{RunID: runID, Err: errors.New("response has no run status")}
	}
	if env.Data.ID == "" {
		env.Data.ID = runID
	}
	c.logger.Debug("run status fetched",
		zap.String("run_id", runID),
		zap.String("status", string(env.Data.Status)),
	)
	return env.Data, nil
}

// GetDatasetItems downloads the full item array of a dataset.
func (c *Client) GetDatasetItems(ctx context.Context, datasetID string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := c.http.GetJSON(ctx, c.endpoint("datasets", datasetID, "items"), c.cfg.DatasetTimeout, &items); err != nil {
		return nil, &FetchError{DatasetID: datasetID, Err: err}
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

// FetchRunDataset retrieves the default dataset of a finished run.
func (c *Client) FetchRunDataset(ctx context.Context, run Run) (Dataset, error) {
	if run.DefaultDatasetID == "" {
		return Dataset{}, ErrNoDataset
	}
	items, err := c.GetDatasetItems(ctx, run.DefaultDatasetID)
	if err != nil {
		return Dataset{}, err
	}
	c.logger.Info("dataset retrieved",
		zap.String("run_id", run.ID),
		zap.String("dataset_id", run.DefaultDatasetID),
		zap.Int("records", len(items)),
	)
	return Dataset{ID: run.DefaultDatasetID, Items: items, RetrievedAt: c.now()}, nil
}

// GetActor fetches actor metadata; used to verify the token works.
func (c *Client) GetActor(ctx context.Context, actorID string) (Actor, error) {
	var env envelope[Actor]
	if err := c.http.GetJSON(ctx, c.endpoint("acts", actorID), c.cfg.RequestTimeout, &env); err != nil {
		return Actor{}, fmt.Errorf("get actor %s: %w", actorID, err)
	}
	return env.Data, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s?token=%s", c.cfg.BaseURL, strings.Join(escaped, "/"), url.QueryEscape(c.cfg.Token))
}

var _ Getter = (*httpclient.Client)(nil)
