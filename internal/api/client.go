package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/apify-webhook-monitor/internal/httpclient"
	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
)

// ErrRunNotFound is returned when the server does not track the run.
var ErrRunNotFound = errors.New("run not monitored")

const clientTimeout = 10 * time.Second

// Client talks to a running monitor server.
type Client struct {
	base   string
	apiKey string
	http   *httpclient.Client
}

// NewClient returns a Client for the server at baseURL.
func NewClient(baseURL, apiKey string, http *httpclient.Client) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		apiKey: apiKey,
		http:   http,
	}
}

// Start asks the server to monitor runID.
func (c *Client) Start(ctx context.Context, runID string) (StartResponse, error) {
	var out StartResponse
	err := c.call(ctx, http.MethodPost, "/v1/runs", StartRequest{RunID: runID}, &out)
	return out, err
}

// Status fetches the active-run report.
func (c *Client) Status(ctx context.Context) (monitor.Report, error) {
	var out monitor.Report
	err := c.call(ctx, http.MethodGet, "/v1/runs", nil, &out)
	return out, err
}

// Stop signals a single run.
func (c *Client) Stop(ctx context.Context, runID string) error {
	return c.call(ctx, http.MethodDelete, "/v1/runs/"+url.PathEscape(runID), nil, nil)
}

// StopAll signals every run and returns their ids.
func (c *Client) StopAll(ctx context.Context) ([]string, error) {
	var out StopAllResponse
	if err := c.call(ctx, http.MethodDelete, "/v1/runs", nil, &out); err != nil {
		return nil, err
	}
	return out.Stopped, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	target := c.base + path
	if c.apiKey != "" {
		target += "?api_key=" + url.QueryEscape(c.apiKey)
	}
	resp, err := c.http.Do(ctx, method, target, body, clientTimeout)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return ErrRunNotFound
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
