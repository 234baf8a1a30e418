// Package metrics exposes Prometheus collectors for the run monitor.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	monitorPollsTotal          *prometheus.CounterVec
	monitorOutcomesTotal       *prometheus.CounterVec
	monitorActiveRuns          prometheus.Gauge
	monitorRunDurationSeconds  prometheus.Histogram
	webhookDispatchesTotal     *prometheus.CounterVec
	receiverPayloadsTotal      *prometheus.CounterVec
	receiverRecordsTotal       prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		monitorPollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_polls_total",
				Help: "Total run-status polls, labeled by the provider status or \"error\".",
			},
			[]string{"result"},
		)

		monitorOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_outcomes_total",
				Help: "Total finished monitoring loops, labeled by final state.",
			},
			[]string{"state"},
		)

		monitorActiveRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_active_runs",
				Help: "Number of runs currently being monitored.",
			},
		)

		monitorRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monitor_run_duration_seconds",
				Help:    "Histogram of time from monitoring start to outcome.",
				Buckets: []float64{1, 30, 60, 300, 600, 1800, 3600},
			},
		)

		webhookDispatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_dispatches_total",
				Help: "Total webhook deliveries, labeled by target host, payload kind and result.",
			},
			[]string{"host", "kind", "result"},
		)

		receiverPayloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receiver_payloads_total",
				Help: "Total payloads accepted by the reference receiver, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		receiverRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "receiver_records_total",
				Help: "Total records received in successful payloads.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apify_rate_limit_delay_seconds",
				Help:    "Time API requests spent waiting for a rate limit token, by host.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"host"},
		)
	})
}

// SanitizeHost reduces a URL to its lowercase hostname, or "unknown".
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePoll counts one status poll. An empty status means the poll failed.
func ObservePoll(status string) {
	Init()
	if status == "" {
		status = "error"
	}
	monitorPollsTotal.WithLabelValues(strings.ToLower(status)).Inc()
}

// ObserveOutcome counts a finished loop and its duration.
func ObserveOutcome(state string, elapsed time.Duration) {
	Init()
	monitorOutcomesTotal.WithLabelValues(strings.ToLower(state)).Inc()
	monitorRunDurationSeconds.Observe(elapsed.Seconds())
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	Init()
	monitorActiveRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	Init()
	monitorActiveRuns.Dec()
}

// ObserveDispatch counts one webhook delivery attempt.
func ObserveDispatch(target, kind, result string) {
	Init()
	webhookDispatchesTotal.WithLabelValues(SanitizeHost(target), kind, result).Inc()
}

// ObserveReceived counts a payload handled by the receiver.
func ObserveReceived(outcome string, records int) {
	Init()
	receiverPayloadsTotal.WithLabelValues(outcome).Inc()
	if records > 0 {
		receiverRecordsTotal.Add(float64(records))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records time spent waiting for a request token.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}
