// Package main hosts the apify-monitor entrypoint.
//
// Architecture overview:
//   - One-shot watch: "apify-monitor <runId>" polls the run-status endpoint every monitor.poll_interval_seconds
//     for at most monitor.oneshot_max_attempts attempts, then delivers the run's dataset (or a failure/timeout
//     notice) to webhook.url and exits non-zero unless the dataset was delivered.
//   - Multi-run server: "serve" exposes internal/api.Server. Each started run gets its own goroutine in
//     internal/monitor.Monitor, tracked in an in-memory registry; stop and stop-all signal loops without
//     waiting for them. SIGTERM stops every loop and drains the HTTP server.
//   - Outcomes: every finished loop is passed to the configured observers (Postgres audit table when db.dsn is
//     set, Pub/Sub topic when pubsub.topic_name is set). Observer failures are logged and never affect delivery.
//   - Tools: "send" delivers an already finished run once, "check" probes the webhook and actor endpoints, and
//     "receive" runs a reference webhook receiver that archives payloads to local disk, memory, or GCS.
//   - Configuration & plumbing: Viper populates config from env/files (MONITOR_* plus APIFY_TOKEN, WEBHOOK_URL,
//     APOLLO_ACTOR_ID and PORT); zap provides structured logging; Prometheus metrics are served on /metrics.
//
// Quick checklist:
//   - Configure env vars: APIFY_TOKEN and WEBHOOK_URL (https unless MONITOR_WEBHOOK_REQUIRE_HTTPS=false).
//   - Run locally: go run ./cmd/apify-monitor <runId>, or go run ./cmd/apify-monitor serve.
package main
