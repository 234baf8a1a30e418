// Package api hosts the HTTP server, middleware, and REST handlers of the
// multi-run monitor. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST/GET/DELETE /v1/runs... to start, inspect, and stop monitoring loops.
//   - POST /start-monitor, GET /monitor-status, POST /stop-monitor and GET /health
//     for callers of the older trigger server.
package api
