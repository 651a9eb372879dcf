// Package api hosts the operator HTTP server. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs/latest for the in-process crawl status.
//   - GET /v1/runs for the run ledger, when a database is configured.
//   - POST /v1/runs to start a crawl in the background.
package api
