// Package api hosts the HTTP surface of the review crawler. Notable routes:
//   - GET /healthz and /readyz for health checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawl runs one crawl for the calling tenant.
//   - POST /v1/stores/extract turns a pasted store URL into a place id.
//   - POST /v1/billing/credits adds purchased credits.
//
// Tenant identity arrives in the X-User-ID header, set by the gateway that
// authenticated the caller.
package api
