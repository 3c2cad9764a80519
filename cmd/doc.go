// Package cmd hosts the review-crawler entrypoints.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, the crawl trigger, place-id extraction and credit
//     top-ups. Every /v1 call is scoped to the tenant named by X-User-ID and gated by the quota before a browser
//     is launched.
//   - Scheduler: internal/scheduler runs a cron pass (seconds field, configured timezone) over every auto-crawl
//     store. Passes never overlap; a Redis lease keeps replicas from crawling the same stores twice. Each store
//     runs in isolation so one failure or panic never stops the others.
//   - Crawl pipeline: internal/orchestrator launches Chrome through internal/browser, reaches the review frame
//     (embedded iframe first, mobile page as fallback), expands the list, extracts items with the first goquery
//     strategy that matches enough nodes, resolves dates, picks the narrowest day window with enough reviews and
//     keeps only reviews newer than the store checkpoint.
//   - Persistence & fanout: reviews are upserted per tenant and store under a surrogate key of place, author and
//     normalized text. Documents that yield nothing are kept as snapshots (local disk or GCS). Report requests for
//     subscribers are published to Pub/Sub.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging;
//     Prometheus metrics are exported via the metrics middleware and /metrics handler; OpenTelemetry spans wrap
//     each crawl and travel with published report requests.
//
// Commands:
//   - serve: API plus scheduler until SIGINT/SIGTERM.
//   - crawl: one run for a place, printing the result JSON.
//   - tick: one scheduler pass, then exit.
//   - migrate: apply the embedded Postgres migrations.
package cmd
