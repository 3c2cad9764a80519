package cmd

import (
	"context"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/orchestrator"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/scheduler"
)

// Application is what the commands use from the built service.
// Tests inject a fake through buildApp.
type Application interface {
	Run(ctx context.Context) error
	Crawl(ctx context.Context, req orchestrator.Request) crawler.Result
	ResolvePlace(ctx context.Context, raw string) (string, error)
	Tick(ctx context.Context) scheduler.TickSummary
	Close(ctx context.Context) error
}
