// Package scheduler runs the periodic crawl of every auto-crawl store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/metrics"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/orchestrator"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/report"
)

// Runner executes one crawl.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) crawler.Result
}

// Quota resolves limits and settles free-tier overage.
type Quota interface {
	crawler.QuotaGate
	Overage(tenant crawler.Tenant, added int) int
}

// Lease guards a tick across replicas.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Store outcomes recorded per tick.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
	OutcomePanic   = "panic"
)

// Config controls cadence and parallelism.
type Config struct {
	// Spec is a cron expression with a seconds field.
	Spec     string
	Location *time.Location
	// Workers > 1 crawls that many stores at once, one browser each.
	Workers  int
	LeaseKey string
	LeaseTTL time.Duration
}

// Deps are the collaborators of a Scheduler. Reports and Lease may be nil.
type Deps struct {
	Directory crawler.StoreDirectory
	Sink      crawler.PersistenceSink
	Quota     Quota
	Runner    Runner
	Reports   crawler.ReportTrigger
	Lease     Lease
	Clock     crawler.Clock
}

// TickSummary aggregates one pass over the stores.
type TickSummary struct {
	Stores  int
	OK      int
	Skipped int
	Failed  int
	Added   int
	Debited int
	// LeaseMissed is set when another replica held the tick lease.
	LeaseMissed bool
	Err         error
}

// Scheduler owns the cron loop.
type Scheduler struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New constructs a Scheduler. It does not start the cron loop.
func New(deps Deps, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Spec == "" {
		cfg.Spec = "0 0 3 * * *"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.LeaseKey == "" {
		cfg.LeaseKey = "reviews:scheduler:tick"
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Scheduler{deps: deps, cfg: cfg, logger: logger.Named("scheduler")}
}

// Start registers the tick and starts the cron loop. Ticks run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(s.cfg.Location),
		cron.WithLogger(cronLogger{logger: s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: s.logger})),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() {
		summary := s.Tick(ctx)
		s.logger.Info("tick finished",
			zap.Int("stores", summary.Stores),
			zap.Int("ok", summary.OK),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
			zap.Int("added", summary.Added),
			zap.Int("debited", summary.Debited),
			zap.Bool("lease_missed", summary.LeaseMissed),
			zap.Error(summary.Err))
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Spec, err)
	}
	c.Start()
	s.cron = c
	s.running = true
	s.logger.Info("scheduler started", zap.String("spec", s.cfg.Spec), zap.Int("workers", s.cfg.Workers))
	return nil
}

// Stop halts the cron loop and waits for a running tick, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// Tick crawls every auto-crawl store once. One store's failure never stops
// the others.
func (s *Scheduler) Tick(ctx context.Context) TickSummary {
	var summary TickSummary

	if s.deps.Lease != nil {
		ok, err := s.deps.Lease.Acquire(ctx, s.cfg.LeaseKey, s.cfg.LeaseTTL)
		if err != nil {
			summary.Err = err
			return summary
		}
		if !ok {
			summary.LeaseMissed = true
			return summary
		}
		defer func() {
			if err := s.deps.Lease.Release(context.WithoutCancel(ctx), s.cfg.LeaseKey); err != nil {
				s.logger.Warn("release tick lease", zap.Error(err))
			}
		}()
	}

	stores, err := s.deps.Directory.ListAutoCrawlStores(ctx)
	if err != nil {
		summary.Err = fmt.Errorf("list stores: %w", err)
		return summary
	}
	summary.Stores = len(stores)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(s.cfg.Workers))
	)
	for _, store := range stores {
		if err := sem.Acquire(ctx, 1); err != nil {
			summary.Err = err
			break
		}
		wg.Add(1)
		go func(store crawler.Store) {
			defer wg.Done()
			defer sem.Release(1)

			out := s.crawlStore(ctx, store)
			metrics.ObserveSchedulerStore(out.outcome)

			mu.Lock()
			defer mu.Unlock()
			switch out.outcome {
			case OutcomeOK:
				summary.OK++
			case OutcomeSkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			summary.Added += out.added
			summary.Debited += out.debited
		}(store)
	}
	wg.Wait()
	return summary
}

type storeOutcome struct {
	outcome string
	added   int
	debited int
}

func (s *Scheduler) crawlStore(ctx context.Context, store crawler.Store) (out storeOutcome) {
	logger := s.logger.With(zap.String("store_id", store.ID), zap.String("user_id", store.UserID))
	defer func() {
		if p := recover(); p != nil {
			logger.Error("store crawl panicked", zap.Any("panic", p))
			out.outcome = OutcomePanic
		}
	}()

	tenant, err := s.deps.Directory.GetTenant(ctx, store.UserID)
	if err != nil {
		logger.Warn("load tenant", zap.Error(err))
		return storeOutcome{outcome: OutcomeError}
	}
	limits, err := s.deps.Quota.Limits(ctx, tenant)
	if errors.Is(err, crawler.ErrQuotaExhausted) {
		logger.Info("quota exhausted, store skipped")
		return storeOutcome{outcome: OutcomeSkipped}
	}
	if err != nil {
		logger.Warn("resolve quota", zap.Error(err))
		return storeOutcome{outcome: OutcomeError}
	}

	storeID := store.ID
	defer func() {
		now := s.deps.Clock.Now()
		if err := s.deps.Sink.UpdateCheckpoint(context.WithoutCancel(ctx), storeID, now); err != nil {
			logger.Warn("advance checkpoint", zap.Error(err))
		}
	}()

	res := s.deps.Runner.Run(ctx, orchestrator.Request{
		PlaceID:    store.PlaceID,
		UserID:     store.UserID,
		StoreID:    &storeID,
		MaxReviews: limits.MaxReviews,
		DayWindows: limits.DayWindows,
		Since:      store.LastCrawledAt,
	})
	out = storeOutcome{outcome: OutcomeOK, added: res.Count}
	logger.Info("store crawled", zap.Int("added", res.Count), zap.String("limited_by", string(res.LimitedBy)))

	if over := s.deps.Quota.Overage(tenant, res.Count); over > 0 {
		taken, err := s.deps.Quota.Debit(ctx, tenant.UserID, over)
		if err != nil {
			logger.Warn("debit overage", zap.Int("overage", over), zap.Error(err))
		}
		out.debited = taken
	}

	if tenant.SubscriptionActive && tenant.AutoReport && s.deps.Reports != nil {
		for _, days := range report.Periods {
			if err := s.deps.Reports.Generate(ctx, tenant.UserID, &storeID, days); err != nil {
				logger.Warn("report trigger failed", zap.Int("range_days", days), zap.Error(err))
			}
		}
	}
	return out
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
