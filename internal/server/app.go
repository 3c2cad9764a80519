// Package server builds the application from configuration and runs it until
// the context is canceled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/api"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/browser"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/clock/system"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/config"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/dateparse"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/extract"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/id/uuid"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/lease"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/orchestrator"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/placeid"
	memorypublisher "github.com/gohgeo-lang/back-auto-review-insight/internal/publisher/memory"
	gcppublisher "github.com/gohgeo-lang/back-auto-review-insight/internal/publisher/pubsub"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/quota"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/report"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/scheduler"
	gcsstorage "github.com/gohgeo-lang/back-auto-review-insight/internal/storage/gcs"
	localstorage "github.com/gohgeo-lang/back-auto-review-insight/internal/storage/local"
	memorystorage "github.com/gohgeo-lang/back-auto-review-insight/internal/storage/memory"
	pgstore "github.com/gohgeo-lang/back-auto-review-insight/internal/storage/postgres"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/telemetry"
)

const serviceName = "review-crawler"

// repository is what both the Postgres and the in-memory stores provide.
type repository interface {
	crawler.PersistenceSink
	crawler.StoreDirectory
	quota.Ledger
}

// App holds the long-lived services.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	apiServer *api.Server
	scheduler *scheduler.Scheduler
	runner    *orchestrator.Orchestrator
	places    *placeid.Resolver

	pgStore        *pgstore.Store
	redisClient    *redis.Client
	publisher      *gcppublisher.Publisher
	snapshotStore  *gcsstorage.BlobStore
	tracerShutdown func(context.Context) error
}

// Handler exposes the HTTP surface, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Crawl runs one crawl outside the scheduler.
func (a *App) Crawl(ctx context.Context, req orchestrator.Request) crawler.Result {
	return a.runner.Run(ctx, req)
}

// ResolvePlace turns a store URL or a bare place id into a place id.
func (a *App) ResolvePlace(ctx context.Context, raw string) (string, error) {
	return a.places.Resolve(ctx, raw)
}

// Tick runs one scheduler pass immediately.
func (a *App) Tick(ctx context.Context) scheduler.TickSummary {
	return a.scheduler.Tick(ctx)
}

// Run starts the scheduler and the HTTP server and blocks until ctx is
// canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Warn("scheduler stop did not finish", zap.Error(err))
		}
	}

	return a.Close(shutdownCtx)
}

// Close releases every client the App opened.
func (a *App) Close(ctx context.Context) error {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.snapshotStore != nil {
		if err := a.snapshotStore.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
	a.logger.Info("shutdown complete")
	return nil
}

// Build creates the application's dependencies. On error every client
// opened so far is closed.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	if err := app.wire(ctx); err != nil {
		_ = app.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
		zap.String("snapshot_backend", cfg.Snapshots.Backend),
	)

	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
			ServiceName: serviceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("tracer init failed: %w", err)
		}
		a.tracerShutdown = shutdown
	}

	repo, err := setupRepository(ctx, a)
	if err != nil {
		return err
	}
	snapshots, err := setupSnapshots(ctx, a)
	if err != nil {
		return err
	}
	publisher, err := setupPublisher(ctx, a)
	if err != nil {
		return err
	}
	runner, err := setupOrchestrator(a, repo, snapshots)
	if err != nil {
		return err
	}
	a.runner = runner

	clock := system.New()
	gate := quota.NewGate(quota.Config{
		FreeBaseline:      cfg.Quota.FreeBaseline,
		FreeWindows:       cfg.Quota.FreeWindows,
		SubscriberCap:     cfg.Quota.SubscriberCap,
		SubscriberWindows: cfg.Quota.SubscriberWindows,
	}, repo, logger)

	resolverCfg := placeid.DefaultResolverConfig()
	if cfg.Browser.UserAgent != "" {
		resolverCfg.UserAgent = cfg.Browser.UserAgent
	}

	a.places = placeid.NewResolver(resolverCfg, logger)

	a.apiServer = api.NewServer(api.Deps{
		Runner:    runner,
		Directory: repo,
		Sink:      repo,
		Quota:     gate,
		Places:    a.places,
		Clock:     clock,
	}, cfg, logger.Named("api"))

	schedDeps := scheduler.Deps{
		Directory: repo,
		Sink:      repo,
		Quota:     gate,
		Runner:    runner,
		Reports:   report.NewTrigger(publisher, cfg.Report.Topic, clock, logger),
		Clock:     clock,
	}
	if cfg.Redis.Addr != "" {
		a.redisClient = lease.Dial(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		schedDeps.Lease = lease.NewRedis(a.redisClient, leaseOwner())
		logger.Info("scheduler lease enabled", zap.String("redis_addr", cfg.Redis.Addr))
	}
	a.scheduler = scheduler.New(schedDeps, scheduler.Config{
		Spec:     cfg.Scheduler.Spec,
		Location: cfg.Location(),
		Workers:  cfg.Scheduler.Workers,
		LeaseKey: cfg.Scheduler.LeaseKey,
		LeaseTTL: time.Duration(cfg.Scheduler.LeaseTTLSeconds) * time.Second,
	}, logger)

	return nil
}

func setupRepository(ctx context.Context, app *App) (repository, error) {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("no DSN specified for database, using in-memory store")
		return memorystorage.NewStore(), nil
	}
	if app.cfg.DB.Migrate {
		if err := pgstore.Migrate(app.cfg.DB.DSN); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		app.logger.Info("database migrations applied")
	}
	var err error
	app.pgStore, err = pgstore.Open(ctx, pgstore.Config{
		DSN:             app.cfg.DB.DSN,
		MaxConns:        app.cfg.DB.MaxConns,
		MinConns:        app.cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(app.cfg.DB.MaxConnLifetime) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store init failed: %w", err)
	}
	app.logger.Info("postgres store initialized")
	return app.pgStore, nil
}

func setupSnapshots(ctx context.Context, app *App) (crawler.BlobStore, error) {
	switch app.cfg.Snapshots.Backend {
	case "gcs":
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: app.cfg.Snapshots.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs snapshot store init failed: %w", err)
		}
		app.snapshotStore = store
		app.logger.Info("using GCS snapshot backend", zap.String("bucket", app.cfg.Snapshots.GCSBucket))
		return store, nil
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Snapshots.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local snapshot store init failed: %w", err)
		}
		app.logger.Info("using local snapshot backend", zap.String("path", app.cfg.Snapshots.LocalDir))
		return store, nil
	default:
		app.logger.Info("snapshots disabled")
		return nil, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (crawler.Publisher, error) {
	if app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub project configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(client)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("report_topic", app.cfg.Report.Topic),
	)
	return app.publisher, nil
}

func setupOrchestrator(app *App, repo repository, snapshots crawler.BlobStore) (*orchestrator.Orchestrator, error) {
	cfg := app.cfg
	launcher, err := browser.NewLauncher(browser.Config{
		Headless:             cfg.Browser.Headless,
		ExecPath:             cfg.Browser.ExecPath,
		UserAgent:            cfg.Browser.UserAgent,
		AcceptLanguage:       cfg.Browser.AcceptLanguage,
		NavigationTimeout:    time.Duration(cfg.Browser.NavTimeoutSeconds) * time.Second,
		ActionTimeout:        time.Duration(cfg.Browser.ActionTimeoutSeconds) * time.Second,
		NavigationsPerSecond: cfg.Browser.NavigationsPerSecond,
	}, app.logger)
	if err != nil {
		return nil, fmt.Errorf("browser launcher init failed: %w", err)
	}

	extractor := extract.New(extract.Strategies, app.logger)
	loc := cfg.Location()

	deps := orchestrator.Deps{
		Launcher:  launcher,
		Navigator: browser.NewNavigator(browser.NavigatorConfig{
			FrameTimeout: time.Duration(cfg.Crawler.FrameTimeoutSeconds) * time.Second,
		}, app.logger),
		Loader: browser.NewLoader(browser.LoaderConfig{
			CountSelector: extractor.CountSelector(),
			ClickRetries:  cfg.Crawler.ClickRetries,
			Backoff:       time.Duration(cfg.Crawler.BackoffMillis) * time.Millisecond,
		}, app.logger),
		Extractor: extractor,
		Dates:     dateparse.New(system.NewIn(loc), loc),
		Sink:      repo,
		IDs:       uuid.New(),
		Clock:     system.New(),
	}
	if snapshots != nil {
		deps.Snapshots = snapshots
	}

	app.logger.Info("orchestrator config",
		zap.Duration("run_timeout", cfg.RunTimeout()),
		zap.Int("max_iterations", cfg.Crawler.MaxIterations),
		zap.Int("hard_cap", cfg.Crawler.HardCap),
		zap.String("timezone", loc.String()),
	)
	return orchestrator.New(deps, orchestrator.Config{
		RunTimeout:     cfg.RunTimeout(),
		MaxIterations:  cfg.Crawler.MaxIterations,
		HardCap:        cfg.Crawler.HardCap,
		MinConfidence:  cfg.Crawler.MinConfidence,
		SnapshotPrefix: cfg.Snapshots.Prefix,
	}, app.logger), nil
}

func leaseOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	id, err := uuid.New().NewID()
	if err != nil {
		return host
	}
	return host + "/" + id
}
