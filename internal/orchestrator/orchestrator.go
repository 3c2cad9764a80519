// Package orchestrator runs one crawl of a place: browser, extraction,
// selection and persistence, converting every failure into a crawler.Result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/extract"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/hash/surrogate"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/metrics"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/telemetry"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/textnorm"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/window"
)

// Navigator reaches the review frame of a place.
type Navigator interface {
	Navigate(ctx context.Context, page crawler.Page, placeID string) (crawler.Frame, error)
}

// Loader expands the review list of a frame.
type Loader interface {
	Expand(ctx context.Context, frame crawler.Frame, maxIterations, hardCap int) (int, error)
}

// Extractor reads review items from a frame.
type Extractor interface {
	Extract(ctx context.Context, frame crawler.Frame) (extract.Output, error)
}

// DateParser resolves review date labels.
type DateParser interface {
	Parse(text string) *time.Time
}

// Config tunes a run.
type Config struct {
	RunTimeout    time.Duration
	MaxIterations int
	// HardCap bounds how many selected items a run considers. A request whose
	// MaxReviews is larger raises it for that run.
	HardCap       int
	MinConfidence int
	// SnapshotPrefix is the object prefix for documents that yielded no reviews.
	SnapshotPrefix string
}

// Deps are the collaborators of an Orchestrator. Snapshots may be nil.
type Deps struct {
	Launcher  crawler.Launcher
	Navigator Navigator
	Loader    Loader
	Extractor Extractor
	Dates     DateParser
	Sink      crawler.PersistenceSink
	IDs       crawler.IDGenerator
	Clock     crawler.Clock
	Snapshots crawler.BlobStore
}

// Request describes one crawl.
type Request struct {
	PlaceID string
	UserID  string
	StoreID *string
	// MaxReviews bounds new inserts; <= 0 means no bound.
	MaxReviews int
	DayWindows []int
	// Since is the store checkpoint; nil on a first crawl.
	Since *time.Time
}

// Orchestrator executes crawl runs.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs an Orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 30
	}
	if cfg.HardCap <= 0 {
		cfg.HardCap = 300
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 10
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "snapshots"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger.Named("orchestrator")}
}

// Run crawls req.PlaceID. It never returns an error and never panics: any
// failure yields a Result with Count 0 and a log entry. The browser session
// is closed on every path.
func (o *Orchestrator) Run(ctx context.Context, req Request) crawler.Result {
	started := time.Now()
	r := &run{logger: o.logger.With(zap.String("place_id", req.PlaceID), zap.String("user_id", req.UserID))}

	ctx, span := telemetry.StartCrawl(ctx, req.PlaceID, req.UserID)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	o.execute(ctx, req, r)
	r.enter(StateDone)

	telemetry.EndCrawl(span, r.outcome(), r.count, r.updated)

	metrics.ObserveRun(r.outcome(), time.Since(started))
	if !r.failed {
		metrics.ObservePersisted(r.count, r.updated)
	}
	return r.result()
}

func (o *Orchestrator) hardCap(req Request) int {
	if req.MaxReviews > o.cfg.HardCap {
		return req.MaxReviews
	}
	return o.cfg.HardCap
}

func (o *Orchestrator) execute(ctx context.Context, req Request, r *run) {
	var (
		session crawler.Session
		err     error
	)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			r.fail(err)
		}
		r.enter(StateCleanup)
		if session != nil {
			if cerr := session.Close(); cerr != nil {
				r.logger.Warn("close browser session", zap.Error(cerr))
			}
			metrics.DecActiveRuns()
		}
	}()

	r.enter(StateStarting)
	if strings.TrimSpace(req.PlaceID) == "" {
		err = errors.New("place id is required")
		return
	}
	session, err = o.deps.Launcher.Launch(ctx)
	if err != nil {
		err = fmt.Errorf("launch browser: %w", err)
		return
	}
	metrics.IncActiveRuns()

	page, err := session.NewPage(ctx)
	if err != nil {
		err = fmt.Errorf("open page: %w", err)
		return
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			r.logger.Debug("close page", zap.Error(cerr))
		}
	}()

	err = o.crawl(ctx, page, req, r)
}

func (o *Orchestrator) crawl(ctx context.Context, page crawler.Page, req Request, r *run) error {
	hardCap := o.hardCap(req)

	r.enter(StateNavigating)
	frame, err := o.deps.Navigator.Navigate(ctx, page, req.PlaceID)
	if err != nil {
		metrics.ObserveNavigationFailure()
		return err
	}
	r.logf("review frame at %s", frame.URL())

	r.enter(StateLoading)
	observed, err := o.deps.Loader.Expand(ctx, frame, o.cfg.MaxIterations, hardCap)
	if err != nil {
		return fmt.Errorf("load reviews: %w", err)
	}
	r.logf("%d review nodes loaded", observed)

	r.enter(StateExtracting)
	out, err := o.deps.Extractor.Extract(ctx, frame)
	if err != nil {
		if errors.Is(err, crawler.ErrFrameDetached) {
			r.empty = true
			r.logf("frame detached before extraction, nothing captured")
			return nil
		}
		return fmt.Errorf("extract reviews: %w", err)
	}
	if len(out.Items) == 0 {
		r.empty = true
		r.logf("%v", crawler.ErrExtractionEmpty)
		o.archive(ctx, req, out.HTML, r)
		return nil
	}
	r.logf("%d items extracted with strategy %s", len(out.Items), out.Version)

	r.enter(StateNormalizing)
	items := o.enrich(out.Items)

	r.enter(StateSelecting)
	window.SortByDateDesc(items)
	windows := req.DayWindows
	if len(windows) == 0 {
		windows = []int{window.Unbounded}
	}
	sel := window.Select(items, windows, o.cfg.MinConfidence, hardCap, o.deps.Clock.Now())
	metrics.ObserveWindow(sel.WindowUsed)
	switch {
	case sel.Truncated:
		r.limitedBy = crawler.LimitHardCap
	case sel.WindowUsed != window.Unbounded && len(sel.Items) < len(items):
		r.limitedBy = crawler.LimitWindow
	}
	if sel.WindowUsed != window.Unbounded {
		days := sel.WindowUsed
		r.rangeDays = &days
	}
	r.logf("%d of %d items selected, window %d days", len(sel.Items), len(items), sel.WindowUsed)

	r.enter(StateFiltering)
	fresh := window.FilterSince(sel.Items, req.Since)
	r.logf("%d items newer than checkpoint", len(fresh))

	r.enter(StatePersisting)
	return o.persist(ctx, req, fresh, r)
}

func (o *Orchestrator) enrich(raw []crawler.RawItem) []crawler.EnrichedItem {
	out := make([]crawler.EnrichedItem, 0, len(raw))
	for _, item := range raw {
		out = append(out, crawler.EnrichedItem{
			RawItem:      item,
			Normalized:   textnorm.CleanOrRaw(item.Content),
			ResolvedDate: o.deps.Dates.Parse(item.DateText),
		})
	}
	return out
}

func (o *Orchestrator) persist(ctx context.Context, req Request, items []crawler.EnrichedItem, r *run) error {
	keyer := surrogate.New(req.PlaceID)
	now := o.deps.Clock.Now()

	for i, item := range items {
		if req.MaxReviews > 0 && r.count >= req.MaxReviews {
			r.limitedBy = crawler.LimitQuota
			r.logf("max reviews %d reached, %d items skipped", req.MaxReviews, len(items)-i)
			break
		}
		review := crawler.Review{
			SurrogateKey: keyer.Key(item.Author, item.Normalized),
			Content:      item.Normalized,
			Rating:       item.Rating,
			Platform:     crawler.Platform,
			CreatedAt:    now,
			StoreID:      req.StoreID,
			UserID:       req.UserID,
		}
		if item.ResolvedDate != nil {
			review.CreatedAt = *item.ResolvedDate
		}

		existing, err := o.deps.Sink.FindBySurrogate(ctx, req.UserID, req.StoreID, review.SurrogateKey)
		if err != nil {
			return fmt.Errorf("find review %s: %w", review.SurrogateKey, err)
		}
		if existing != nil {
			review.ID = existing.ID
			if review.Rating == 0 {
				review.Rating = existing.Rating
			}
			if _, err := o.deps.Sink.Upsert(ctx, review); err != nil {
				return fmt.Errorf("update review %s: %w", review.SurrogateKey, err)
			}
			r.updated++
			continue
		}

		id, err := o.deps.IDs.NewID()
		if err != nil {
			return err
		}
		review.ID = id
		stored, err := o.deps.Sink.Upsert(ctx, review)
		if err != nil {
			return fmt.Errorf("insert review %s: %w", review.SurrogateKey, err)
		}
		// A concurrent run inserted the same key first; the sink updated its row.
		if stored.ID != id {
			r.updated++
			continue
		}
		r.count++
	}
	r.logf("%d reviews added, %d updated", r.count, r.updated)
	return nil
}

// archive stores the document that produced no reviews so selector churn can
// be diagnosed. Failures are logged only.
func (o *Orchestrator) archive(ctx context.Context, req Request, html string, r *run) {
	if o.deps.Snapshots == nil || html == "" {
		return
	}
	path := fmt.Sprintf("%s/%s/%s.html",
		strings.Trim(o.cfg.SnapshotPrefix, "/"), req.PlaceID, o.deps.Clock.Now().UTC().Format("20060102T150405Z"))
	uri, err := o.deps.Snapshots.PutObject(ctx, path, "text/html; charset=utf-8", []byte(html))
	if err != nil {
		r.logger.Warn("snapshot upload failed", zap.Error(err))
		return
	}
	r.logf("empty document archived at %s", uri)
}
