package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

// hardCapSlack lets loading run a little past hardCap so window selection has
// room to discard undated or stale items.
const hardCapSlack = 1.2

// LoaderConfig tunes review list expansion.
type LoaderConfig struct {
	// CountSelector matches one node per loaded review.
	CountSelector string
	// MoreSelectors match "show more" buttons.
	MoreSelectors []string
	ClickRetries  int
	Backoff       time.Duration
}

// DefaultMoreSelectors match the list expansion buttons seen on review pages.
var DefaultMoreSelectors = []string{
	"a.fvwqf",
	"a[class*='more']",
	"button[class*='more']",
}

// Loader scrolls and clicks until the review list stops growing.
type Loader struct {
	cfg    LoaderConfig
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewLoader returns a Loader with defaults for unset fields.
func NewLoader(cfg LoaderConfig, logger *zap.Logger) *Loader {
	if cfg.MoreSelectors == nil {
		cfg.MoreSelectors = DefaultMoreSelectors
	}
	if cfg.ClickRetries <= 0 {
		cfg.ClickRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1300 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, logger: logger.Named("loader"), sleep: sleepCtx}
}

// Expand loads more reviews for at most maxIterations rounds and returns the
// last observed review count. It stops when the count stops changing, or once
// the count reaches hardCap*1.2 (hardCap <= 0 disables that stop). A detached
// frame ends the loop quietly; other errors are returned with the last count.
func (l *Loader) Expand(ctx context.Context, frame crawler.Frame, maxIterations, hardCap int) (int, error) {
	count, err := frame.Count(ctx, l.cfg.CountSelector)
	if err != nil {
		return l.stop(count, err)
	}
	more := strings.Join(l.cfg.MoreSelectors, ", ")

	for i := 0; i < maxIterations; i++ {
		if hardCap > 0 && float64(count) >= float64(hardCap)*hardCapSlack {
			l.logger.Debug("hard cap reached", zap.Int("count", count), zap.Int("hard_cap", hardCap))
			break
		}
		if more != "" {
			for attempt := 0; attempt < l.cfg.ClickRetries; attempt++ {
				clicked, err := frame.Click(ctx, more)
				if err != nil {
					return l.stop(count, err)
				}
				if !clicked {
					break
				}
			}
		}
		if err := frame.ScrollToBottom(ctx); err != nil {
			return l.stop(count, err)
		}
		if err := l.sleep(ctx, l.cfg.Backoff); err != nil {
			return count, err
		}
		next, err := frame.Count(ctx, l.cfg.CountSelector)
		if err != nil {
			return l.stop(count, err)
		}
		if next == count {
			break
		}
		count = next
	}
	return count, nil
}

func (l *Loader) stop(count int, err error) (int, error) {
	if errors.Is(err, crawler.ErrFrameDetached) {
		l.logger.Info("frame detached while loading", zap.Int("count", count), zap.Error(err))
		return count, nil
	}
	return count, err
}
