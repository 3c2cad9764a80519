package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

// NavigatorConfig holds the URLs and selectors used to reach a review list.
// URL templates take the place ID as their only verb.
type NavigatorConfig struct {
	DesktopURL    string
	MobileURL     string
	FrameSelector string
	FrameTimeout  time.Duration
	// ReviewTabSelectors are tried in order; the first visible match is clicked.
	ReviewTabSelectors []string
	TabSettle          time.Duration
}

// DefaultNavigatorConfig returns the production entry points.
func DefaultNavigatorConfig() NavigatorConfig {
	return NavigatorConfig{
		DesktopURL:    "https://map.naver.com/p/entry/place/%s",
		MobileURL:     "https://m.place.naver.com/place/%s/review/visitor",
		FrameSelector: "iframe#entryIframe",
		FrameTimeout:  30 * time.Second,
		ReviewTabSelectors: []string{
			`a[role="tab"][href*="review"]`,
			`a[aria-label*="리뷰"]`,
			`button[aria-label*="리뷰"]`,
		},
		TabSettle: 1200 * time.Millisecond,
	}
}

// Navigator resolves a place ID to the frame holding its reviews.
type Navigator struct {
	cfg    NavigatorConfig
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewNavigator returns a Navigator; zero-valued fields fall back to DefaultNavigatorConfig.
func NewNavigator(cfg NavigatorConfig, logger *zap.Logger) *Navigator {
	def := DefaultNavigatorConfig()
	if cfg.DesktopURL == "" {
		cfg.DesktopURL = def.DesktopURL
	}
	if cfg.MobileURL == "" {
		cfg.MobileURL = def.MobileURL
	}
	if cfg.FrameSelector == "" {
		cfg.FrameSelector = def.FrameSelector
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = def.FrameTimeout
	}
	if cfg.ReviewTabSelectors == nil {
		cfg.ReviewTabSelectors = def.ReviewTabSelectors
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{cfg: cfg, logger: logger.Named("navigator"), sleep: sleepCtx}
}

// Navigate tries the embedded frame of the desktop page first and the mobile
// page second. Only when both fail is a *crawler.NavigationError returned.
func (n *Navigator) Navigate(ctx context.Context, page crawler.Page, placeID string) (crawler.Frame, error) {
	frame, primaryErr := n.primary(ctx, page, placeID)
	if primaryErr == nil {
		return frame, nil
	}
	n.logger.Debug("primary navigation failed, trying mobile page",
		zap.String("place_id", placeID), zap.Error(primaryErr))
	if ctx.Err() != nil {
		return nil, &crawler.NavigationError{PlaceID: placeID, Primary: primaryErr, Fallback: ctx.Err()}
	}

	frame, fallbackErr := n.fallback(ctx, page, placeID)
	if fallbackErr == nil {
		return frame, nil
	}
	return nil, &crawler.NavigationError{PlaceID: placeID, Primary: primaryErr, Fallback: fallbackErr}
}

func (n *Navigator) primary(ctx context.Context, page crawler.Page, placeID string) (crawler.Frame, error) {
	if err := page.Navigate(ctx, fmt.Sprintf(n.cfg.DesktopURL, placeID)); err != nil {
		return nil, err
	}
	frame, err := page.AttachFrame(ctx, n.cfg.FrameSelector, n.cfg.FrameTimeout)
	if err != nil {
		return nil, err
	}
	n.openReviewTab(ctx, frame)
	return frame, nil
}

func (n *Navigator) fallback(ctx context.Context, page crawler.Page, placeID string) (crawler.Frame, error) {
	if err := page.Navigate(ctx, fmt.Sprintf(n.cfg.MobileURL, placeID)); err != nil {
		return nil, err
	}
	frame := page.MainFrame()
	n.openReviewTab(ctx, frame)
	return frame, nil
}

// openReviewTab clicks the review tab when the page landed on another tab.
// A missing tab is not an error.
func (n *Navigator) openReviewTab(ctx context.Context, frame crawler.Frame) {
	for _, sel := range n.cfg.ReviewTabSelectors {
		clicked, err := frame.Click(ctx, sel)
		if err != nil {
			n.logger.Debug("review tab click failed", zap.String("selector", sel), zap.Error(err))
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if !clicked {
			continue
		}
		if n.cfg.TabSettle > 0 {
			_ = n.sleep(ctx, n.cfg.TabSettle)
		}
		return
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
