// Package browser drives headless Chrome to reach and load a place's review list.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultNavigationTimeout = 60 * time.Second
	defaultActionTimeout     = 15 * time.Second
)

// hides the most common automation fingerprint before any page script runs.
const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Config controls the Chrome process and per-tab behavior.
type Config struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	AcceptLanguage    string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	// NavigationsPerSecond paces page loads across every session sharing the Launcher.
	NavigationsPerSecond float64
	NavigationBurst      int
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = "ko-KR,ko;q=0.9,en;q=0.8"
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		c.WindowWidth, c.WindowHeight = 1280, 800
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavigationTimeout
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = defaultActionTimeout
	}
	if c.NavigationBurst <= 0 {
		c.NavigationBurst = 1
	}
	return c
}

// Launcher starts Chrome processes. It implements crawler.Launcher.
type Launcher struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewLauncher validates cfg and returns a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) (*Launcher, error) {
	if cfg.NavigationsPerSecond < 0 {
		return nil, fmt.Errorf("navigations per second must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.NavigationsPerSecond > 0 {
		limit = rate.Limit(cfg.NavigationsPerSecond)
	}
	return &Launcher{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.NavigationBurst),
		logger:  logger.Named("browser"),
	}, nil
}

// allocatorOptions returns the exec allocator flags, including the
// anti-detection set.
func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight),
		chromedp.UserAgent(l.cfg.UserAgent),
	)
	if l.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts a browser process bound to ctx. The caller must Close the session.
func (l *Launcher) Launch(ctx context.Context) (crawler.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// An empty run starts the process so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	l.logger.Debug("browser started")
	return &session{
		launcher:      l,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

type session struct {
	launcher      *Launcher
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// NewPage opens a tab with the user agent and stealth script installed.
func (s *session) NewPage(ctx context.Context) (crawler.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	p := &chromePage{cfg: s.launcher.cfg, limiter: s.launcher.limiter, ctx: tabCtx, cancel: tabCancel}
	if err := p.run(ctx, p.cfg.ActionTimeout, p.setupAction()); err != nil {
		tabCancel()
		return nil, fmt.Errorf("prepare tab: %w", err)
	}
	return p, nil
}

// Close terminates the browser process. It is safe to call more than once.
func (s *session) Close() error {
	s.browserCancel()
	s.allocCancel()
	return nil
}

type chromePage struct {
	cfg     Config
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	current string
}

func (p *chromePage) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(p.cfg.UserAgent).
			WithAcceptLanguage(p.cfg.AcceptLanguage).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
			return fmt.Errorf("install stealth script: %w", err)
		}
		return nil
	})
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, target string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("navigation pacing: %w", err)
	}
	err := p.run(ctx, p.cfg.NavigationTimeout,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	p.current = target
	return nil
}

// AttachFrame waits for the iframe, reads its src and loads that document in
// the tab, so every later frame operation runs against a top-level target.
func (p *chromePage) AttachFrame(ctx context.Context, selector string, timeout time.Duration) (crawler.Frame, error) {
	var (
		src string
		ok  bool
	)
	err := p.run(ctx, timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.AttributeValue(selector, "src", &src, &ok, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", selector, err)
	}
	if !ok || strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%s has no src", selector)
	}
	target, err := resolveRef(p.current, src)
	if err != nil {
		return nil, err
	}
	if err := p.Navigate(ctx, target); err != nil {
		return nil, err
	}
	return &chromeFrame{page: p, url: target}, nil
}

func (p *chromePage) MainFrame() crawler.Frame {
	return &chromeFrame{page: p, url: p.current}
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

type chromeFrame struct {
	page *chromePage
	url  string
}

const clickScript = `(() => {
  for (const el of document.querySelectorAll(%s)) {
    if (el.offsetParent !== null) { el.click(); return true; }
  }
  return false;
})()`

func (f *chromeFrame) Click(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	if err := f.eval(ctx, fmt.Sprintf(clickScript, jsString(selector)), &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}

func (f *chromeFrame) ScrollToBottom(ctx context.Context) error {
	return f.eval(ctx, `window.scrollTo(0, document.body.scrollHeight)`, nil)
}

func (f *chromeFrame) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := f.eval(ctx, fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector)), &n); err != nil {
		return 0, err
	}
	if err := f.checkAttached(ctx); err != nil {
		return n, err
	}
	return n, nil
}

func (f *chromeFrame) HTML(ctx context.Context) (string, error) {
	var html string
	if err := f.page.run(ctx, f.page.cfg.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", classify(err)
	}
	return html, nil
}

func (f *chromeFrame) URL() string {
	return f.url
}

func (f *chromeFrame) eval(ctx context.Context, script string, out any) error {
	if err := f.page.run(ctx, f.page.cfg.ActionTimeout, chromedp.Evaluate(script, out)); err != nil {
		return classify(err)
	}
	return nil
}

// checkAttached reports ErrFrameDetached when the tab left the frame's host.
func (f *chromeFrame) checkAttached(ctx context.Context) error {
	var location string
	if err := f.page.run(ctx, f.page.cfg.ActionTimeout, chromedp.Location(&location)); err != nil {
		return classify(err)
	}
	if !sameHost(f.url, location) {
		return fmt.Errorf("%w: now at %s", crawler.ErrFrameDetached, location)
	}
	return nil
}

var detachMarkers = []string{
	"detached",
	"Cannot find context",
	"Execution context was destroyed",
	"No node with given id",
}

// classify maps CDP errors caused by a navigation under the frame to ErrFrameDetached.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	for _, marker := range detachMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", crawler.ErrFrameDetached, err)
		}
	}
	return err
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func resolveRef(base, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse frame src %q: %w", ref, err)
	}
	if refURL.IsAbs() || base == "" {
		return refURL.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse page url %q: %w", base, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

func sameHost(expected, actual string) bool {
	if expected == "" || actual == "" {
		return true
	}
	a, errA := url.Parse(expected)
	b, errB := url.Parse(actual)
	if errA != nil || errB != nil {
		return true
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
