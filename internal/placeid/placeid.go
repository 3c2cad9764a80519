// Package placeid pulls the place identifier out of the many URL shapes a
// store owner may paste: desktop map links, mobile place pages and short
// share links.
package placeid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no place id can be recovered from a URL.
var ErrNotFound = errors.New("no place id in url")

// patterns are tried in order; the first capture wins.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`place/(\d{5,12})`),
	regexp.MustCompile(`restaurant/(\d{5,12})/`),
	regexp.MustCompile(`/(\d{5,12})/home`),
	regexp.MustCompile(`code=(\d{5,12})`),
	regexp.MustCompile(`topId=(\d{5,12})`),
}

var digitRun = regexp.MustCompile(`\d{7,12}`)

// Extract returns the place id embedded in rawURL.
func Extract(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	for _, re := range patterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	if m := digitRun.FindString(rawURL); m != "" {
		return m, true
	}
	return "", false
}

// ResolverConfig tunes share-link resolution.
type ResolverConfig struct {
	UserAgent string
	Timeout   time.Duration
	// ShortHosts are link shorteners whose redirect chain must be followed.
	ShortHosts   []string
	MaxRedirects int
}

// DefaultResolverConfig returns the production settings.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
		Timeout:      10 * time.Second,
		ShortHosts:   []string{"naver.me"},
		MaxRedirects: 10,
	}
}

// Resolver turns any store URL into a place id, following short links.
type Resolver struct {
	cfg    ResolverConfig
	logger *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, logger: logger.Named("placeid")}
}

// Resolve returns the place id for rawURL.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !r.isShort(u.Hostname()) {
		if id, ok := Extract(rawURL); ok {
			return id, nil
		}
		return "", ErrNotFound
	}

	hops, visitErr := r.follow(ctx, rawURL)
	for _, hop := range hops {
		if id, ok := Extract(hop); ok {
			r.logger.Debug("share link resolved", zap.String("url", rawURL), zap.String("target", hop))
			return id, nil
		}
	}
	if visitErr != nil {
		return "", visitErr
	}
	return "", ErrNotFound
}

func (r *Resolver) isShort(host string) bool {
	host = strings.ToLower(host)
	for _, short := range r.cfg.ShortHosts {
		if host == short || strings.HasSuffix(host, "."+short) {
			return true
		}
	}
	return false
}

// follow visits rawURL and records every URL in its redirect chain. It stops
// at the first hop that already carries a place id.
func (r *Resolver) follow(ctx context.Context, rawURL string) ([]string, error) {
	var (
		mu   sync.Mutex
		hops []string
	)
	record := func(u string) {
		mu.Lock()
		defer mu.Unlock()
		hops = append(hops, u)
	}

	c := colly.NewCollector(colly.Async(false))
	if r.cfg.UserAgent != "" {
		c.UserAgent = r.cfg.UserAgent
	}
	c.SetRequestTimeout(r.cfg.Timeout)
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		record(req.URL.String())
		if _, ok := Extract(req.URL.String()); ok {
			return http.ErrUseLastResponse
		}
		if len(via) >= r.cfg.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		return nil
	})
	c.OnResponse(func(resp *colly.Response) {
		record(resp.Request.URL.String())
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(rawURL)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = fmt.Errorf("resolve share link canceled: %w", ctx.Err())
	case visitErr := <-done:
		if visitErr != nil {
			err = fmt.Errorf("resolve share link: %w", visitErr)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]string(nil), hops...), err
}
