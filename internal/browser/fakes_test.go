package browser

import (
	"context"
	"errors"
	"time"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

type fakeFrame struct {
	url       string
	counts    []int
	countErrs map[int]error
	countIdx  int
	clickable int
	visible   map[string]bool
	clicks    []string
	scrolls   int
	clickErr  error
	scrollErr error
}

func (f *fakeFrame) Click(_ context.Context, selector string) (bool, error) {
	f.clicks = append(f.clicks, selector)
	if f.clickErr != nil {
		return false, f.clickErr
	}
	if f.visible != nil {
		return f.visible[selector], nil
	}
	if f.clickable > 0 {
		f.clickable--
		return true, nil
	}
	return false, nil
}

func (f *fakeFrame) ScrollToBottom(context.Context) error {
	f.scrolls++
	return f.scrollErr
}

func (f *fakeFrame) Count(context.Context, string) (int, error) {
	idx := f.countIdx
	f.countIdx++
	if err, ok := f.countErrs[idx]; ok {
		return 0, err
	}
	if idx >= len(f.counts) {
		return f.counts[len(f.counts)-1], nil
	}
	return f.counts[idx], nil
}

func (f *fakeFrame) HTML(context.Context) (string, error) { return "", nil }

func (f *fakeFrame) URL() string { return f.url }

type fakePage struct {
	navigated  []string
	navErrs    map[string]error
	attachErr  error
	frame      *fakeFrame
	main       *fakeFrame
	attachedTo string
	closed     bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	return p.navErrs[url]
}

func (p *fakePage) AttachFrame(_ context.Context, selector string, _ time.Duration) (crawler.Frame, error) {
	p.attachedTo = selector
	if p.attachErr != nil {
		return nil, p.attachErr
	}
	return p.frame, nil
}

func (p *fakePage) MainFrame() crawler.Frame { return p.main }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

var errTimeout = errors.New("waiting for selector: context deadline exceeded")

func noSleep(context.Context, time.Duration) error { return nil }
