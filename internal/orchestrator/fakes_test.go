package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/extract"
)

type fakeLauncher struct {
	session   *fakeSession
	launchErr error
	launches  int
}

func (l *fakeLauncher) Launch(context.Context) (crawler.Session, error) {
	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return l.session, nil
}

type fakeSession struct {
	page   *fakePage
	closed bool
}

func (s *fakeSession) NewPage(context.Context) (crawler.Page, error) { return s.page, nil }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakePage struct {
	frame     *fakeFrame
	attachErr error
	navErr    error
	closed    bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	if p.navErr != nil && strings.Contains(url, "m.place") {
		return p.navErr
	}
	return nil
}

func (p *fakePage) AttachFrame(context.Context, string, time.Duration) (crawler.Frame, error) {
	if p.attachErr != nil {
		return nil, p.attachErr
	}
	return p.frame, nil
}

func (p *fakePage) MainFrame() crawler.Frame { return p.frame }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeFrame struct {
	html    string
	count   int
	blockOn bool
}

func (f *fakeFrame) Click(context.Context, string) (bool, error) { return false, nil }

func (f *fakeFrame) ScrollToBottom(context.Context) error { return nil }

func (f *fakeFrame) Count(ctx context.Context, _ string) (int, error) {
	if f.blockOn {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.count, nil
}

func (f *fakeFrame) HTML(context.Context) (string, error) { return f.html, nil }

func (f *fakeFrame) URL() string { return "https://pcmap.place.naver.com/place/1234567/review/visitor" }

type review struct {
	author string
	body   string
	date   time.Time
}

func reviewsHTML(reviews []review) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, r := range reviews {
		fmt.Fprintf(&b,
			`<div class="EvB_Z"><span class="sBWyy">%s</span><span class="zPfVt">%s</span><span class="time">%s</span></div>`,
			r.author, r.body, r.date.Format("2006.01.02"))
	}
	b.WriteString("</body></html>")
	return b.String()
}

func agedReviews(now time.Time, prefix string, ages ...int) []review {
	out := make([]review, 0, len(ages))
	for i, age := range ages {
		out = append(out, review{
			author: fmt.Sprintf("%s-user-%d", prefix, i),
			body:   fmt.Sprintf("%s review number %d", prefix, i),
			date:   now.AddDate(0, 0, -age),
		})
	}
	return out
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n), nil
}

type panicExtractor struct{}

func (panicExtractor) Extract(context.Context, crawler.Frame) (extract.Output, error) {
	panic("selector engine exploded")
}

// hidingSink pretends no row exists so the insert path meets an existing key.
type hidingSink struct {
	crawler.PersistenceSink
}

func (hidingSink) FindBySurrogate(context.Context, string, *string, string) (*crawler.Review, error) {
	return nil, nil
}

var errMobile = errors.New("net::ERR_ABORTED")
