package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

func newTestNavigator() *Navigator {
	n := NewNavigator(NavigatorConfig{}, nil)
	n.sleep = noSleep
	return n
}

func TestNavigatorPrimaryFrame(t *testing.T) {
	t.Parallel()

	frame := &fakeFrame{url: "https://pcmap.place.naver.com/restaurant/1234567/home", clickable: 1}
	page := &fakePage{frame: frame, main: &fakeFrame{}}

	got, err := newTestNavigator().Navigate(context.Background(), page, "1234567")
	if err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if got != frame {
		t.Fatalf("expected embedded frame, got %v", got)
	}
	if len(page.navigated) != 1 || page.navigated[0] != "https://map.naver.com/p/entry/place/1234567" {
		t.Fatalf("unexpected navigations %v", page.navigated)
	}
	if page.attachedTo != "iframe#entryIframe" {
		t.Fatalf("expected frame selector, got %q", page.attachedTo)
	}
	if len(frame.clicks) != 1 {
		t.Fatalf("expected one review tab click, got %d", len(frame.clicks))
	}
}

func TestNavigatorReviewTabPriority(t *testing.T) {
	t.Parallel()

	selectors := []string{"a.primary", "a.secondary", "a.last"}
	tests := []struct {
		name    string
		visible map[string]bool
		want    []string
	}{
		{"first wins over later match", map[string]bool{"a.primary": true, "a.last": true}, []string{"a.primary"}},
		{"falls through to later selector", map[string]bool{"a.last": true}, selectors},
		{"stops at second", map[string]bool{"a.secondary": true, "a.last": true}, []string{"a.primary", "a.secondary"}},
		{"no tab visible", map[string]bool{}, selectors},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			frame := &fakeFrame{visible: tt.visible}
			page := &fakePage{frame: frame, main: &fakeFrame{}}
			n := NewNavigator(NavigatorConfig{ReviewTabSelectors: selectors}, nil)
			n.sleep = noSleep

			if _, err := n.Navigate(context.Background(), page, "1234567"); err != nil {
				t.Fatalf("Navigate() error = %v", err)
			}
			if len(frame.clicks) != len(tt.want) {
				t.Fatalf("clicks = %v, want %v", frame.clicks, tt.want)
			}
			for i := range tt.want {
				if frame.clicks[i] != tt.want[i] {
					t.Fatalf("clicks = %v, want %v", frame.clicks, tt.want)
				}
			}
		})
	}
}

func TestNavigatorFallsBackToMobile(t *testing.T) {
	t.Parallel()

	main := &fakeFrame{url: "https://m.place.naver.com/place/1234567/review/visitor"}
	page := &fakePage{attachErr: errTimeout, main: main}

	got, err := newTestNavigator().Navigate(context.Background(), page, "1234567")
	if err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if got != main {
		t.Fatalf("expected mobile main frame, got %v", got)
	}
	want := []string{
		"https://map.naver.com/p/entry/place/1234567",
		"https://m.place.naver.com/place/1234567/review/visitor",
	}
	if len(page.navigated) != 2 || page.navigated[0] != want[0] || page.navigated[1] != want[1] {
		t.Fatalf("unexpected navigations %v", page.navigated)
	}
}

func TestNavigatorBothPathsFail(t *testing.T) {
	t.Parallel()

	mobileErr := errors.New("net::ERR_NAME_NOT_RESOLVED")
	page := &fakePage{
		attachErr: errTimeout,
		navErrs:   map[string]error{"https://m.place.naver.com/place/42/review/visitor": mobileErr},
	}

	_, err := newTestNavigator().Navigate(context.Background(), page, "42")
	var navErr *crawler.NavigationError
	if !errors.As(err, &navErr) {
		t.Fatalf("expected NavigationError, got %v", err)
	}
	if navErr.PlaceID != "42" || !errors.Is(err, errTimeout) || !errors.Is(err, mobileErr) {
		t.Fatalf("unexpected navigation error %+v", navErr)
	}
}

func TestNavigatorSkipsFallbackWhenCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := &fakePage{attachErr: errTimeout}

	_, err := newTestNavigator().Navigate(ctx, page, "42")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled cause, got %v", err)
	}
	if len(page.navigated) != 1 {
		t.Fatalf("fallback should not run after cancel, navigated %v", page.navigated)
	}
}
