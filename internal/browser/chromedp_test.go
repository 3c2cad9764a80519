package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

func TestNewLauncherValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewLauncher(Config{NavigationsPerSecond: -1}, nil); err == nil {
		t.Fatal("expected error for negative navigation rate")
	}
	l, err := NewLauncher(Config{NavigationsPerSecond: 0.5}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := float64(l.limiter.Limit()); got != 0.5 {
		t.Fatalf("expected limit 0.5, got %v", got)
	}
	if len(l.allocatorOptions()) == 0 {
		t.Fatal("expected allocator options")
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	if cfg.WindowWidth != 1280 || cfg.WindowHeight != 800 {
		t.Fatalf("unexpected window %dx%d", cfg.WindowWidth, cfg.WindowHeight)
	}
	if cfg.NavigationTimeout != 60*time.Second || cfg.ActionTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts %v %v", cfg.NavigationTimeout, cfg.ActionTimeout)
	}
	if cfg.UserAgent == "" || cfg.NavigationBurst != 1 {
		t.Fatalf("expected user agent and burst defaults, got %+v", cfg)
	}
}

func TestClassifyDetachErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want bool
	}{
		{msg: "Execution context was destroyed.", want: true},
		{msg: "Cannot find context with specified id", want: true},
		{msg: "frame detached", want: true},
		{msg: "net::ERR_CONNECTION_RESET", want: false},
	}
	for _, tc := range cases {
		got := errors.Is(classify(errors.New(tc.msg)), crawler.ErrFrameDetached)
		if got != tc.want {
			t.Fatalf("classify(%q) detached = %v, want %v", tc.msg, got, tc.want)
		}
	}
	if classify(nil) != nil {
		t.Fatal("classify(nil) should be nil")
	}
}

func TestResolveRef(t *testing.T) {
	t.Parallel()

	got, err := resolveRef("https://map.naver.com/p/entry/place/1", "/place/1/home")
	if err != nil || got != "https://map.naver.com/place/1/home" {
		t.Fatalf("resolveRef relative = %q, %v", got, err)
	}
	got, err = resolveRef("https://map.naver.com/p", "https://pcmap.place.naver.com/place/1/home")
	if err != nil || got != "https://pcmap.place.naver.com/place/1/home" {
		t.Fatalf("resolveRef absolute = %q, %v", got, err)
	}
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	if !sameHost("https://pcmap.place.naver.com/a", "https://PCMAP.place.naver.com/b?x=1") {
		t.Fatal("expected same host")
	}
	if sameHost("https://pcmap.place.naver.com/a", "about:blank") {
		t.Fatal("expected host change to be detected")
	}
}

func TestJSStringEscapes(t *testing.T) {
	t.Parallel()

	if got := jsString(`a[aria-label*="리뷰"]`); got != `"a[aria-label*=\"리뷰\"]"` {
		t.Fatalf("unexpected js string %s", got)
	}
}
