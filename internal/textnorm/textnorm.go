// Package textnorm strips page chrome and reviewer metadata from extracted review text.
package textnorm

import (
	"regexp"
	"strings"
)

// chromePhrases never occur in review bodies. Everything from the first one on
// is page chrome (reaction widgets, keyword sections, report links).
var chromePhrases = []string{
	"반응 남기기",
	"이런 점이 좋았어요",
	"인증 수단",
	"펼쳐보기",
	"리뷰 더 보기",
	"Report review",
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	pipeRun       = regexp.MustCompile(`\|(?:\s*\|)+`)
	// badgeTail matches visit badges ("재방문", "영수증", "방문일 2.15.목", "더보기")
	// only as standalone tokens running to the end of the text, so the same
	// words inside a sentence are kept.
	badgeTail = regexp.MustCompile(
		`(?:^|\s)` + badge + `(?:\s+(?:` + badge + `|` + dateToken + `|[·•|]))*\s*$`,
	)
	// nickname, optional review/photo counters, visit count, time-of-day marker.
	reviewerMeta = regexp.MustCompile(
		`^\S+\s+(?:리뷰\s*\d+\s*[·•]?\s*)?(?:사진\s*\d+\s*[·•]?\s*)?(?:팔로우\s*)?` +
			`(?:\d+\s*번째\s*방문|방문\s*\d+\s*회)\s*[·•]?\s*` +
			`(?:아침|점심|낮|저녁|밤|새벽)(?:에)?(?:\s*방문)?\s*`,
	)
)

const (
	badge     = `(?:재방문|영수증|방문일|예약 후 이용|더보기|Show more|See more|\d+번째 방문)`
	dateToken = `\d{1,4}(?:[.:]\d{1,2})*\.?(?:[월화수목금토일](?:요일)?)?`
)

// Clean normalizes raw review text. The result is a fixed point: Clean(Clean(x)) == Clean(x).
func Clean(raw string) string {
	out := raw
	for {
		next := cleanOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

// CleanOrRaw returns Clean(raw), or the whitespace-collapsed raw text when
// cleaning removed everything.
func CleanOrRaw(raw string) string {
	if cleaned := Clean(raw); cleaned != "" {
		return cleaned
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(raw, " "))
}

func cleanOnce(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = cutAtPhrase(s)
	s = badgeTail.ReplaceAllString(s, "")
	s = reviewerMeta.ReplaceAllString(s, "")
	s = pipeRun.ReplaceAllString(s, "|")
	return strings.Trim(s, " |")
}

func cutAtPhrase(s string) string {
	cut := len(s)
	for _, marker := range chromePhrases {
		if idx := strings.Index(s, marker); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return s[:cut]
}
