// Package extract reads review items out of a loaded review page.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	dateLike   = regexp.MustCompile(`\d{4}\s*[.\-/년]\s*\d{1,2}|\d{1,2}\s*[.월]\s*\d{1,2}`)
	score      = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Extractor applies an ordered strategy list to frame HTML.
type Extractor struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New returns an Extractor. A nil or empty strategies slice uses Strategies.
func New(strategies []Strategy, logger *zap.Logger) *Extractor {
	if len(strategies) == 0 {
		strategies = Strategies
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{strategies: strategies, logger: logger.Named("extract")}
}

// CountSelector matches review nodes of any configured strategy.
func (e *Extractor) CountSelector() string {
	return CountSelector(e.strategies)
}

// Output is the result of one extraction.
type Output struct {
	Items []crawler.RawItem
	// Version names the strategy that matched; empty when none did.
	Version string
	// HTML is the document the items were read from.
	HTML string
}

// Extract reads the frame document and returns its review items. A page with
// no matching nodes yields empty Items and a nil error.
func (e *Extractor) Extract(ctx context.Context, frame crawler.Frame) (Output, error) {
	html, err := frame.HTML(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("read frame html: %w", err)
	}
	items, version, err := e.FromHTML(html)
	if err != nil {
		return Output{HTML: html}, err
	}
	if len(items) == 0 {
		e.logger.Debug("no strategy matched", zap.String("url", frame.URL()))
	} else {
		e.logger.Debug("strategy matched", zap.String("version", version), zap.Int("items", len(items)))
	}
	return Output{Items: items, Version: version, HTML: html}, nil
}

// FromHTML evaluates the strategies against an HTML document and reports the
// version of the strategy that produced items.
func (e *Extractor) FromHTML(html string) ([]crawler.RawItem, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("parse html: %w", err)
	}
	for _, strategy := range e.strategies {
		if items := apply(doc, strategy); len(items) > 0 {
			return items, strategy.Version, nil
		}
	}
	return []crawler.RawItem{}, "", nil
}

// apply yields one item per matched node. Identical texts are kept; identity
// is decided later by the surrogate key, which includes the author.
func apply(doc *goquery.Document, s Strategy) []crawler.RawItem {
	var items []crawler.RawItem
	doc.Find(s.Content).Each(func(_ int, node *goquery.Selection) {
		content := collapse(node.Text())
		if content == "" {
			return
		}

		container := node
		if s.Container != "" {
			if c := node.Closest(s.Container); c.Length() > 0 {
				container = c
			}
		}
		items = append(items, crawler.RawItem{
			Content:  content,
			Author:   firstText(container, s.Author, nil),
			DateText: firstText(container, s.Date, dateLike),
			Rating:   rating(container, s.Rating),
		})
	})
	return items
}

// firstText returns the first non-empty text among selector matches inside
// container. When pattern is set, candidates must match it.
func firstText(container *goquery.Selection, selectors []string, pattern *regexp.Regexp) string {
	for _, sel := range selectors {
		var found string
		container.Find(sel).EachWithBreak(func(_ int, candidate *goquery.Selection) bool {
			text := collapse(candidate.Text())
			if text == "" {
				return true
			}
			if pattern != nil && !pattern.MatchString(text) {
				return true
			}
			found = text
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func rating(container *goquery.Selection, selectors []string) int {
	for _, sel := range selectors {
		text := collapse(container.Find(sel).First().Text())
		m := score.FindString(text)
		if m == "" {
			continue
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil || f < 0 || f > 5 {
			continue
		}
		return int(f)
	}
	return 0
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
