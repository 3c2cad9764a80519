package extract

import "strings"

// Strategy is one generation of review markup. Strategies are tried in order
// and the first one producing items wins; markup churn is handled by adding a
// new entry at the front rather than touching the extraction code.
type Strategy struct {
	Version string
	// Content selects the nodes that carry review bodies.
	Content string
	// Container is matched with Closest from each content node. Empty means the
	// content node is its own container.
	Container string
	Author    []string
	Date      []string
	Rating    []string
}

// Strategies is the ordered list used by New when none is supplied.
var Strategies = []Strategy{
	{
		Version:   "2024-visitor-pui",
		Content:   "li.pui__X35jYm div.pui__vn15t2, li.place_apply_pui div.pui__vn15t2",
		Container: "li",
		Author:    []string{".pui__NMi-Dp", ".pui__uslU0d span"},
		Date:      []string{"time", ".pui__gfuUIT", "span.pui__blind"},
		Rating:    []string{"[class*='PlaceReviewScore']", ".pui__6aZDGd"},
	},
	{
		Version:   "2022-legacy-evbz",
		Content:   ".EvB_Z .zPfVt",
		Container: ".EvB_Z",
		Author:    []string{".sBWyy", ".YwYLL"},
		Date:      []string{".time", "time"},
		Rating:    []string{".hzzSN span[class*='PlaceReviewScore']"},
	},
	{
		Version: "loose-list-items",
		Content: strings.Join([]string{
			"section[aria-label*='리뷰'] ul li",
			"ul.list_place_reviews li",
			"li.place_section_content__item",
			"li.place_apply_pui",
			"li[data-testid*='review']",
		}, ", "),
		Author: []string{"[class*='name']", "[class*='nick']", "strong"},
		Date:   []string{"time", "[class*='date']", "[class*='time']", "span", "em"},
		Rating: []string{"[class*='score']", "[class*='Score']"},
	},
}

// CountSelector returns a selector matching the review nodes of every strategy,
// suitable for counting how many reviews a page has loaded.
func CountSelector(strategies []Strategy) string {
	parts := make([]string, 0, len(strategies))
	for _, s := range strategies {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, ", ")
}
