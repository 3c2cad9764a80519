// Package window chooses which extracted reviews a run keeps, by recency.
package window

import (
	"sort"
	"time"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

// Unbounded is the day-window sentinel that keeps every item.
const Unbounded = 0

// Selection is the outcome of Select.
type Selection struct {
	Items []crawler.EnrichedItem
	// WindowUsed is the day window that satisfied selection; Unbounded when all items were kept.
	WindowUsed int
	// Truncated reports that hardCap dropped items from the tail.
	Truncated bool
}

// SortByDateDesc orders items newest first. Items without a resolved date go
// last and keep their relative order.
func SortByDateDesc(items []crawler.EnrichedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].ResolvedDate, items[j].ResolvedDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// Select escalates through windows (in days) until at least minConfidence
// items fall inside one, or the Unbounded window is reached. Items with an
// unknown date always count as inside. The result holds at most hardCap items;
// hardCap <= 0 disables the cap. items must already be sorted by SortByDateDesc.
func Select(items []crawler.EnrichedItem, windows []int, minConfidence, hardCap int, now time.Time) Selection {
	if len(windows) == 0 {
		windows = []int{Unbounded}
	}

	var sel Selection
	for _, days := range windows {
		if days <= Unbounded {
			sel = Selection{Items: append([]crawler.EnrichedItem(nil), items...), WindowUsed: Unbounded}
			break
		}
		cutoff := now.AddDate(0, 0, -days)
		sel = Selection{Items: within(items, cutoff), WindowUsed: days}
		if len(sel.Items) >= minConfidence {
			break
		}
	}

	if hardCap > 0 && len(sel.Items) > hardCap {
		sel.Items = sel.Items[:hardCap]
		sel.Truncated = true
	}
	return sel
}

// FilterSince keeps items dated strictly after checkpoint and items with no
// resolved date. A nil checkpoint keeps everything.
func FilterSince(items []crawler.EnrichedItem, checkpoint *time.Time) []crawler.EnrichedItem {
	if checkpoint == nil {
		return append([]crawler.EnrichedItem(nil), items...)
	}
	out := make([]crawler.EnrichedItem, 0, len(items))
	for _, item := range items {
		if item.ResolvedDate == nil || item.ResolvedDate.After(*checkpoint) {
			out = append(out, item)
		}
	}
	return out
}

func within(items []crawler.EnrichedItem, cutoff time.Time) []crawler.EnrichedItem {
	out := make([]crawler.EnrichedItem, 0, len(items))
	for _, item := range items {
		if item.ResolvedDate == nil || !item.ResolvedDate.Before(cutoff) {
			out = append(out, item)
		}
	}
	return out
}
