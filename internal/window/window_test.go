package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func aged(content string, days int) crawler.EnrichedItem {
	d := now.AddDate(0, 0, -days)
	return crawler.EnrichedItem{RawItem: crawler.RawItem{Content: content}, Normalized: content, ResolvedDate: &d}
}

func undated(content string) crawler.EnrichedItem {
	return crawler.EnrichedItem{RawItem: crawler.RawItem{Content: content}, Normalized: content}
}

func contents(items []crawler.EnrichedItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Normalized)
	}
	return out
}

func TestSelectEscalatesUntilConfident(t *testing.T) {
	t.Parallel()

	windows := []int{30, 90, 180, 365, 0}
	items := []crawler.EnrichedItem{aged("d5", 5), aged("d40", 40), aged("d170", 170), aged("d400", 400)}
	sel := Select(items, windows, 3, 300, now)

	require.Equal(t, 180, sel.WindowUsed)
	require.Equal(t, []string{"d5", "d40", "d170"}, contents(sel.Items))
	require.False(t, sel.Truncated)
}

func TestSelectWindowBoundary(t *testing.T) {
	t.Parallel()

	// 200 days is outside the 180 day window, so three items are only reached at 365.
	windows := []int{30, 90, 180, 365, 0}
	items := []crawler.EnrichedItem{aged("d5", 5), aged("d40", 40), aged("d200", 200), aged("d400", 400)}
	sel := Select(items, windows, 3, 300, now)

	require.Equal(t, 365, sel.WindowUsed)
	require.Equal(t, []string{"d5", "d40", "d200"}, contents(sel.Items))

	edge := []crawler.EnrichedItem{aged("d180", 180)}
	require.Equal(t, 180, Select(edge, []int{180}, 1, 0, now).WindowUsed)
	require.Len(t, Select(edge, []int{180}, 1, 0, now).Items, 1)
}

func TestSelectStopsAtUnboundedRegardlessOfCount(t *testing.T) {
	t.Parallel()

	items := []crawler.EnrichedItem{aged("d5", 5), aged("d400", 400)}
	sel := Select(items, []int{30, 0, 365}, 10, 0, now)

	require.Equal(t, Unbounded, sel.WindowUsed)
	require.Len(t, sel.Items, 2)
}

func TestSelectLastBoundedWindowWhenNeverConfident(t *testing.T) {
	t.Parallel()

	items := []crawler.EnrichedItem{aged("d5", 5), aged("d400", 400)}
	sel := Select(items, []int{7, 30}, 5, 0, now)

	require.Equal(t, 30, sel.WindowUsed)
	require.Equal(t, []string{"d5"}, contents(sel.Items))
}

func TestSelectCountsUnknownDatesAsInside(t *testing.T) {
	t.Parallel()

	items := []crawler.EnrichedItem{aged("d5", 5), undated("u1"), undated("u2")}
	sel := Select(items, []int{1, 0}, 2, 0, now)

	require.Equal(t, 1, sel.WindowUsed)
	require.Equal(t, []string{"u1", "u2"}, contents(sel.Items))
}

func TestSelectEmptyWindowsMeansUnbounded(t *testing.T) {
	t.Parallel()

	sel := Select([]crawler.EnrichedItem{aged("a", 1000)}, nil, 1, 0, now)
	require.Equal(t, Unbounded, sel.WindowUsed)
	require.Len(t, sel.Items, 1)
}

func TestSelectTruncatesTail(t *testing.T) {
	t.Parallel()

	items := []crawler.EnrichedItem{aged("a", 1), aged("b", 2), aged("c", 3)}
	sel := Select(items, []int{0}, 1, 2, now)

	require.True(t, sel.Truncated)
	require.Equal(t, []string{"a", "b"}, contents(sel.Items))
}

func TestSortByDateDescIsStableWithUnknownLast(t *testing.T) {
	t.Parallel()

	items := []crawler.EnrichedItem{undated("u1"), aged("old", 50), undated("u2"), aged("new", 1), aged("mid", 10)}
	SortByDateDesc(items)

	require.Equal(t, []string{"new", "mid", "old", "u1", "u2"}, contents(items))
}

func TestFilterSince(t *testing.T) {
	t.Parallel()

	checkpoint := now.AddDate(0, 0, -10)
	items := []crawler.EnrichedItem{aged("after", 9), aged("equal", 10), aged("before", 11), undated("unknown")}

	require.Equal(t, []string{"after", "unknown"}, contents(FilterSince(items, &checkpoint)))
	require.Len(t, FilterSince(items, nil), 4)
}
