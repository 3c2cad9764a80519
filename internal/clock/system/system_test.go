package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestClockNowUTC ensures the default clock returns UTC timestamps.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after))
}

func TestClockNowInLocation(t *testing.T) {
	t.Parallel()

	seoul := time.FixedZone("KST", 9*60*60)
	got := NewIn(seoul).Now()
	require.Equal(t, seoul, got.Location())
	require.Equal(t, time.UTC, NewIn(nil).Now().Location())
}
