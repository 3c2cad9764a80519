package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/publisher/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestGeneratePublishesRequest(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	pub := memory.New()
	store := "store-1"
	trig := NewTrigger(pub, "review-reports", fixedClock{now: now}, nil)

	require.NoError(t, trig.Generate(context.Background(), "u1", &store, 30))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "review-reports", msgs[0].Topic)
	require.Equal(t, crawler.ReportRequest{UserID: "u1", StoreID: &store, RangeDays: 30, RequestedAt: now}, msgs[0].Payload)
}

func TestGenerateWithoutTopicIsNoop(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	require.NoError(t, NewTrigger(pub, "", fixedClock{}, nil).Generate(context.Background(), "u1", nil, 7))
	require.Empty(t, pub.Messages())
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	trig := NewTrigger(pub, "review-reports", fixedClock{}, nil)
	require.Error(t, trig.Generate(context.Background(), "u1", nil, 0))

	boom := errors.New("unavailable")
	pub.FailNext(boom)
	require.ErrorIs(t, trig.Generate(context.Background(), "u1", nil, 7), boom)
}
