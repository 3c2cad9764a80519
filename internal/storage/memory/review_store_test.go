package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

func ptr(s string) *string { return &s }

func TestUpsertInsertsThenUpdatesByKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	first := crawler.Review{ID: "r1", SurrogateKey: "abcd1234", Content: "old", UserID: "u1", StoreID: ptr("s1")}
	stored, err := s.Upsert(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "r1", stored.ID)

	again := first
	again.ID = "r2"
	again.Content = "new"
	again.Rating = 5
	stored, err = s.Upsert(ctx, again)
	require.NoError(t, err)
	require.Equal(t, "r1", stored.ID)
	require.Equal(t, "new", stored.Content)
	require.Equal(t, 5, stored.Rating)

	found, err := s.FindBySurrogate(ctx, "u1", ptr("s1"), "abcd1234")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "new", found.Content)
	require.Len(t, s.Reviews("u1"), 1)
}

func TestFindBySurrogateIsScoped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	_, err := s.Upsert(ctx, crawler.Review{ID: "r1", SurrogateKey: "k", UserID: "u1", StoreID: ptr("s1")})
	require.NoError(t, err)

	for _, tc := range []struct {
		user  string
		store *string
	}{
		{user: "u2", store: ptr("s1")},
		{user: "u1", store: ptr("s2")},
		{user: "u1", store: nil},
	} {
		found, err := s.FindBySurrogate(ctx, tc.user, tc.store, "k")
		require.NoError(t, err)
		require.Nil(t, found)
	}
}

func TestUpsertRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewStore().Upsert(context.Background(), crawler.Review{ID: "r1"})
	require.Error(t, err)
}

func TestCheckpointAndDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	s.PutStore(crawler.Store{ID: "b", UserID: "u1", PlaceID: "2", AutoCrawl: true})
	s.PutStore(crawler.Store{ID: "a", UserID: "u1", PlaceID: "1", AutoCrawl: true})
	s.PutStore(crawler.Store{ID: "c", UserID: "u2", PlaceID: "3"})

	stores, err := s.ListAutoCrawlStores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	require.Equal(t, "a", stores[0].ID)

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.UpdateCheckpoint(ctx, "a", ts))
	st, err := s.GetStore(ctx, "u1", "a")
	require.NoError(t, err)
	require.True(t, ts.Equal(*st.LastCrawledAt))

	_, err = s.GetStore(ctx, "u2", "a")
	require.True(t, errors.Is(err, crawler.ErrNotFound))
	require.ErrorIs(t, s.UpdateCheckpoint(ctx, "missing", ts), crawler.ErrNotFound)
}

func TestDebitCreditsClampsAtZero(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	s.PutTenant(crawler.Tenant{UserID: "u1", ExtraCredits: 20})

	taken, err := s.DebitCredits(ctx, "u1", 15)
	require.NoError(t, err)
	require.Equal(t, 15, taken)

	taken, err = s.DebitCredits(ctx, "u1", 15)
	require.NoError(t, err)
	require.Equal(t, 5, taken)

	taken, err = s.DebitCredits(ctx, "u1", -3)
	require.NoError(t, err)
	require.Zero(t, taken)

	tenant, err := s.GetTenant(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, tenant.ExtraCredits)

	balance, err := s.AddCredits(ctx, "u1", 7)
	require.NoError(t, err)
	require.Equal(t, 7, balance)

	_, err = s.DebitCredits(ctx, "nobody", 1)
	require.ErrorIs(t, err, crawler.ErrNotFound)
}
