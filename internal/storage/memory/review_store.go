package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

type reviewKey struct {
	userID  string
	storeID string
	key     string
}

// Store keeps tenants, stores, reviews and credit balances in memory. It
// implements crawler.PersistenceSink, crawler.StoreDirectory and quota.Ledger.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]crawler.Tenant
	stores  map[string]crawler.Store
	reviews map[reviewKey]crawler.Review
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		tenants: make(map[string]crawler.Tenant),
		stores:  make(map[string]crawler.Store),
		reviews: make(map[reviewKey]crawler.Review),
	}
}

// PutTenant inserts or replaces a tenant.
func (s *Store) PutTenant(t crawler.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.UserID] = t
}

// PutStore inserts or replaces a store.
func (s *Store) PutStore(st crawler.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[st.ID] = st
}

func scope(userID string, storeID *string, key string) reviewKey {
	k := reviewKey{userID: userID, key: key}
	if storeID != nil {
		k.storeID = *storeID
	}
	return k
}

// FindBySurrogate returns the review with key in the tenant/store scope, or nil.
func (s *Store) FindBySurrogate(_ context.Context, userID string, storeID *string, key string) (*crawler.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[scope(userID, storeID, key)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// Upsert inserts review, or updates content, rating, platform and date of the
// row already holding its surrogate key. The stored row is returned.
func (s *Store) Upsert(_ context.Context, review crawler.Review) (crawler.Review, error) {
	if review.SurrogateKey == "" {
		return crawler.Review{}, fmt.Errorf("surrogate key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope(review.UserID, review.StoreID, review.SurrogateKey)
	if existing, ok := s.reviews[k]; ok {
		existing.Content = review.Content
		existing.Rating = review.Rating
		existing.Platform = review.Platform
		existing.CreatedAt = review.CreatedAt
		s.reviews[k] = existing
		return existing, nil
	}
	s.reviews[k] = review
	return review, nil
}

// UpdateCheckpoint sets the store's last crawl time.
func (s *Store) UpdateCheckpoint(_ context.Context, storeID string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[storeID]
	if !ok {
		return fmt.Errorf("store %s: %w", storeID, crawler.ErrNotFound)
	}
	st.LastCrawledAt = &ts
	s.stores[storeID] = st
	return nil
}

// ListAutoCrawlStores returns stores with auto crawl enabled, ordered by ID.
func (s *Store) ListAutoCrawlStores(_ context.Context) ([]crawler.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Store, 0, len(s.stores))
	for _, st := range s.stores {
		if st.AutoCrawl {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetTenant fetches a tenant by user ID.
func (s *Store) GetTenant(_ context.Context, userID string) (crawler.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[userID]
	if !ok {
		return crawler.Tenant{}, fmt.Errorf("tenant %s: %w", userID, crawler.ErrNotFound)
	}
	return t, nil
}

// GetStore fetches a store owned by userID.
func (s *Store) GetStore(_ context.Context, userID, storeID string) (crawler.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stores[storeID]
	if !ok || st.UserID != userID {
		return crawler.Store{}, fmt.Errorf("store %s: %w", storeID, crawler.ErrNotFound)
	}
	return st, nil
}

// DebitCredits removes up to amount credits and returns how many were taken.
// The balance never goes below zero.
func (s *Store) DebitCredits(_ context.Context, userID string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[userID]
	if !ok {
		return 0, fmt.Errorf("tenant %s: %w", userID, crawler.ErrNotFound)
	}
	taken := min(max(amount, 0), t.ExtraCredits)
	t.ExtraCredits -= taken
	s.tenants[userID] = t
	return taken, nil
}

// AddCredits increases the balance and returns the new total.
func (s *Store) AddCredits(_ context.Context, userID string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[userID]
	if !ok {
		return 0, fmt.Errorf("tenant %s: %w", userID, crawler.ErrNotFound)
	}
	t.ExtraCredits += amount
	s.tenants[userID] = t
	return t.ExtraCredits, nil
}

// Reviews returns every review of a tenant, newest first.
func (s *Store) Reviews(userID string) []crawler.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.Review
	for k, r := range s.reviews {
		if k.userID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SurrogateKey < out[j].SurrogateKey
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
