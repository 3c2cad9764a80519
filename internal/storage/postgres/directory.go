package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

const storeColumns = `id, user_id, place_id, auto_crawl, last_crawled_at`

func scanStore(row pgx.Row) (crawler.Store, error) {
	var st crawler.Store
	err := row.Scan(&st.ID, &st.UserID, &st.PlaceID, &st.AutoCrawl, &st.LastCrawledAt)
	return st, err
}

// ListAutoCrawlStores returns stores with auto crawl enabled, ordered by ID.
func (s *Store) ListAutoCrawlStores(ctx context.Context) ([]crawler.Store, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+storeColumns+` FROM stores WHERE auto_crawl ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var stores []crawler.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stores: %w", err)
	}
	return stores, nil
}

// GetTenant fetches a tenant by user ID.
func (s *Store) GetTenant(ctx context.Context, userID string) (crawler.Tenant, error) {
	query := `
		SELECT user_id, subscription_active, extra_credits, auto_report
		FROM tenants
		WHERE user_id = $1;
	`
	var t crawler.Tenant
	err := s.pool.QueryRow(ctx, query, userID).Scan(&t.UserID, &t.SubscriptionActive, &t.ExtraCredits, &t.AutoReport)
	if err != nil {
		return crawler.Tenant{}, notFound(err, "tenant", userID)
	}
	return t, nil
}

// GetStore fetches a store owned by userID.
func (s *Store) GetStore(ctx context.Context, userID, storeID string) (crawler.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1 AND user_id = $2;`
	st, err := scanStore(s.pool.QueryRow(ctx, query, storeID, userID))
	if err != nil {
		return crawler.Store{}, notFound(err, "store", storeID)
	}
	return st, nil
}
