package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

const reviewColumns = `id, user_id, store_id, surrogate_key, content, rating, platform, created_at`

func scanReview(row pgx.Row) (crawler.Review, error) {
	var r crawler.Review
	err := row.Scan(&r.ID, &r.UserID, &r.StoreID, &r.SurrogateKey, &r.Content, &r.Rating, &r.Platform, &r.CreatedAt)
	return r, err
}

// FindBySurrogate returns the review with key in the tenant/store scope, or nil.
func (s *Store) FindBySurrogate(ctx context.Context, userID string, storeID *string, key string) (*crawler.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE user_id = $1 AND store_id IS NOT DISTINCT FROM $2 AND surrogate_key = $3;
	`
	review, err := scanReview(s.pool.QueryRow(ctx, query, userID, storeID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find review: %w", err)
	}
	return &review, nil
}

// Upsert inserts review or, when the scoped key exists, updates the existing
// row and returns it with its original ID. A zero rating keeps the stored one.
func (s *Store) Upsert(ctx context.Context, review crawler.Review) (crawler.Review, error) {
	query := `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, store_id, surrogate_key) DO UPDATE
		SET content = EXCLUDED.content,
			rating = CASE WHEN EXCLUDED.rating > 0 THEN EXCLUDED.rating ELSE reviews.rating END,
			platform = EXCLUDED.platform,
			created_at = EXCLUDED.created_at,
			updated_at = now()
		RETURNING ` + reviewColumns + `;
	`
	stored, err := scanReview(s.pool.QueryRow(ctx, query,
		review.ID,
		review.UserID,
		review.StoreID,
		review.SurrogateKey,
		review.Content,
		review.Rating,
		review.Platform,
		review.CreatedAt,
	))
	if err != nil {
		return crawler.Review{}, fmt.Errorf("upsert review: %w", err)
	}
	return stored, nil
}

// UpdateCheckpoint sets the store's last crawl time.
func (s *Store) UpdateCheckpoint(ctx context.Context, storeID string, ts time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE stores SET last_crawled_at = $2 WHERE id = $1;`, storeID, ts)
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store %s: %w", storeID, crawler.ErrNotFound)
	}
	return nil
}
