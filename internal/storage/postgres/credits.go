package postgres

import "context"

// DebitCredits removes up to amount credits and returns how many were taken.
// The row lock makes concurrent debits serialize; the balance never goes
// negative.
func (s *Store) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, nil
	}
	query := `
		WITH prev AS (
			SELECT user_id, extra_credits FROM tenants WHERE user_id = $1 FOR UPDATE
		)
		UPDATE tenants t
		SET extra_credits = GREATEST(0, prev.extra_credits - $2)
		FROM prev
		WHERE t.user_id = prev.user_id
		RETURNING prev.extra_credits - t.extra_credits;
	`
	var taken int
	if err := s.pool.QueryRow(ctx, query, userID, amount).Scan(&taken); err != nil {
		return 0, notFound(err, "tenant", userID)
	}
	return taken, nil
}

// AddCredits increases the balance and returns the new total.
func (s *Store) AddCredits(ctx context.Context, userID string, amount int) (int, error) {
	query := `UPDATE tenants SET extra_credits = extra_credits + $2 WHERE user_id = $1 RETURNING extra_credits;`
	var balance int
	if err := s.pool.QueryRow(ctx, query, userID, amount).Scan(&balance); err != nil {
		return 0, notFound(err, "tenant", userID)
	}
	return balance, nil
}

