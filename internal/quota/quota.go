// Package quota decides how many reviews a tenant may collect per run and
// settles extra credits afterwards.
package quota

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

// Ledger holds extra credit balances. DebitCredits must be atomic and clamp
// at zero, returning the amount actually taken.
type Ledger interface {
	DebitCredits(ctx context.Context, userID string, amount int) (int, error)
	AddCredits(ctx context.Context, userID string, amount int) (int, error)
}

// Config holds the per-tier limits.
type Config struct {
	FreeBaseline      int
	FreeWindows       []int
	SubscriberCap     int
	SubscriberWindows []int
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		FreeBaseline:      300,
		FreeWindows:       []int{30, 90, 180, 365, 0},
		SubscriberCap:     1000,
		SubscriberWindows: []int{30, 0},
	}
}

// Gate implements crawler.QuotaGate.
type Gate struct {
	cfg    Config
	ledger Ledger
	logger *zap.Logger
}

// NewGate constructs a Gate.
func NewGate(cfg Config, ledger Ledger, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{cfg: cfg, ledger: ledger, logger: logger.Named("quota")}
}

// Limits returns the run limits for tenant. Active subscribers get a high cap
// with narrow windows; everyone else gets the free baseline plus their extra
// credits with the wide escalating windows. A tenant whose limit works out to
// zero gets crawler.ErrQuotaExhausted.
func (g *Gate) Limits(_ context.Context, tenant crawler.Tenant) (crawler.QuotaDecision, error) {
	if tenant.SubscriptionActive {
		return crawler.QuotaDecision{
			MaxReviews: g.cfg.SubscriberCap,
			DayWindows: append([]int(nil), g.cfg.SubscriberWindows...),
		}, nil
	}
	limit := g.cfg.FreeBaseline + max(tenant.ExtraCredits, 0)
	if limit <= 0 {
		return crawler.QuotaDecision{}, fmt.Errorf("user %s: %w", tenant.UserID, crawler.ErrQuotaExhausted)
	}
	return crawler.QuotaDecision{
		MaxReviews: limit,
		DayWindows: append([]int(nil), g.cfg.FreeWindows...),
	}, nil
}

// Overage is the number of credits a free-tier run consumed beyond the baseline.
func (g *Gate) Overage(tenant crawler.Tenant, added int) int {
	if tenant.SubscriptionActive {
		return 0
	}
	return max(added-g.cfg.FreeBaseline, 0)
}

// Debit removes up to amount credits; the balance never goes negative.
func (g *Gate) Debit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, nil
	}
	taken, err := g.ledger.DebitCredits(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("debit credits: %w", err)
	}
	if taken < amount {
		g.logger.Warn("debit clamped to balance",
			zap.String("user_id", userID), zap.Int("requested", amount), zap.Int("taken", taken))
	}
	return taken, nil
}

// Credit adds purchased credits and returns the new balance.
func (g *Gate) Credit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	balance, err := g.ledger.AddCredits(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return balance, nil
}
