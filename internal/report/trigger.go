// Package report requests review report generation from downstream workers.
package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

// Periods are the report ranges, in days, built for auto-report tenants.
var Periods = []int{7, 30, 90, 365}

// Trigger publishes report requests. It implements crawler.ReportTrigger.
type Trigger struct {
	publisher crawler.Publisher
	topic     string
	clock     crawler.Clock
	logger    *zap.Logger
}

// NewTrigger constructs a Trigger. An empty topic disables publishing.
func NewTrigger(publisher crawler.Publisher, topic string, clock crawler.Clock, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{publisher: publisher, topic: topic, clock: clock, logger: logger.Named("report")}
}

// Generate asks for a report over the last rangeDays days.
func (t *Trigger) Generate(ctx context.Context, userID string, storeID *string, rangeDays int) error {
	if rangeDays <= 0 {
		return fmt.Errorf("range days must be positive, got %d", rangeDays)
	}
	if t.topic == "" || t.publisher == nil {
		t.logger.Debug("report topic not configured, skipping", zap.String("user_id", userID))
		return nil
	}
	req := crawler.ReportRequest{
		UserID:      userID,
		StoreID:     storeID,
		RangeDays:   rangeDays,
		RequestedAt: t.clock.Now(),
	}
	id, err := t.publisher.Publish(ctx, t.topic, req)
	if err != nil {
		return fmt.Errorf("publish report request: %w", err)
	}
	t.logger.Info("report requested",
		zap.String("user_id", userID),
		zap.Int("range_days", rangeDays),
		zap.String("message_id", id),
	)
	return nil
}
