// Package crawler defines core types shared across subsystems.
package crawler

import (
	"time"
)

// Platform is the value stored on every persisted review.
const Platform = "source-site"

// RawItem is one review node read out of the loaded DOM. Author and DateText
// are empty when the markup did not expose them.
type RawItem struct {
	Content  string `json:"content"`
	Author   string `json:"author,omitempty"`
	DateText string `json:"date_text,omitempty"`
	Rating   int    `json:"rating,omitempty"`
}

// EnrichedItem is a RawItem after normalization and date resolution.
type EnrichedItem struct {
	RawItem
	Normalized   string     `json:"normalized"`
	ResolvedDate *time.Time `json:"resolved_date,omitempty"`
}

// Checkpoint records the last crawl time of a store.
type Checkpoint struct {
	StoreID       string     `json:"store_id"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
}

// Review is the persisted form of a review. SurrogateKey is unique within
// (UserID, StoreID).
type Review struct {
	ID           string    `json:"id"`
	SurrogateKey string    `json:"surrogate_key"`
	Content      string    `json:"content"`
	Rating       int       `json:"rating"`
	Platform     string    `json:"platform"`
	CreatedAt    time.Time `json:"created_at"`
	StoreID      *string   `json:"store_id,omitempty"`
	UserID       string    `json:"user_id"`
}

// LimitReason explains why a run returned fewer reviews than it saw.
type LimitReason string

// Limit reasons reported on a Result.
const (
	LimitNone    LimitReason = ""
	LimitQuota   LimitReason = "quota"
	LimitWindow  LimitReason = "window"
	LimitHardCap LimitReason = "hard_cap"
)

// Result is the only thing a crawl run hands back to its caller.
type Result struct {
	Count         int         `json:"added"`
	Logs          []string    `json:"logs"`
	RangeDaysUsed *int        `json:"rangeDays,omitempty"`
	LimitedBy     LimitReason `json:"limitedBy,omitempty"`
}

// QuotaDecision carries the per-run limits handed out by a QuotaGate.
// A DayWindows entry of 0 means unbounded.
type QuotaDecision struct {
	MaxReviews int   `json:"max_reviews"`
	DayWindows []int `json:"day_windows"`
}

// Tenant is the store owner account as far as crawling is concerned.
type Tenant struct {
	UserID             string `json:"user_id"`
	SubscriptionActive bool   `json:"subscription_active"`
	ExtraCredits       int    `json:"extra_credits"`
	AutoReport         bool   `json:"auto_report"`
}

// Store is one place registered by a tenant.
type Store struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	PlaceID       string     `json:"place_id"`
	AutoCrawl     bool       `json:"auto_crawl"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
}

// Checkpoint returns the crawl checkpoint view of the store.
func (s Store) Checkpoint() Checkpoint {
	return Checkpoint{StoreID: s.ID, LastCrawledAt: s.LastCrawledAt}
}

// ReportRequest asks downstream workers to build a review report.
type ReportRequest struct {
	UserID      string    `json:"user_id"`
	StoreID     *string   `json:"store_id,omitempty"`
	RangeDays   int       `json:"range_days"`
	RequestedAt time.Time `json:"requested_at"`
}
