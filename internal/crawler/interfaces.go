package crawler

import (
	"context"
	"time"
)

// PersistenceSink stores reviews and checkpoints. Upsert must be atomic per
// (user, store, surrogate key); it is the only concurrency boundary between runs.
type PersistenceSink interface {
	FindBySurrogate(ctx context.Context, userID string, storeID *string, key string) (*Review, error)
	Upsert(ctx context.Context, review Review) (Review, error)
	UpdateCheckpoint(ctx context.Context, storeID string, ts time.Time) error
}

// StoreDirectory lists tenants and the stores they registered.
type StoreDirectory interface {
	ListAutoCrawlStores(ctx context.Context) ([]Store, error)
	GetTenant(ctx context.Context, userID string) (Tenant, error)
	GetStore(ctx context.Context, userID, storeID string) (Store, error)
}

// QuotaGate resolves per-run limits and settles credits after a run.
type QuotaGate interface {
	Limits(ctx context.Context, tenant Tenant) (QuotaDecision, error)
	// Debit removes up to amount credits and returns how many were taken.
	Debit(ctx context.Context, userID string, amount int) (int, error)
}

// ReportTrigger requests report generation. Callers treat failures as non-fatal.
type ReportTrigger interface {
	Generate(ctx context.Context, userID string, storeID *string, rangeDays int) error
}

// Publisher pushes payloads to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces review IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Frame is a handle to the document that carries the review list.
type Frame interface {
	// Click clicks the first visible element matching selector and reports whether one was found.
	Click(ctx context.Context, selector string) (bool, error)
	ScrollToBottom(ctx context.Context) error
	Count(ctx context.Context, selector string) (int, error)
	HTML(ctx context.Context) (string, error)
	URL() string
}

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// AttachFrame waits up to timeout for an iframe matching selector and returns its content frame.
	AttachFrame(ctx context.Context, selector string, timeout time.Duration) (Frame, error)
	// MainFrame returns the top-level document of the tab.
	MainFrame() Frame
	Close() error
}

// Session is a live browser process.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
