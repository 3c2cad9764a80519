package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if crawlRunsTotal == nil || reviewsPersistedTotal == nil || schedulerStoresTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservePersistedSkipsZero(t *testing.T) {
	Init()
	before := testutil.ToFloat64(reviewsPersistedTotal.WithLabelValues("updated"))

	ObservePersisted(3, 0)
	ObserveRun("ok", 2*time.Second)

	if val := testutil.ToFloat64(reviewsPersistedTotal.WithLabelValues("updated")); val != before {
		t.Errorf("expected updated counter unchanged at %f, got %f", before, val)
	}
	if val := testutil.ToFloat64(reviewsPersistedTotal.WithLabelValues("inserted")); val < 3 {
		t.Errorf("expected inserted counter >= 3, got %f", val)
	}
}

func TestActiveRunsGauge(t *testing.T) {
	Init()
	base := testutil.ToFloat64(activeRuns)
	IncActiveRuns()
	if val := testutil.ToFloat64(activeRuns); val != base+1 {
		t.Errorf("expected %f, got %f", base+1, val)
	}
	DecActiveRuns()
	if val := testutil.ToFloat64(activeRuns); val != base {
		t.Errorf("expected %f, got %f", base, val)
	}
}
