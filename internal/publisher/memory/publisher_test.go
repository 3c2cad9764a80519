package memory

import (
	"context"
	"errors"
	"testing"
)

var errBoom = errors.New("injected publish failure")

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id, err := pub.Publish(context.Background(), "review-reports", map[string]int{"range_days": 7})
	if err != nil || id != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id, err)
	}
	if _, err := pub.Publish(context.Background(), "review-reports", "second"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 || msgs[1].Payload != "second" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherFailNext(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.FailNext(errBoom)
	if _, err := pub.Publish(context.Background(), "t", 1); err != errBoom {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := pub.Publish(context.Background(), "t", 1); err != nil {
		t.Fatalf("expected recovery after injected error, got %v", err)
	}
	if len(pub.Messages()) != 1 {
		t.Fatalf("failed publish should not be recorded")
	}
}
