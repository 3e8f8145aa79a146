package pubsub

import (
	"context"
	"testing"
	"time"

	"pestops-sync/internal/domain"

	"github.com/rs/zerolog"
)

func TestPublishRespectsAccountFilter(t *testing.T) {
	ps := NewSyncEventPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := ps.Subscribe(ctx, &SyncEventFilter{AccountID: "acct-1"})

	ps.Publish(&domain.SyncLogEntry{ID: "other", AccountID: "acct-2"})
	ps.Publish(&domain.SyncLogEntry{ID: "mine", AccountID: "acct-1"})

	select {
	case e := <-sub.Events:
		if e.ID != "mine" {
			t.Fatalf("received %q, want mine", e.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event received")
	}
}

func TestSubscriptionClosesOnCancel(t *testing.T) {
	ps := NewSyncEventPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	sub := ps.Subscribe(ctx, nil)
	cancel()

	select {
	case <-sub.Done:
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed after cancel")
	}
	if n := ps.Stats()["active_subscriptions"].(int); n != 0 {
		t.Fatalf("active_subscriptions=%d want 0", n)
	}
}
