package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/cache"

	"github.com/rs/zerolog"
)

func TestLockerRejectsSecondHolder(t *testing.T) {
	ctx := context.Background()
	l := NewLocker(cache.NewMemoryStore(), time.Minute, zerolog.Nop())
	key := "sync:quickbooks:acct-1"

	release, err := l.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, key); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("second Acquire err=%v want ErrSyncInProgress", err)
	}

	// other accounts are independent
	otherRelease, err := l.Acquire(ctx, "sync:quickbooks:acct-2")
	if err != nil {
		t.Fatalf("Acquire other account: %v", err)
	}
	otherRelease()

	release()
	again, err := l.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
}
