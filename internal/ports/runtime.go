package ports

import (
	"context"
	"time"

	"pestops-sync/internal/domain"
)

// KeyValueStore is a small TTL key/value store used for OAuth state and locks.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// DeleteIfEquals removes key only while it still holds value.
	DeleteIfEquals(ctx context.Context, key string, value []byte) error
}

// SyncLocker guarantees at most one holder per key. Acquire fails with
// domain.ErrSyncInProgress when the key is held.
type SyncLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// SyncEventPublisher receives every recorded audit entry.
type SyncEventPublisher interface {
	Publish(entry *domain.SyncLogEntry)
}

// SyncMetrics receives sync engine measurements.
type SyncMetrics interface {
	ObserveRun(provider domain.Provider, trigger domain.SyncTrigger, status domain.SyncStatus, d time.Duration)
	IncEntity(provider domain.Provider, entityType domain.EntityType, status domain.SyncStatus)
	IncWebhook(provider domain.Provider, outcome string)
}
