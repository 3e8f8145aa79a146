package lock

import (
	"context"
	"fmt"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Locker implements ports.SyncLocker on top of a KeyValueStore. With the memory
// store it serializes within one process; with Redis it holds across replicas.
// The TTL bounds how long a crashed holder can block a key.
type Locker struct {
	store  ports.KeyValueStore
	ttl    time.Duration
	logger zerolog.Logger
}

func NewLocker(store ports.KeyValueStore, ttl time.Duration, logger zerolog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Locker{store: store, ttl: ttl, logger: logger}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token := []byte(uuid.NewString())
	ok, err := l.store.SetNX(ctx, "lock:"+key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrSyncInProgress
	}
	return func() {
		// release must survive a cancelled request context
		if err := l.store.DeleteIfEquals(context.Background(), "lock:"+key, token); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("Failed to release sync lock")
		}
	}, nil
}
