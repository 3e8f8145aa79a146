package pubsub

import (
	"context"
	"fmt"
	"sync"

	"pestops-sync/internal/domain"

	"github.com/rs/zerolog"
)

// SyncEventChannel is one live subscription to audit entries.
type SyncEventChannel struct {
	ID     string
	Filter *SyncEventFilter
	Events chan *domain.SyncLogEntry
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// SyncEventFilter narrows a subscription. Empty fields match everything.
type SyncEventFilter struct {
	AccountID   string
	Provider    domain.Provider
	EntityTypes []domain.EntityType
}

// SyncEventPubSub fans recorded sync entries out to subscribers (SSE streams).
type SyncEventPubSub struct {
	mu       sync.RWMutex
	channels map[string]*SyncEventChannel
	logger   zerolog.Logger
	nextID   int64
	idMu     sync.Mutex
}

func NewSyncEventPubSub(logger zerolog.Logger) *SyncEventPubSub {
	return &SyncEventPubSub{
		channels: make(map[string]*SyncEventChannel),
		logger:   logger,
	}
}

// Subscribe registers a channel that lives until ctx is cancelled.
func (ps *SyncEventPubSub) Subscribe(ctx context.Context, filter *SyncEventFilter) *SyncEventChannel {
	ps.idMu.Lock()
	ps.nextID++
	id := fmt.Sprintf("sync-sub-%d", ps.nextID)
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	channel := &SyncEventChannel{
		ID:     id,
		Filter: filter,
		Events: make(chan *domain.SyncLogEntry, 32),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.channels[id] = channel
	ps.mu.Unlock()

	ps.logger.Debug().Str("channelId", id).Msg("Sync event subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return channel
}

func (ps *SyncEventPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}
	close(channel.Events)
	close(channel.Done)
	channel.cancel()
	delete(ps.channels, channelID)

	ps.logger.Debug().Str("channelId", channelID).Msg("Sync event subscription removed")
}

// Publish never blocks; slow subscribers lose events.
func (ps *SyncEventPubSub) Publish(entry *domain.SyncLogEntry) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, channel := range ps.channels {
		if !matches(entry, channel.Filter) {
			continue
		}
		select {
		case channel.Events <- entry:
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Msg("Channel buffer full, dropping sync event")
		}
	}
}

func matches(entry *domain.SyncLogEntry, filter *SyncEventFilter) bool {
	if filter == nil {
		return true
	}
	if filter.AccountID != "" && entry.AccountID != filter.AccountID {
		return false
	}
	if filter.Provider != "" && entry.Provider != filter.Provider {
		return false
	}
	if len(filter.EntityTypes) > 0 {
		for _, t := range filter.EntityTypes {
			if entry.EntityType == t {
				return true
			}
		}
		return false
	}
	return true
}

// Stats reports the number of live subscriptions.
func (ps *SyncEventPubSub) Stats() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return map[string]interface{}{
		"active_subscriptions": len(ps.channels),
	}
}
