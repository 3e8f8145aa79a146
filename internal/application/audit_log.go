package application

import (
	"context"
	"fmt"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/rs/zerolog"
)

// AuditLog is the append-only record of sync attempts. Every recorded entry is
// also handed to the event publisher for live subscribers.
type AuditLog struct {
	repo      ports.SyncLogRepository
	publisher ports.SyncEventPublisher
	logger    zerolog.Logger
}

func NewAuditLog(repo ports.SyncLogRepository, publisher ports.SyncEventPublisher, logger zerolog.Logger) *AuditLog {
	return &AuditLog{repo: repo, publisher: publisher, logger: logger}
}

// Record appends entry. The entry is never modified after it is stored.
func (a *AuditLog) Record(ctx context.Context, entry *domain.SyncLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := a.repo.AppendSyncLog(ctx, entry); err != nil {
		a.logger.Error().Err(err).
			Str("accountId", entry.AccountID).
			Str("entityType", string(entry.EntityType)).
			Msg("Failed to record sync log entry")
		return fmt.Errorf("failed to record sync log: %w", err)
	}
	if a.publisher != nil {
		a.publisher.Publish(entry)
	}
	return nil
}

// History returns matching entries, newest first.
func (a *AuditLog) History(ctx context.Context, filter domain.SyncLogFilter) ([]*domain.SyncLogEntry, error) {
	entries, err := a.repo.ListSyncLogs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync history: %w", err)
	}
	return entries, nil
}
