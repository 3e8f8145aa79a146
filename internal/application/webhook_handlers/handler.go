package webhook_handlers

import (
	"context"

	"pestops-sync/internal/domain"
)

// Change is one verified entity notification resolved to its owning account.
type Change struct {
	AccountID  string
	Provider   domain.Provider
	EntityType domain.EntityType
	domain.EntityChange
}

// Handler processes the change operations it claims.
type Handler interface {
	CanHandle(op domain.ChangeOperation) bool
	Handle(ctx context.Context, change Change) error
}

// EntityResyncer re-fetches one provider record and upserts it locally.
type EntityResyncer interface {
	SyncEntity(ctx context.Context, accountID string, entityType domain.EntityType, externalID string, trigger domain.SyncTrigger) error
}

// ActivityRecorder appends an audit entry.
type ActivityRecorder interface {
	Record(ctx context.Context, entry *domain.SyncLogEntry) error
}
