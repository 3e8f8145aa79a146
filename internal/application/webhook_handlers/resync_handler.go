package webhook_handlers

import (
	"context"

	"pestops-sync/internal/domain"

	"github.com/rs/zerolog"
)

// ResyncHandler handles create, update and merge notifications with a targeted
// single-entity re-sync.
type ResyncHandler struct {
	resyncer EntityResyncer
	logger   zerolog.Logger
}

func NewResyncHandler(resyncer EntityResyncer, logger zerolog.Logger) *ResyncHandler {
	return &ResyncHandler{resyncer: resyncer, logger: logger}
}

func (h *ResyncHandler) CanHandle(op domain.ChangeOperation) bool {
	return op == domain.ChangeCreate ||
		op == domain.ChangeUpdate ||
		op == domain.ChangeMerge
}

func (h *ResyncHandler) Handle(ctx context.Context, change Change) error {
	h.logger.Info().
		Str("accountId", change.AccountID).
		Str("entityType", string(change.EntityType)).
		Str("entityId", change.EntityID).
		Str("operation", string(change.Operation)).
		Msg("Re-syncing entity from webhook")

	return h.resyncer.SyncEntity(ctx, change.AccountID, change.EntityType, change.EntityID, domain.TriggerWebhook)
}
