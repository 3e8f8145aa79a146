package webhook_handlers

import (
	"context"
	"fmt"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/rs/zerolog"
)

// DeletedUpstreamHandler records deletes and voids for human review. Local data
// is never removed here.
type DeletedUpstreamHandler struct {
	recorder ActivityRecorder
	mappings ports.MappingRepository
	logger   zerolog.Logger
}

func NewDeletedUpstreamHandler(recorder ActivityRecorder, mappings ports.MappingRepository, logger zerolog.Logger) *DeletedUpstreamHandler {
	return &DeletedUpstreamHandler{recorder: recorder, mappings: mappings, logger: logger}
}

func (h *DeletedUpstreamHandler) CanHandle(op domain.ChangeOperation) bool {
	return op == domain.ChangeDelete || op == domain.ChangeVoid
}

func (h *DeletedUpstreamHandler) Handle(ctx context.Context, change Change) error {
	var internalID string
	scope := domain.MappingScope{AccountID: change.AccountID, Provider: change.Provider, EntityType: change.EntityType}
	m, err := h.mappings.FindMappingByExternalID(ctx, scope, change.EntityID)
	if err != nil {
		return fmt.Errorf("failed to look up mapping: %w", err)
	}
	if m != nil {
		internalID = m.InternalID
	}

	verb := "deleted"
	if change.Operation == domain.ChangeVoid {
		verb = "voided"
	}
	h.logger.Info().
		Str("accountId", change.AccountID).
		Str("entityType", string(change.EntityType)).
		Str("entityId", change.EntityID).
		Str("internalId", internalID).
		Msgf("Entity %s upstream, left for review", verb)

	return h.recorder.Record(ctx, &domain.SyncLogEntry{
		AccountID:  change.AccountID,
		Provider:   change.Provider,
		Operation:  domain.OperationWebhook,
		EntityType: change.EntityType,
		EntityID:   internalID,
		ExternalID: change.EntityID,
		Status:     domain.StatusSuccess,
		Direction:  domain.DirectionInbound,
		Trigger:    domain.TriggerWebhook,
		Message:    fmt.Sprintf("%s %s %s upstream; local record kept for review", change.EntityType, change.EntityID, verb),
	})
}
