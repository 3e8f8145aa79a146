package application

import (
	"context"
	"fmt"

	"pestops-sync/internal/application/webhook_handlers"
	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/rs/zerolog"
)

// WebhookProcessor fans verified provider notifications out to handlers. Every
// supported entity type has an entry in the handler table; anything else is
// logged and skipped.
type WebhookProcessor struct {
	provider     domain.Provider
	integrations ports.IntegrationRepository
	handlers     map[domain.EntityType][]webhook_handlers.Handler
	metrics      ports.SyncMetrics
	logger       zerolog.Logger
}

func NewWebhookProcessor(
	integrations ports.IntegrationRepository,
	handlers []webhook_handlers.Handler,
	metrics ports.SyncMetrics,
	logger zerolog.Logger,
) *WebhookProcessor {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	table := make(map[domain.EntityType][]webhook_handlers.Handler, len(domain.SyncOrder))
	for _, t := range domain.SyncOrder {
		table[t] = handlers
	}
	return &WebhookProcessor{
		provider:     domain.ProviderQuickBooks,
		integrations: integrations,
		handlers:     table,
		metrics:      metrics,
		logger:       logger,
	}
}

// Process handles each change independently. Handler failures are already in
// the audit log and only logged here; the error return is reserved for lookups
// that failed before any handler ran, so the provider redelivers.
func (p *WebhookProcessor) Process(ctx context.Context, changes []domain.EntityChange) error {
	for _, c := range changes {
		log := p.logger.With().
			Str("realmId", c.RealmID).
			Str("entity", c.EntityName).
			Str("entityId", c.EntityID).
			Str("operation", string(c.Operation)).
			Logger()

		entityType, ok := domain.ParseEntityType(c.EntityName)
		handlers := p.handlers[entityType]
		if !ok || len(handlers) == 0 {
			log.Debug().Msg("Unsupported webhook entity, skipping")
			p.metrics.IncWebhook(p.provider, "unsupported_entity")
			continue
		}

		integration, err := p.integrations.GetIntegrationByRealm(ctx, p.provider, c.RealmID)
		if err != nil {
			return fmt.Errorf("failed to resolve realm %s: %w", c.RealmID, err)
		}
		if integration == nil {
			log.Warn().Msg("No active integration for realm, skipping")
			p.metrics.IncWebhook(p.provider, "unknown_realm")
			continue
		}

		handler := pick(handlers, c.Operation)
		if handler == nil {
			log.Debug().Msg("Unsupported webhook operation, skipping")
			p.metrics.IncWebhook(p.provider, "unsupported_operation")
			continue
		}

		change := webhook_handlers.Change{
			AccountID:    integration.AccountID,
			Provider:     p.provider,
			EntityType:   entityType,
			EntityChange: c,
		}
		if err := handler.Handle(ctx, change); err != nil {
			log.Error().Err(err).Str("accountId", integration.AccountID).Msg("Webhook change failed")
			p.metrics.IncWebhook(p.provider, "failed")
			continue
		}
		p.metrics.IncWebhook(p.provider, "processed")
	}
	return nil
}

func pick(handlers []webhook_handlers.Handler, op domain.ChangeOperation) webhook_handlers.Handler {
	for _, h := range handlers {
		if h.CanHandle(op) {
			return h
		}
	}
	return nil
}
