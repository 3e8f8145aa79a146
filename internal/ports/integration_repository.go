package ports

import (
	"context"
	"time"

	"pestops-sync/internal/domain"
)

// IntegrationRepository defines the interface for integration persistence
type IntegrationRepository interface {
	// UpsertIntegration stores the active integration for (account, provider),
	// replacing tokens and realm of any existing row.
	UpsertIntegration(ctx context.Context, integration *domain.Integration) error

	// GetActiveIntegration returns nil, nil when the account has no active integration.
	GetActiveIntegration(ctx context.Context, accountID string, provider domain.Provider) (*domain.Integration, error)

	// GetIntegrationByRealm resolves the owner of a provider realm/company id.
	GetIntegrationByRealm(ctx context.Context, provider domain.Provider, realmID string) (*domain.Integration, error)

	ListActiveIntegrations(ctx context.Context, provider domain.Provider) ([]*domain.Integration, error)

	UpdateTokens(ctx context.Context, integrationID string, accessToken, refreshToken string) error
	UpdateLastSync(ctx context.Context, integrationID string, at time.Time) error

	// DeactivateIntegration clears tokens and marks the row inactive.
	DeactivateIntegration(ctx context.Context, integrationID string) error
}
