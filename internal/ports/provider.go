package ports

import (
	"context"
	"time"

	"pestops-sync/internal/domain"
)

// ProviderClient issues authenticated calls to the provider REST API and returns
// records already projected into internal shape.
type ProviderClient interface {
	FetchEntities(ctx context.Context, accountID string, entityType domain.EntityType, since *time.Time) ([]domain.ProviderRecord, error)
	FetchEntityByID(ctx context.Context, accountID string, entityType domain.EntityType, id string) (*domain.ProviderRecord, error)

	CreateCustomer(ctx context.Context, accountID string, customer *domain.Customer) (*domain.ProviderRecord, error)
	UpdateCustomer(ctx context.Context, accountID string, externalID, syncToken string, customer *domain.Customer) (*domain.ProviderRecord, error)
}

// TokenSource hands out a valid access token for an account.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, accountID string) (string, error)
}

// OAuthClient is the provider OAuth2 flow.
type OAuthClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Revoke(ctx context.Context, token string) error
}

// EncryptionService encrypts secrets before storage
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
