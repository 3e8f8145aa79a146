package ports

import (
	"context"

	"pestops-sync/internal/domain"
)

// MappingRepository persists external mappings. Implementations must keep internal
// and external ids unique within a scope.
type MappingRepository interface {
	FindMappingByExternalID(ctx context.Context, scope domain.MappingScope, externalID string) (*domain.ExternalMapping, error)
	FindMappingByInternalID(ctx context.Context, scope domain.MappingScope, internalID string) (*domain.ExternalMapping, error)
	// SaveMapping inserts or updates the mapping keyed by (scope, external id).
	SaveMapping(ctx context.Context, mapping *domain.ExternalMapping) error
	ListMappings(ctx context.Context, scope domain.MappingScope) ([]*domain.ExternalMapping, error)
}

// SyncLogRepository is append-only.
type SyncLogRepository interface {
	AppendSyncLog(ctx context.Context, entry *domain.SyncLogEntry) error
	// ListSyncLogs returns matching entries, newest first.
	ListSyncLogs(ctx context.Context, filter domain.SyncLogFilter) ([]*domain.SyncLogEntry, error)
}

// ScheduleConfigRepository persists per-provider schedule configuration.
type ScheduleConfigRepository interface {
	GetScheduleConfig(ctx context.Context, provider domain.Provider) (*domain.ScheduleConfig, error)
	SaveScheduleConfig(ctx context.Context, config *domain.ScheduleConfig) error
	ListScheduleConfigs(ctx context.Context) ([]*domain.ScheduleConfig, error)
}

// EntityRepository is the CRUD contract for the business entities the sync
// engine writes. Create methods assign the ID when it is empty.
type EntityRepository interface {
	ListCustomers(ctx context.Context, accountID string) ([]*domain.Customer, error)
	GetCustomer(ctx context.Context, accountID, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	UpdateCustomer(ctx context.Context, customer *domain.Customer) error

	ListProducts(ctx context.Context, accountID string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, accountID, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error

	GetInvoice(ctx context.Context, accountID, id string) (*domain.Invoice, error)
	FindInvoiceByNumber(ctx context.Context, accountID, number string) (*domain.Invoice, error)
	CreateInvoice(ctx context.Context, invoice *domain.Invoice) error
	UpdateInvoice(ctx context.Context, invoice *domain.Invoice) error
}
