package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderRecord is a provider entity projected into internal shape. Exactly one
// of Customer, Product or Invoice is set, matching EntityType. Ids inside the
// projection are provider-side until the executor resolves them.
type ProviderRecord struct {
	EntityType EntityType
	ExternalID string
	SyncToken  string
	UpdatedAt  *time.Time
	Customer   *Customer
	Product    *Product
	Invoice    *ProviderInvoice
	MappingErr error
}

// ProviderInvoice carries provider-side references that must be resolved to
// internal ids through external mappings.
type ProviderInvoice struct {
	Number             string
	CustomerExternalID string
	IssueDate          *time.Time
	DueDate            *time.Time
	Total              decimal.Decimal
	Balance            decimal.Decimal
	Lines              []ProviderInvoiceLine
}

type ProviderInvoiceLine struct {
	ItemExternalID string
	Description    *string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	Amount         decimal.Decimal
}

// EntityChange is one entry of a provider change notification.
type EntityChange struct {
	RealmID    string
	EntityName string
	EntityID   string
	Operation  ChangeOperation
	OccurredAt *time.Time
}

type ChangeOperation string

const (
	ChangeCreate ChangeOperation = "Create"
	ChangeUpdate ChangeOperation = "Update"
	ChangeDelete ChangeOperation = "Delete"
	ChangeMerge  ChangeOperation = "Merge"
	ChangeVoid   ChangeOperation = "Void"
)
