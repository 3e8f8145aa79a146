package domain

import "strings"

// EntityType is the closed set of entity kinds the sync engine moves.
type EntityType string

const (
	EntityCustomer EntityType = "customer"
	EntityItem     EntityType = "item"
	EntityInvoice  EntityType = "invoice"

	// EntityFullSync tags run-level audit entries; it is never a webhook target.
	EntityFullSync EntityType = "full_sync"
)

// SyncOrder is the fixed phase order of a full sync. Invoices reference customers
// and items, so they must come last.
var SyncOrder = []EntityType{EntityCustomer, EntityItem, EntityInvoice}

// ParseEntityType maps a provider entity name ("Customer", "Item", "Invoice") to an
// EntityType. ok is false for anything outside the supported set.
func ParseEntityType(name string) (EntityType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "customer":
		return EntityCustomer, true
	case "item", "product":
		return EntityItem, true
	case "invoice":
		return EntityInvoice, true
	}
	return "", false
}
