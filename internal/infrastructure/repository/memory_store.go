package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pestops-sync/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore implements every repository port in process memory. It backs
// storage.driver=memory and the tests, and enforces the same uniqueness rules
// as the Mongo indexes.
type MemoryStore struct {
	mu           sync.RWMutex
	integrations map[string]*domain.Integration
	mappings     map[string]*domain.ExternalMapping
	logs         []*domain.SyncLogEntry
	schedules    map[domain.Provider]*domain.ScheduleConfig
	customers    map[string]*domain.Customer
	products     map[string]*domain.Product
	invoices     map[string]*domain.Invoice
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		integrations: map[string]*domain.Integration{},
		mappings:     map[string]*domain.ExternalMapping{},
		schedules:    map[domain.Provider]*domain.ScheduleConfig{},
		customers:    map[string]*domain.Customer{},
		products:     map[string]*domain.Product{},
		invoices:     map[string]*domain.Invoice{},
	}
}

// Integrations

func (s *MemoryStore) UpsertIntegration(ctx context.Context, integration *domain.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, existing := range s.integrations {
		if existing.IsActive && existing.AccountID == integration.AccountID && existing.Provider == integration.Provider {
			existing.AccessToken = integration.AccessToken
			existing.RefreshToken = integration.RefreshToken
			existing.RealmID = integration.RealmID
			existing.Settings = integration.Settings
			existing.UpdatedAt = now
			*integration = *existing
			return nil
		}
	}
	cp := *integration
	cp.ID = uuid.NewString()
	cp.IsActive = true
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.integrations[cp.ID] = &cp
	*integration = cp
	return nil
}

func (s *MemoryStore) findIntegration(match func(*domain.Integration) bool) *domain.Integration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, i := range s.integrations {
		if i.IsActive && match(i) {
			cp := *i
			return &cp
		}
	}
	return nil
}

func (s *MemoryStore) GetActiveIntegration(ctx context.Context, accountID string, provider domain.Provider) (*domain.Integration, error) {
	return s.findIntegration(func(i *domain.Integration) bool {
		return i.AccountID == accountID && i.Provider == provider
	}), nil
}

func (s *MemoryStore) GetIntegrationByRealm(ctx context.Context, provider domain.Provider, realmID string) (*domain.Integration, error) {
	return s.findIntegration(func(i *domain.Integration) bool {
		return i.Provider == provider && i.RealmID == realmID
	}), nil
}

func (s *MemoryStore) ListActiveIntegrations(ctx context.Context, provider domain.Provider) ([]*domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Integration
	for _, i := range s.integrations {
		if i.IsActive && i.Provider == provider {
			cp := *i
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].AccountID < out[b].AccountID })
	return out, nil
}

func (s *MemoryStore) updateIntegration(id string, fn func(*domain.Integration)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.integrations[id]
	if !ok {
		return domain.ErrIntegrationNotFound
	}
	fn(i)
	i.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateTokens(ctx context.Context, integrationID string, accessToken, refreshToken string) error {
	return s.updateIntegration(integrationID, func(i *domain.Integration) {
		i.AccessToken = accessToken
		i.RefreshToken = refreshToken
	})
}

func (s *MemoryStore) UpdateLastSync(ctx context.Context, integrationID string, at time.Time) error {
	return s.updateIntegration(integrationID, func(i *domain.Integration) {
		i.LastSyncAt = &at
	})
}

func (s *MemoryStore) DeactivateIntegration(ctx context.Context, integrationID string) error {
	return s.updateIntegration(integrationID, func(i *domain.Integration) {
		i.IsActive = false
		i.AccessToken = ""
		i.RefreshToken = ""
	})
}

// Mappings

func (s *MemoryStore) findMapping(scope domain.MappingScope, match func(*domain.ExternalMapping) bool) *domain.ExternalMapping {
	for _, m := range s.mappings {
		if m.Scope() == scope && match(m) {
			return m
		}
	}
	return nil
}

func (s *MemoryStore) FindMappingByExternalID(ctx context.Context, scope domain.MappingScope, externalID string) (*domain.ExternalMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m := s.findMapping(scope, func(m *domain.ExternalMapping) bool { return m.ExternalID == externalID }); m != nil {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindMappingByInternalID(ctx context.Context, scope domain.MappingScope, internalID string) (*domain.ExternalMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m := s.findMapping(scope, func(m *domain.ExternalMapping) bool { return m.InternalID == internalID }); m != nil {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) SaveMapping(ctx context.Context, mapping *domain.ExternalMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := mapping.Scope()
	now := time.Now()
	if mapping.LastSyncedAt.IsZero() {
		mapping.LastSyncedAt = now
	}

	byInternal := s.findMapping(scope, func(m *domain.ExternalMapping) bool { return m.InternalID == mapping.InternalID })
	if byInternal != nil && byInternal.ExternalID != mapping.ExternalID {
		return fmt.Errorf("failed to save mapping: internal id %s already mapped to %s", mapping.InternalID, byInternal.ExternalID)
	}

	if existing := s.findMapping(scope, func(m *domain.ExternalMapping) bool { return m.ExternalID == mapping.ExternalID }); existing != nil {
		existing.InternalID = mapping.InternalID
		existing.SyncToken = mapping.SyncToken
		existing.LastSyncedAt = mapping.LastSyncedAt
		mapping.ID = existing.ID
		mapping.CreatedAt = existing.CreatedAt
		return nil
	}

	cp := *mapping
	cp.ID = uuid.NewString()
	cp.CreatedAt = now
	s.mappings[cp.ID] = &cp
	mapping.ID = cp.ID
	mapping.CreatedAt = cp.CreatedAt
	return nil
}

func (s *MemoryStore) ListMappings(ctx context.Context, scope domain.MappingScope) ([]*domain.ExternalMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.ExternalMapping
	for _, m := range s.mappings {
		if m.Scope() == scope {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// Sync logs

func (s *MemoryStore) AppendSyncLog(ctx context.Context, e *domain.SyncLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *MemoryStore) ListSyncLogs(ctx context.Context, f domain.SyncLogFilter) ([]*domain.SyncLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var out []*domain.SyncLogEntry
	// newest first; append order breaks CreatedAt ties
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.logs[i]
		if f.AccountID != "" && e.AccountID != f.AccountID {
			continue
		}
		if f.Provider != "" && e.Provider != f.Provider {
			continue
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

// Schedule configs

func (s *MemoryStore) GetScheduleConfig(ctx context.Context, provider domain.Provider) (*domain.ScheduleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.schedules[provider]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) SaveScheduleConfig(ctx context.Context, config *domain.ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	config.UpdatedAt = time.Now()
	cp := *config
	s.schedules[config.Provider] = &cp
	return nil
}

func (s *MemoryStore) ListScheduleConfigs(ctx context.Context) ([]*domain.ScheduleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.ScheduleConfig
	for _, c := range s.schedules {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Provider < out[b].Provider })
	return out, nil
}

// Business entities

func (s *MemoryStore) ListCustomers(ctx context.Context, accountID string) ([]*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Customer
	for _, c := range s.customers {
		if c.AccountID == accountID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetCustomer(ctx context.Context, accountID, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok || c.AccountID != accountID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	memStamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateCustomer(ctx context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.customers[c.ID]; !ok || existing.AccountID != c.AccountID {
		return domain.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, accountID string) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Product
	for _, p := range s.products {
		if p.AccountID == accountID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, accountID, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok || p.AccountID != accountID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	memStamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.products[p.ID]; !ok || existing.AccountID != p.AccountID {
		return domain.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetInvoice(ctx context.Context, accountID, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok || inv.AccountID != accountID {
		return nil, nil
	}
	return copyInvoice(inv), nil
}

func (s *MemoryStore) FindInvoiceByNumber(ctx context.Context, accountID, number string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if inv.AccountID == accountID && inv.Number == number {
			return copyInvoice(inv), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	memStamp(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	s.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (s *MemoryStore) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.invoices[inv.ID]; !ok || existing.AccountID != inv.AccountID {
		return domain.ErrNotFound
	}
	inv.UpdatedAt = time.Now()
	s.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func copyInvoice(inv *domain.Invoice) *domain.Invoice {
	cp := *inv
	cp.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	return &cp
}

func memStamp(id *string, createdAt, updatedAt *time.Time) {
	now := time.Now()
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}
