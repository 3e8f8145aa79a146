package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SyncExecutor pulls provider data into local entities. A full sync runs the
// phases of domain.SyncOrder one after another; a failure on one entity is
// recorded and the phase moves on, while a failure to list a phase aborts the run.
type SyncExecutor struct {
	provider     domain.Provider
	client       ports.ProviderClient
	integrations ports.IntegrationRepository
	mappings     ports.MappingRepository
	entities     ports.EntityRepository
	audit        *AuditLog
	locker       ports.SyncLocker
	metrics      ports.SyncMetrics
	incremental  bool
	now          func() time.Time
	logger       zerolog.Logger
}

// SyncExecutorOptions holds optional executor settings.
type SyncExecutorOptions struct {
	// Incremental passes the integration's LastSyncAt as the fetch filter.
	Incremental bool
	Metrics     ports.SyncMetrics
}

func NewSyncExecutor(
	client ports.ProviderClient,
	integrations ports.IntegrationRepository,
	mappings ports.MappingRepository,
	entities ports.EntityRepository,
	audit *AuditLog,
	locker ports.SyncLocker,
	opts SyncExecutorOptions,
	logger zerolog.Logger,
) *SyncExecutor {
	m := opts.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &SyncExecutor{
		provider:     domain.ProviderQuickBooks,
		client:       client,
		integrations: integrations,
		mappings:     mappings,
		entities:     entities,
		audit:        audit,
		locker:       locker,
		metrics:      m,
		incremental:  opts.Incremental,
		now:          time.Now,
		logger:       logger,
	}
}

// LockKey is the mutual-exclusion key of a full sync for one account.
func LockKey(accountID string, provider domain.Provider) string {
	return "sync:" + string(provider) + ":" + accountID
}

// RecordLockKey guards the creation of one provider record's local copy.
func RecordLockKey(accountID string, provider domain.Provider, entityType domain.EntityType, externalID string) string {
	return LockKey(accountID, provider) + ":" + string(entityType) + ":" + externalID
}

// run carries per-run state through the phases.
type run struct {
	id        string
	accountID string
	trigger   domain.SyncTrigger
	customers *customerMatcher
	products  *productMatcher
}

// FullSync runs customers, items and invoices in that order for one account. It
// fails with domain.ErrSyncInProgress when a sync for the account is already
// running.
func (e *SyncExecutor) FullSync(ctx context.Context, accountID string, trigger domain.SyncTrigger) (*domain.SyncResult, error) {
	release, err := e.locker.Acquire(ctx, LockKey(accountID, e.provider))
	if err != nil {
		return nil, err
	}
	defer release()

	started := e.now()
	result := &domain.SyncResult{
		RunID:     uuid.NewString(),
		AccountID: accountID,
		Provider:  e.provider,
		Trigger:   trigger,
		StartedAt: started,
		Phases:    make(map[domain.EntityType]*domain.PhaseResult),
	}

	log := e.logger.With().
		Str("accountId", accountID).
		Str("runId", result.RunID).
		Str("trigger", string(trigger)).
		Logger()
	log.Info().Msg("Starting full sync")

	runErr := e.fullSync(ctx, result)
	result.FinishedAt = e.now()
	elapsed := result.FinishedAt.Sub(started)

	entry := &domain.SyncLogEntry{
		RunID:      result.RunID,
		AccountID:  accountID,
		Provider:   e.provider,
		Operation:  domain.OperationPull,
		EntityType: domain.EntityFullSync,
		Direction:  domain.DirectionInbound,
		Trigger:    trigger,
		Status:     domain.StatusSuccess,
		Message:    summarize(result),
		DurationMs: elapsed.Milliseconds(),
	}
	if runErr != nil {
		entry.Status = domain.StatusError
		entry.ErrorMessage = runErr.Error()
		entry.ErrorKind = domain.ErrorKind(runErr)
	}
	if err := e.audit.Record(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Failed to record sync run")
	}
	e.metrics.ObserveRun(e.provider, trigger, entry.Status, elapsed)

	if runErr != nil {
		log.Error().Err(runErr).Dur("duration", elapsed).Msg("Full sync failed")
		return result, runErr
	}
	log.Info().
		Dur("duration", elapsed).
		Int("failed", result.Failed()).
		Msg("Full sync completed")
	return result, nil
}

func (e *SyncExecutor) fullSync(ctx context.Context, result *domain.SyncResult) error {
	integration, err := e.integrations.GetActiveIntegration(ctx, result.AccountID, e.provider)
	if err != nil {
		return fmt.Errorf("failed to load integration: %w", err)
	}
	if integration == nil {
		return domain.ErrIntegrationNotFound
	}

	var since *time.Time
	if e.incremental && integration.LastSyncAt != nil {
		since = integration.LastSyncAt
	}

	r := &run{id: result.RunID, accountID: result.AccountID, trigger: result.Trigger}
	for _, entityType := range domain.SyncOrder {
		phase, err := e.runPhase(ctx, r, entityType, since)
		result.Phases[entityType] = phase
		if err != nil {
			return fmt.Errorf("%s phase failed: %w", entityType, err)
		}
	}

	// failed records must show up again in the next incremental fetch
	if failed := result.Failed(); failed > 0 {
		e.logger.Info().
			Str("accountId", result.AccountID).
			Int("failed", failed).
			Msg("Keeping last sync time, run had failures")
		return nil
	}
	if err := e.integrations.UpdateLastSync(ctx, integration.ID, result.StartedAt); err != nil {
		return fmt.Errorf("failed to update last sync time: %w", err)
	}
	return nil
}

func (e *SyncExecutor) runPhase(ctx context.Context, r *run, entityType domain.EntityType, since *time.Time) (*domain.PhaseResult, error) {
	phase := &domain.PhaseResult{}
	records, err := e.client.FetchEntities(ctx, r.accountID, entityType, since)
	if err != nil {
		return phase, err
	}
	phase.Fetched = len(records)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return phase, err
		}
		created, internalID, err := e.apply(ctx, r, rec)
		if err != nil {
			phase.Failed++
			e.metrics.IncEntity(e.provider, entityType, domain.StatusError)
			e.logger.Warn().Err(err).
				Str("accountId", r.accountID).
				Str("entityType", string(entityType)).
				Str("externalId", rec.ExternalID).
				Msg("Failed to sync entity")
			_ = e.audit.Record(ctx, &domain.SyncLogEntry{
				RunID:        r.id,
				AccountID:    r.accountID,
				Provider:     e.provider,
				Operation:    domain.OperationPull,
				EntityType:   entityType,
				EntityID:     internalID,
				ExternalID:   rec.ExternalID,
				Status:       domain.StatusError,
				Direction:    domain.DirectionInbound,
				Trigger:      r.trigger,
				ErrorMessage: err.Error(),
				ErrorKind:    domain.ErrorKind(err),
			})
			continue
		}
		e.metrics.IncEntity(e.provider, entityType, domain.StatusSuccess)
		if created {
			phase.Created++
		} else {
			phase.Updated++
		}
	}
	return phase, nil
}

// SyncEntity re-syncs a single provider record and records exactly one entry.
func (e *SyncExecutor) SyncEntity(ctx context.Context, accountID string, entityType domain.EntityType, externalID string, trigger domain.SyncTrigger) error {
	started := e.now()
	r := &run{accountID: accountID, trigger: trigger}

	var internalID string
	rec, err := e.client.FetchEntityByID(ctx, accountID, entityType, externalID)
	if err == nil {
		_, internalID, err = e.apply(ctx, r, *rec)
	}

	op := domain.OperationPull
	if trigger == domain.TriggerWebhook {
		op = domain.OperationWebhook
	}
	entry := &domain.SyncLogEntry{
		AccountID:  accountID,
		Provider:   e.provider,
		Operation:  op,
		EntityType: entityType,
		EntityID:   internalID,
		ExternalID: externalID,
		Status:     domain.StatusSuccess,
		Direction:  domain.DirectionInbound,
		Trigger:    trigger,
		DurationMs: e.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		entry.Status = domain.StatusError
		entry.ErrorMessage = err.Error()
		entry.ErrorKind = domain.ErrorKind(err)
		e.metrics.IncEntity(e.provider, entityType, domain.StatusError)
	} else {
		e.metrics.IncEntity(e.provider, entityType, domain.StatusSuccess)
	}
	if recErr := e.audit.Record(ctx, entry); recErr != nil && err == nil {
		return recErr
	}
	return err
}

// SyncProvider runs a full sync for every active integration of provider.
// Retryable failures are retried up to retryAttempts more times per account.
func (e *SyncExecutor) SyncProvider(ctx context.Context, provider domain.Provider, trigger domain.SyncTrigger, retryAttempts int) error {
	if provider != e.provider {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	integrations, err := e.integrations.ListActiveIntegrations(ctx, provider)
	if err != nil {
		err = fmt.Errorf("failed to list integrations: %w", err)
		// no account is known yet, so the entry is provider-wide
		if recErr := e.audit.Record(ctx, &domain.SyncLogEntry{
			RunID:        uuid.NewString(),
			Provider:     provider,
			Operation:    domain.OperationPull,
			EntityType:   domain.EntityFullSync,
			Direction:    domain.DirectionInbound,
			Trigger:      trigger,
			Status:       domain.StatusError,
			ErrorMessage: err.Error(),
			ErrorKind:    domain.ErrorKind(err),
		}); recErr != nil {
			e.logger.Error().Err(recErr).Msg("Failed to record sync cycle failure")
		}
		e.metrics.ObserveRun(provider, trigger, domain.StatusError, 0)
		return err
	}

	var errs []error
	for _, integration := range integrations {
		for attempt := 0; ; attempt++ {
			_, err = e.FullSync(ctx, integration.AccountID, trigger)
			if err == nil || errors.Is(err, domain.ErrSyncInProgress) {
				if err != nil {
					e.logger.Info().Str("accountId", integration.AccountID).Msg("Sync already running, skipping account")
				}
				break
			}
			if attempt >= retryAttempts || !domain.IsRetryable(err) || ctx.Err() != nil {
				errs = append(errs, fmt.Errorf("account %s: %w", integration.AccountID, err))
				break
			}
			e.logger.Warn().Err(err).
				Str("accountId", integration.AccountID).
				Int("attempt", attempt+1).
				Msg("Retrying failed sync")
		}
	}
	return errors.Join(errs...)
}

// PushCustomer creates or sparse-updates a local customer in the provider and
// stores the resulting mapping.
func (e *SyncExecutor) PushCustomer(ctx context.Context, accountID, customerID string) (*domain.ExternalMapping, error) {
	started := e.now()
	mapping, err := e.pushCustomer(ctx, accountID, customerID)

	entry := &domain.SyncLogEntry{
		AccountID:  accountID,
		Provider:   e.provider,
		Operation:  domain.OperationPush,
		EntityType: domain.EntityCustomer,
		EntityID:   customerID,
		Status:     domain.StatusSuccess,
		Direction:  domain.DirectionOutbound,
		Trigger:    domain.TriggerManual,
		DurationMs: e.now().Sub(started).Milliseconds(),
	}
	if mapping != nil {
		entry.ExternalID = mapping.ExternalID
	}
	if err != nil {
		entry.Status = domain.StatusError
		entry.ErrorMessage = err.Error()
		entry.ErrorKind = domain.ErrorKind(err)
	}
	_ = e.audit.Record(ctx, entry)
	return mapping, err
}

func (e *SyncExecutor) pushCustomer(ctx context.Context, accountID, customerID string) (*domain.ExternalMapping, error) {
	customer, err := e.entities.GetCustomer(ctx, accountID, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}

	scope := e.scope(accountID, domain.EntityCustomer)
	mapping, err := e.mappings.FindMappingByInternalID(ctx, scope, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up mapping: %w", err)
	}

	var rec *domain.ProviderRecord
	if mapping != nil {
		rec, err = e.client.UpdateCustomer(ctx, accountID, mapping.ExternalID, mapping.SyncToken, customer)
	} else {
		rec, err = e.client.CreateCustomer(ctx, accountID, customer)
	}
	if err != nil {
		return nil, err
	}

	saved := &domain.ExternalMapping{
		AccountID:    accountID,
		Provider:     e.provider,
		EntityType:   domain.EntityCustomer,
		InternalID:   customerID,
		ExternalID:   rec.ExternalID,
		SyncToken:    rec.SyncToken,
		LastSyncedAt: e.now(),
	}
	if err := e.mappings.SaveMapping(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (e *SyncExecutor) scope(accountID string, entityType domain.EntityType) domain.MappingScope {
	return domain.MappingScope{AccountID: accountID, Provider: e.provider, EntityType: entityType}
}

// apply upserts one provider record and its mapping. It reports whether a new
// local row was created and the internal id it ended up on.
func (e *SyncExecutor) apply(ctx context.Context, r *run, rec domain.ProviderRecord) (bool, string, error) {
	if rec.MappingErr != nil {
		return false, "", rec.MappingErr
	}
	scope := e.scope(r.accountID, rec.EntityType)
	mapping, err := e.mappings.FindMappingByExternalID(ctx, scope, rec.ExternalID)
	if err != nil {
		return false, "", fmt.Errorf("failed to look up mapping: %w", err)
	}
	if mapping == nil {
		// first sight of this record: a webhook and a full sync must not both create it
		release, err := e.locker.Acquire(ctx, RecordLockKey(r.accountID, e.provider, rec.EntityType, rec.ExternalID))
		if err != nil {
			return false, "", fmt.Errorf("%s %s: %w", rec.EntityType, rec.ExternalID, err)
		}
		defer release()
		if mapping, err = e.mappings.FindMappingByExternalID(ctx, scope, rec.ExternalID); err != nil {
			return false, "", fmt.Errorf("failed to look up mapping: %w", err)
		}
	}

	var (
		created    bool
		internalID string
	)
	switch rec.EntityType {
	case domain.EntityCustomer:
		created, internalID, err = e.upsertCustomer(ctx, r, rec.Customer, mapping)
	case domain.EntityItem:
		created, internalID, err = e.upsertProduct(ctx, r, rec.Product, mapping)
	case domain.EntityInvoice:
		created, internalID, err = e.upsertInvoice(ctx, r, rec.Invoice, mapping)
	default:
		err = fmt.Errorf("unsupported entity type %q", rec.EntityType)
	}
	if err != nil {
		return false, internalID, err
	}

	if err := e.mappings.SaveMapping(ctx, &domain.ExternalMapping{
		AccountID:    r.accountID,
		Provider:     e.provider,
		EntityType:   rec.EntityType,
		InternalID:   internalID,
		ExternalID:   rec.ExternalID,
		SyncToken:    rec.SyncToken,
		LastSyncedAt: e.now(),
	}); err != nil {
		return false, internalID, err
	}
	return created, internalID, nil
}

// mappedIDs returns the internal ids in scope that already have a mapping.
func (e *SyncExecutor) mappedIDs(ctx context.Context, scope domain.MappingScope) (map[string]bool, error) {
	list, err := e.mappings.ListMappings(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	ids := make(map[string]bool, len(list))
	for _, m := range list {
		ids[m.InternalID] = true
	}
	return ids, nil
}

func (e *SyncExecutor) customerCandidates(ctx context.Context, r *run) (*customerMatcher, error) {
	if r.customers != nil {
		return r.customers, nil
	}
	mapped, err := e.mappedIDs(ctx, e.scope(r.accountID, domain.EntityCustomer))
	if err != nil {
		return nil, err
	}
	locals, err := e.entities.ListCustomers(ctx, r.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	m := &customerMatcher{}
	for _, c := range locals {
		if !mapped[c.ID] {
			m.candidates = append(m.candidates, c)
		}
	}
	r.customers = m
	return m, nil
}

func (e *SyncExecutor) productCandidates(ctx context.Context, r *run) (*productMatcher, error) {
	if r.products != nil {
		return r.products, nil
	}
	mapped, err := e.mappedIDs(ctx, e.scope(r.accountID, domain.EntityItem))
	if err != nil {
		return nil, err
	}
	locals, err := e.entities.ListProducts(ctx, r.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	m := &productMatcher{}
	for _, p := range locals {
		if !mapped[p.ID] {
			m.candidates = append(m.candidates, p)
		}
	}
	r.products = m
	return m, nil
}

func (e *SyncExecutor) upsertCustomer(ctx context.Context, r *run, remote *domain.Customer, mapping *domain.ExternalMapping) (bool, string, error) {
	var local *domain.Customer
	if mapping != nil {
		existing, err := e.entities.GetCustomer(ctx, r.accountID, mapping.InternalID)
		if err != nil {
			return false, mapping.InternalID, fmt.Errorf("failed to get customer: %w", err)
		}
		local = existing
	} else {
		m, err := e.customerCandidates(ctx, r)
		if err != nil {
			return false, "", err
		}
		local = m.match(remote)
	}

	if local == nil {
		c := *remote
		c.ID = ""
		c.AccountID = r.accountID
		if err := e.entities.CreateCustomer(ctx, &c); err != nil {
			return false, "", fmt.Errorf("failed to create customer: %w", err)
		}
		return true, c.ID, nil
	}

	local.Name = remote.Name
	local.Company = mergeString(local.Company, remote.Company)
	local.Email = mergeString(local.Email, remote.Email)
	local.Phone = mergeString(local.Phone, remote.Phone)
	local.Address = mergeString(local.Address, remote.Address)
	local.Active = remote.Active
	if err := e.entities.UpdateCustomer(ctx, local); err != nil {
		return false, local.ID, fmt.Errorf("failed to update customer: %w", err)
	}
	return false, local.ID, nil
}

func (e *SyncExecutor) upsertProduct(ctx context.Context, r *run, remote *domain.Product, mapping *domain.ExternalMapping) (bool, string, error) {
	var local *domain.Product
	if mapping != nil {
		existing, err := e.entities.GetProduct(ctx, r.accountID, mapping.InternalID)
		if err != nil {
			return false, mapping.InternalID, fmt.Errorf("failed to get product: %w", err)
		}
		local = existing
	} else {
		m, err := e.productCandidates(ctx, r)
		if err != nil {
			return false, "", err
		}
		local = m.match(remote)
	}

	if local == nil {
		p := *remote
		p.ID = ""
		p.AccountID = r.accountID
		if err := e.entities.CreateProduct(ctx, &p); err != nil {
			return false, "", fmt.Errorf("failed to create product: %w", err)
		}
		return true, p.ID, nil
	}

	local.Name = remote.Name
	local.Description = mergeString(local.Description, remote.Description)
	local.SKU = mergeString(local.SKU, remote.SKU)
	local.UnitPrice = remote.UnitPrice
	local.Active = remote.Active
	if err := e.entities.UpdateProduct(ctx, local); err != nil {
		return false, local.ID, fmt.Errorf("failed to update product: %w", err)
	}
	return false, local.ID, nil
}

func (e *SyncExecutor) upsertInvoice(ctx context.Context, r *run, remote *domain.ProviderInvoice, mapping *domain.ExternalMapping) (bool, string, error) {
	customerMapping, err := e.mappings.FindMappingByExternalID(ctx, e.scope(r.accountID, domain.EntityCustomer), remote.CustomerExternalID)
	if err != nil {
		return false, "", fmt.Errorf("failed to look up customer mapping: %w", err)
	}
	if customerMapping == nil {
		return false, "", fmt.Errorf("%w: customer %s", domain.ErrUnmappedReference, remote.CustomerExternalID)
	}

	items := make([]domain.InvoiceItem, 0, len(remote.Lines))
	itemScope := e.scope(r.accountID, domain.EntityItem)
	for _, line := range remote.Lines {
		if line.ItemExternalID == "" {
			return false, "", fmt.Errorf("%w: invoice line without item", domain.ErrUnmappedReference)
		}
		itemMapping, err := e.mappings.FindMappingByExternalID(ctx, itemScope, line.ItemExternalID)
		if err != nil {
			return false, "", fmt.Errorf("failed to look up item mapping: %w", err)
		}
		if itemMapping == nil {
			return false, "", fmt.Errorf("%w: item %s", domain.ErrUnmappedReference, line.ItemExternalID)
		}
		items = append(items, domain.InvoiceItem{
			ProductID:   itemMapping.InternalID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
		})
	}

	var local *domain.Invoice
	if mapping != nil {
		local, err = e.entities.GetInvoice(ctx, r.accountID, mapping.InternalID)
	} else {
		local, err = e.unmappedInvoiceByNumber(ctx, r.accountID, remote.Number)
	}
	if err != nil {
		return false, "", err
	}

	inv := domain.Invoice{
		AccountID:  r.accountID,
		CustomerID: customerMapping.InternalID,
		Number:     remote.Number,
		IssueDate:  remote.IssueDate,
		DueDate:    remote.DueDate,
		Total:      remote.Total,
		Balance:    remote.Balance,
		Status:     domain.InvoiceStatus(remote.Balance),
		Items:      items,
	}
	if local == nil {
		if err := e.entities.CreateInvoice(ctx, &inv); err != nil {
			return false, "", fmt.Errorf("failed to create invoice: %w", err)
		}
		return true, inv.ID, nil
	}
	inv.ID = local.ID
	inv.CreatedAt = local.CreatedAt
	if err := e.entities.UpdateInvoice(ctx, &inv); err != nil {
		return false, inv.ID, fmt.Errorf("failed to update invoice: %w", err)
	}
	return false, inv.ID, nil
}

// unmappedInvoiceByNumber matches a first-time invoice on its document number,
// ignoring local invoices already linked to another provider record.
func (e *SyncExecutor) unmappedInvoiceByNumber(ctx context.Context, accountID, number string) (*domain.Invoice, error) {
	if number == "" {
		return nil, nil
	}
	inv, err := e.entities.FindInvoiceByNumber(ctx, accountID, number)
	if err != nil || inv == nil {
		return nil, err
	}
	m, err := e.mappings.FindMappingByInternalID(ctx, e.scope(accountID, domain.EntityInvoice), inv.ID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return nil, nil
	}
	return inv, nil
}

func summarize(r *domain.SyncResult) string {
	msg := ""
	for _, t := range domain.SyncOrder {
		p, ok := r.Phases[t]
		if !ok {
			continue
		}
		if msg != "" {
			msg += "; "
		}
		msg += fmt.Sprintf("%s: fetched %d, created %d, updated %d, failed %d", t, p.Fetched, p.Created, p.Updated, p.Failed)
	}
	return msg
}

type nopMetrics struct{}

func (nopMetrics) ObserveRun(domain.Provider, domain.SyncTrigger, domain.SyncStatus, time.Duration) {}
func (nopMetrics) IncEntity(domain.Provider, domain.EntityType, domain.SyncStatus)                  {}
func (nopMetrics) IncWebhook(domain.Provider, string)                                               {}
