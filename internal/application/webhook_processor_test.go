package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pestops-sync/internal/application/webhook_handlers"
	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/rs/zerolog"
)

type countingMetrics struct {
	nopMetrics
	webhooks map[string]int
}

func (m *countingMetrics) IncWebhook(_ domain.Provider, outcome string) {
	m.webhooks[outcome]++
}

func newProcessorFixture(t *testing.T) (*WebhookProcessor, *executorFixture, *countingMetrics) {
	t.Helper()
	f := newExecutorFixture(t, SyncExecutorOptions{})
	audit := NewAuditLog(f.store, nil, zerolog.Nop())
	metrics := &countingMetrics{webhooks: map[string]int{}}
	handlers := []webhook_handlers.Handler{
		webhook_handlers.NewResyncHandler(f.exec, zerolog.Nop()),
		webhook_handlers.NewDeletedUpstreamHandler(audit, f.store, zerolog.Nop()),
	}
	return NewWebhookProcessor(f.store, handlers, metrics, zerolog.Nop()), f, metrics
}

func TestWebhookProcessorResyncsAndRecordsDeletes(t *testing.T) {
	ctx := context.Background()
	p, f, metrics := newProcessorFixture(t)
	f.provider.records[domain.EntityCustomer] = []domain.ProviderRecord{customerRecord("5", "Carl", "carl@example.com")}

	err := p.Process(ctx, []domain.EntityChange{
		{RealmID: "realm-1", EntityName: "Customer", EntityID: "5", Operation: domain.ChangeUpdate},
		{RealmID: "realm-1", EntityName: "Customer", EntityID: "5", Operation: domain.ChangeDelete},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	customers, _ := f.store.ListCustomers(ctx, testAccount)
	if len(customers) != 1 {
		t.Fatalf("customers=%d want=1 (delete must not remove local data)", len(customers))
	}

	entries := f.logs(t, domain.SyncLogFilter{})
	if len(entries) != 2 {
		t.Fatalf("entries=%d want=2", len(entries))
	}
	deleted := entries[0]
	if deleted.Operation != domain.OperationWebhook || deleted.EntityID != customers[0].ID || !strings.Contains(deleted.Message, "deleted upstream") {
		t.Fatalf("delete entry=%+v", deleted)
	}
	if entries[1].Operation != domain.OperationWebhook || entries[1].Status != domain.StatusSuccess {
		t.Fatalf("resync entry=%+v", entries[1])
	}
	if metrics.webhooks["processed"] != 2 {
		t.Fatalf("processed=%d want=2", metrics.webhooks["processed"])
	}
}

func TestWebhookProcessorSkipsUnsupportedChanges(t *testing.T) {
	ctx := context.Background()
	p, f, metrics := newProcessorFixture(t)

	err := p.Process(ctx, []domain.EntityChange{
		{RealmID: "realm-1", EntityName: "Vendor", EntityID: "1", Operation: domain.ChangeCreate},
		{RealmID: "realm-unknown", EntityName: "Customer", EntityID: "1", Operation: domain.ChangeCreate},
		{RealmID: "realm-1", EntityName: "Invoice", EntityID: "1", Operation: domain.ChangeOperation("Emailed")},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n := len(f.logs(t, domain.SyncLogFilter{})); n != 0 {
		t.Fatalf("entries=%d want=0", n)
	}
	for _, outcome := range []string{"unsupported_entity", "unknown_realm", "unsupported_operation"} {
		if metrics.webhooks[outcome] != 1 {
			t.Fatalf("%s=%d want=1", outcome, metrics.webhooks[outcome])
		}
	}
}

func TestWebhookProcessorHandlerFailureIsNotReturned(t *testing.T) {
	ctx := context.Background()
	p, f, metrics := newProcessorFixture(t)
	f.provider.byIDErr = &domain.ProviderAPIError{StatusCode: 500}

	if err := p.Process(ctx, []domain.EntityChange{
		{RealmID: "realm-1", EntityName: "Item", EntityID: "3", Operation: domain.ChangeCreate},
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	entries := f.logs(t, domain.SyncLogFilter{})
	if len(entries) != 1 || entries[0].Status != domain.StatusError {
		t.Fatalf("entries=%+v", entries)
	}
	if metrics.webhooks["failed"] != 1 {
		t.Fatalf("failed=%d want=1", metrics.webhooks["failed"])
	}
}

type realmErrorRepo struct {
	ports.IntegrationRepository
	err error
}

func (r *realmErrorRepo) GetIntegrationByRealm(ctx context.Context, provider domain.Provider, realmID string) (*domain.Integration, error) {
	return nil, r.err
}

func TestWebhookProcessorReturnsRealmLookupError(t *testing.T) {
	f := newExecutorFixture(t, SyncExecutorOptions{})
	repo := &realmErrorRepo{IntegrationRepository: f.store, err: errors.New("mongo down")}
	p := NewWebhookProcessor(repo, nil, nil, zerolog.Nop())
	// with no handlers every entity is unsupported, so wire the table explicitly
	p.handlers[domain.EntityCustomer] = []webhook_handlers.Handler{webhook_handlers.NewResyncHandler(f.exec, zerolog.Nop())}

	err := p.Process(context.Background(), []domain.EntityChange{
		{RealmID: "realm-1", EntityName: "Customer", EntityID: "1", Operation: domain.ChangeCreate},
	})
	if err == nil || !strings.Contains(err.Error(), "mongo down") {
		t.Fatalf("err=%v want realm lookup error", err)
	}
}
