package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/pubsub"
	"pestops-sync/internal/infrastructure/quickbooks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type fakeSync struct {
	err      error
	result   *domain.SyncResult
	accounts []string
}

func (f *fakeSync) FullSync(ctx context.Context, accountID string, trigger domain.SyncTrigger) (*domain.SyncResult, error) {
	f.accounts = append(f.accounts, accountID)
	return f.result, f.err
}

func (f *fakeSync) PushCustomer(ctx context.Context, accountID, customerID string) (*domain.ExternalMapping, error) {
	if customerID == "missing" {
		return nil, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
	return &domain.ExternalMapping{AccountID: accountID, InternalID: customerID, ExternalID: "qb-1"}, nil
}

type fakeIntegrations struct {
	connectErr error
	returnURL  string
}

func (f *fakeIntegrations) AuthorizationURL(ctx context.Context, accountID, returnURL string) (string, error) {
	return "https://appcenter.example.com/connect?state=s-" + accountID, nil
}

func (f *fakeIntegrations) Connect(ctx context.Context, code, state, realmID string) (*domain.Integration, string, error) {
	if f.connectErr != nil {
		return nil, "", f.connectErr
	}
	return &domain.Integration{AccountID: "acct-1", RealmID: realmID}, f.returnURL, nil
}

func (f *fakeIntegrations) Revoke(ctx context.Context, accountID string) error {
	return domain.ErrIntegrationNotFound
}

func (f *fakeIntegrations) Status(ctx context.Context, accountID string) (*domain.IntegrationStatus, error) {
	return &domain.IntegrationStatus{Provider: domain.ProviderQuickBooks, State: domain.IntegrationConnected}, nil
}

type fakeScheduler struct {
	updated []domain.ScheduleConfig
}

func (f *fakeScheduler) Status() []domain.ScheduleStatus {
	return []domain.ScheduleStatus{{Config: domain.DefaultScheduleConfig(domain.ProviderQuickBooks), State: domain.ScheduleScheduled}}
}

func (f *fakeScheduler) UpdateConfig(ctx context.Context, cfg domain.ScheduleConfig) (*domain.ScheduleConfig, error) {
	if cfg.IntervalMinutes < 1 {
		return nil, fmt.Errorf("%w: interval must be at least 1 minute", domain.ErrInvalidConfig)
	}
	f.updated = append(f.updated, cfg)
	return &cfg, nil
}

func (f *fakeScheduler) Enable(ctx context.Context, p domain.Provider) (*domain.ScheduleConfig, error) {
	return &domain.ScheduleConfig{Provider: p, Enabled: true}, nil
}

func (f *fakeScheduler) Disable(ctx context.Context, p domain.Provider) (*domain.ScheduleConfig, error) {
	return &domain.ScheduleConfig{Provider: p}, nil
}

func (f *fakeScheduler) TriggerNow(ctx context.Context, p domain.Provider) error {
	return domain.ErrSyncInProgress
}

type fakeRecommender struct{}

func (fakeRecommender) GenerateRecommendations(ctx context.Context) ([]domain.Recommendation, error) {
	return []domain.Recommendation{{Provider: domain.ProviderQuickBooks, RecommendedInterval: 30, Confidence: 0.8}}, nil
}

type fakeProcessor struct {
	mu      sync.Mutex
	batches [][]domain.EntityChange
	err     error
}

func (f *fakeProcessor) Process(ctx context.Context, changes []domain.EntityChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, changes)
	return f.err
}

type fakeHistory struct {
	filters []domain.SyncLogFilter
}

func (f *fakeHistory) History(ctx context.Context, filter domain.SyncLogFilter) ([]*domain.SyncLogEntry, error) {
	f.filters = append(f.filters, filter)
	return nil, nil
}

type fixture struct {
	handler   http.Handler
	sync      *fakeSync
	oauth     *fakeIntegrations
	schedules *fakeScheduler
	processor *fakeProcessor
	history   *fakeHistory
	events    *pubsub.SyncEventPubSub
	verifier  *quickbooks.WebhookVerifier
}

func newFixture() *fixture {
	f := &fixture{
		sync:      &fakeSync{result: &domain.SyncResult{RunID: "run-1"}},
		oauth:     &fakeIntegrations{returnURL: "https://app.example.com/settings?tab=qb"},
		schedules: &fakeScheduler{},
		processor: &fakeProcessor{},
		history:   &fakeHistory{},
		events:    pubsub.NewSyncEventPubSub(zerolog.Nop()),
		verifier:  quickbooks.NewWebhookVerifier("verifier-token"),
	}
	f.handler = NewRouter(Deps{
		Sync:         f.sync,
		Integrations: f.oauth,
		Schedules:    f.schedules,
		Recommender:  fakeRecommender{},
		Webhooks:     f.processor,
		History:      f.history,
		Events:       f.events,
		Verifier:     f.verifier,
		Gatherer:     prometheus.NewRegistry(),
	}, zerolog.Nop())
	return f
}

func (f *fixture) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

var account = map[string]string{AccountHeader: "acct-1"}

const webhookBody = `{"eventNotifications":[{"realmId":"realm-1","dataChangeEvent":{"entities":[{"name":"Customer","id":"5","operation":"Update","lastUpdated":"2024-05-01T10:00:00Z"}]}}]}`

func TestWebhookRejectsBadSignatureBeforeProcessing(t *testing.T) {
	f := newFixture()

	for _, sig := range []string{"", "bm90LWEtc2lnbmF0dXJl", f.verifier.Sign([]byte(webhookBody + " "))} {
		rec := f.do(http.MethodPost, "/webhooks/quickbooks", webhookBody, map[string]string{quickbooks.SignatureHeader: sig})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("signature %q: status=%d want=401", sig, rec.Code)
		}
	}
	if len(f.processor.batches) != 0 {
		t.Fatalf("processor ran %d times for unauthenticated requests", len(f.processor.batches))
	}
}

func TestWebhookProcessesVerifiedPayload(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/webhooks/quickbooks", webhookBody, map[string]string{
		quickbooks.SignatureHeader: f.verifier.Sign([]byte(webhookBody)),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(f.processor.batches) != 1 || len(f.processor.batches[0]) != 1 {
		t.Fatalf("batches=%v", f.processor.batches)
	}
	c := f.processor.batches[0][0]
	if c.RealmID != "realm-1" || c.EntityName != "Customer" || c.Operation != domain.ChangeUpdate {
		t.Fatalf("change=%+v", c)
	}

	f.processor.err = errors.New("realm lookup failed")
	rec = f.do(http.MethodPost, "/webhooks/quickbooks", webhookBody, map[string]string{
		quickbooks.SignatureHeader: f.verifier.Sign([]byte(webhookBody)),
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want=500 so the provider redelivers", rec.Code)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	f := newFixture()
	body := "not json"
	rec := f.do(http.MethodPost, "/webhooks/quickbooks", body, map[string]string{
		quickbooks.SignatureHeader: f.verifier.Sign([]byte(body)),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=400", rec.Code)
	}
}

func TestAPIRequiresAccount(t *testing.T) {
	f := newFixture()
	if rec := f.do(http.MethodPost, "/api/v1/sync/quickbooks", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=400", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
}

func TestTriggerSync(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/v1/sync/quickbooks", "", account)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "run-1") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(f.sync.accounts) != 1 || f.sync.accounts[0] != "acct-1" {
		t.Fatalf("accounts=%v", f.sync.accounts)
	}

	f.sync.result, f.sync.err = nil, domain.ErrSyncInProgress
	if rec := f.do(http.MethodPost, "/api/v1/sync/quickbooks", "", account); rec.Code != http.StatusConflict {
		t.Fatalf("status=%d want=409", rec.Code)
	}

	f.sync.err = domain.ErrIntegrationNotFound
	if rec := f.do(http.MethodPost, "/api/v1/sync/quickbooks", "", account); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=404", rec.Code)
	}
}

func TestPushCustomer(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/v1/sync/quickbooks/customers/c-1/push", "", account)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "qb-1") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := f.do(http.MethodPost, "/api/v1/sync/quickbooks/customers/missing/push", "", account); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=404", rec.Code)
	}
}

func TestOAuthFlow(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/auth/quickbooks?account_id=acct-9", "", nil)
	if rec.Code != http.StatusFound || !strings.HasSuffix(rec.Header().Get("Location"), "state=s-acct-9") {
		t.Fatalf("status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}

	rec = f.do(http.MethodGet, "/auth/quickbooks/callback?code=c&state=s&realmId=r-1", "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("callback status=%d body=%s", rec.Code, rec.Body.String())
	}
	loc, _ := url.Parse(rec.Header().Get("Location"))
	if loc.Host != "app.example.com" || loc.Query().Get("quickbooks_oauth") != "success" || loc.Query().Get("tab") != "qb" {
		t.Fatalf("location=%s", loc)
	}

	f.oauth.connectErr = domain.ErrInvalidOAuthState
	if rec := f.do(http.MethodGet, "/auth/quickbooks/callback?code=c&state=bad&realmId=r-1", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=400", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/auth/quickbooks/callback?state=s", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=400", rec.Code)
	}
}

func TestIntegrationRoutes(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/api/v1/integrations/quickbooks", "", account)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"connected"`) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := f.do(http.MethodDelete, "/api/v1/integrations/quickbooks", "", account); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=404", rec.Code)
	}
}

func TestScheduleRoutes(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPut, "/api/v1/schedules/quickbooks", `{"enabled":true,"interval_minutes":30,"retry_attempts":1,"priority":"high"}`, account)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(f.schedules.updated) != 1 || f.schedules.updated[0].IntervalMinutes != 30 || f.schedules.updated[0].Provider != domain.ProviderQuickBooks {
		t.Fatalf("updated=%+v", f.schedules.updated)
	}

	if rec := f.do(http.MethodPut, "/api/v1/schedules/quickbooks", `{"interval_minutes":0}`, account); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=400", rec.Code)
	}
	if rec := f.do(http.MethodPut, "/api/v1/schedules/quickbooks", `{"interval":5}`, account); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status=%d want=400", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/v1/schedules/xero/enable", "", account); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=404", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/v1/schedules/quickbooks/run", "", account); rec.Code != http.StatusConflict {
		t.Fatalf("status=%d want=409", rec.Code)
	}

	rec = f.do(http.MethodGet, "/api/v1/schedules/recommendations", "", account)
	var recs []domain.Recommendation
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil || len(recs) != 1 || recs[0].RecommendedInterval != 30 {
		t.Fatalf("recommendations=%s err=%v", rec.Body.String(), err)
	}
}

func TestSyncHistoryFilter(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/api/v1/sync/history?status=error&entity_type=invoice&limit=20&since=2024-05-01T00:00:00Z", "", account)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	got := f.history.filters[0]
	if got.AccountID != "acct-1" || got.Status != domain.StatusError || got.EntityType != domain.EntityInvoice || got.Limit != 20 || got.Since.IsZero() {
		t.Fatalf("filter=%+v", got)
	}
	if rec := f.do(http.MethodGet, "/api/v1/sync/history?limit=0", "", account); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=400", rec.Code)
	}
}

func TestSyncEventsStream(t *testing.T) {
	f := newFixture()
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/sync/events?account_id=acct-1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type=%q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, _ := reader.ReadString('\n'); !strings.HasPrefix(line, ": connected") {
		t.Fatalf("first line=%q", line)
	}

	// the subscription exists once the handshake is flushed
	var health struct {
		Status string `json:"status"`
		Events struct {
			ActiveSubscriptions int `json:"active_subscriptions"`
		} `json:"events"`
	}
	if err := json.Unmarshal(f.do(http.MethodGet, "/health", "", nil).Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Events.ActiveSubscriptions != 1 {
		t.Fatalf("health=%+v want one active subscription", health)
	}

	f.events.Publish(&domain.SyncLogEntry{ID: "other", AccountID: "acct-2"})
	f.events.Publish(&domain.SyncLogEntry{ID: "e-1", AccountID: "acct-1", EntityType: domain.EntityCustomer})

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if strings.HasPrefix(line, "id: ") {
			if got := strings.TrimSpace(strings.TrimPrefix(line, "id: ")); got != "e-1" {
				t.Fatalf("event id=%q want=e-1", got)
			}
			return
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture()
	if rec := f.do(http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}
