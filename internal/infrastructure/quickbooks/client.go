package quickbooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/rs/zerolog"
)

const (
	SandboxBaseURL    = "https://sandbox-quickbooks.api.intuit.com"
	ProductionBaseURL = "https://quickbooks.api.intuit.com"

	defaultMinorVersion = "75"
	defaultPageSize     = 100
	maxErrorBody        = 8192
)

// ClientConfig tunes the REST client.
type ClientConfig struct {
	BaseURL        string
	MinorVersion   string
	PageSize       int
	RequestTimeout time.Duration
}

type client struct {
	integrations ports.IntegrationRepository
	tokens       ports.TokenSource
	httpClient   *http.Client
	cfg          ClientConfig
	logger       zerolog.Logger
}

// NewClient creates the QuickBooks Online accounting API adapter.
func NewClient(
	integrations ports.IntegrationRepository,
	tokens ports.TokenSource,
	httpClient *http.Client,
	cfg ClientConfig,
	logger zerolog.Logger,
) ports.ProviderClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}
	if cfg.MinorVersion == "" {
		cfg.MinorVersion = defaultMinorVersion
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 1000 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &client{
		integrations: integrations,
		tokens:       tokens,
		httpClient:   httpClient,
		cfg:          cfg,
		logger:       logger,
	}
}

// session resolves realm and token for one account.
func (c *client) session(ctx context.Context, accountID string) (realmID, token string, err error) {
	integration, err := c.integrations.GetActiveIntegration(ctx, accountID, domain.ProviderQuickBooks)
	if err != nil {
		return "", "", fmt.Errorf("failed to load integration: %w", err)
	}
	if integration == nil {
		return "", "", domain.ErrIntegrationNotFound
	}
	token, err = c.tokens.GetValidAccessToken(ctx, accountID)
	if err != nil {
		return "", "", err
	}
	return integration.RealmID, token, nil
}

func (c *client) FetchEntities(ctx context.Context, accountID string, entityType domain.EntityType, since *time.Time) ([]domain.ProviderRecord, error) {
	name, err := entityName(entityType)
	if err != nil {
		return nil, err
	}
	realmID, token, err := c.session(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var records []domain.ProviderRecord
	start := 1
	for {
		query := buildQuery(name, since, start, c.cfg.PageSize)
		endpoint := fmt.Sprintf("/v3/company/%s/query?query=%s", realmID, url.QueryEscape(query))

		var resp struct {
			QueryResponse map[string]json.RawMessage `json:"QueryResponse"`
		}
		if err := c.do(ctx, http.MethodGet, endpoint, token, nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", name, err)
		}

		var page []json.RawMessage
		if raw, ok := resp.QueryResponse[name]; ok {
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, fmt.Errorf("failed to decode %s page: %w", name, err)
			}
		}
		for _, raw := range page {
			records = append(records, decodeRecord(entityType, raw))
		}

		c.logger.Debug().
			Str("accountId", accountID).
			Str("entity", name).
			Int("startPosition", start).
			Int("count", len(page)).
			Msg("Fetched QuickBooks page")

		if len(page) < c.cfg.PageSize {
			break
		}
		start += len(page)
	}
	return records, nil
}

func (c *client) FetchEntityByID(ctx context.Context, accountID string, entityType domain.EntityType, id string) (*domain.ProviderRecord, error) {
	name, err := entityName(entityType)
	if err != nil {
		return nil, err
	}
	realmID, token, err := c.session(ctx, accountID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/v3/company/%s/%s/%s", realmID, strings.ToLower(name), url.PathEscape(id))
	var resp map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, endpoint, token, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", name, id, err)
	}
	raw, ok := resp[name]
	if !ok {
		return nil, fmt.Errorf("response has no %s object", name)
	}
	rec := decodeRecord(entityType, raw)
	return &rec, nil
}

func (c *client) CreateCustomer(ctx context.Context, accountID string, customer *domain.Customer) (*domain.ProviderRecord, error) {
	return c.writeCustomer(ctx, accountID, customerPayload(customer, "", ""))
}

func (c *client) UpdateCustomer(ctx context.Context, accountID string, externalID, syncToken string, customer *domain.Customer) (*domain.ProviderRecord, error) {
	return c.writeCustomer(ctx, accountID, customerPayload(customer, externalID, syncToken))
}

func (c *client) writeCustomer(ctx context.Context, accountID string, payload *qbCustomer) (*domain.ProviderRecord, error) {
	realmID, token, err := c.session(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Customer json.RawMessage `json:"Customer"`
	}
	endpoint := fmt.Sprintf("/v3/company/%s/customer", realmID)
	if err := c.do(ctx, http.MethodPost, endpoint, token, payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to write customer: %w", err)
	}
	rec := decodeRecord(domain.EntityCustomer, resp.Customer)
	if rec.MappingErr != nil {
		return nil, rec.MappingErr
	}
	return &rec, nil
}

// do sends one authenticated request and decodes a 2xx JSON body into out.
func (c *client) do(ctx context.Context, method, endpoint, token string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	u := c.cfg.BaseURL + endpoint
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	u += sep + "minorversion=" + c.cfg.MinorVersion

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.ProviderAPIError{
			StatusCode: resp.StatusCode,
			Body:       string(b),
			Fault:      parseFault(b),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func buildQuery(entity string, since *time.Time, start, max int) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(entity)
	if since != nil {
		b.WriteString(" WHERE MetaData.LastUpdatedTime > '")
		b.WriteString(since.UTC().Format(time.RFC3339))
		b.WriteString("'")
	}
	b.WriteString(" STARTPOSITION ")
	b.WriteString(strconv.Itoa(start))
	b.WriteString(" MAXRESULTS ")
	b.WriteString(strconv.Itoa(max))
	return b.String()
}

// parseFault extracts "Message: Detail" pairs from an Intuit fault body.
func parseFault(body []byte) string {
	var f struct {
		Fault struct {
			Error []struct {
				Message string `json:"Message"`
				Detail  string `json:"Detail"`
				Code    string `json:"code"`
			} `json:"Error"`
		} `json:"Fault"`
	}
	if err := json.Unmarshal(body, &f); err != nil {
		return ""
	}
	var msgs []string
	for _, e := range f.Fault.Error {
		m := e.Message
		if e.Detail != "" && e.Detail != e.Message {
			m += ": " + e.Detail
		}
		msgs = append(msgs, m)
	}
	return strings.Join(msgs, "; ")
}
