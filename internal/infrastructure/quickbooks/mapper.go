package quickbooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pestops-sync/internal/domain"

	"github.com/shopspring/decimal"
)

// QuickBooks wire shapes, limited to the fields the sync engine reads.

type qbRef struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type qbMetaData struct {
	CreateTime      string `json:"CreateTime,omitempty"`
	LastUpdatedTime string `json:"LastUpdatedTime,omitempty"`
}

type qbEmail struct {
	Address string `json:"Address,omitempty"`
}

type qbPhone struct {
	FreeFormNumber string `json:"FreeFormNumber,omitempty"`
}

type qbAddress struct {
	Line1                  string `json:"Line1,omitempty"`
	Line2                  string `json:"Line2,omitempty"`
	City                   string `json:"City,omitempty"`
	CountrySubDivisionCode string `json:"CountrySubDivisionCode,omitempty"`
	PostalCode             string `json:"PostalCode,omitempty"`
	Country                string `json:"Country,omitempty"`
}

type qbCustomer struct {
	ID               string      `json:"Id,omitempty"`
	SyncToken        string      `json:"SyncToken,omitempty"`
	Sparse           bool        `json:"sparse,omitempty"`
	DisplayName      string      `json:"DisplayName,omitempty"`
	GivenName        string      `json:"GivenName,omitempty"`
	FamilyName       string      `json:"FamilyName,omitempty"`
	CompanyName      string      `json:"CompanyName,omitempty"`
	PrimaryEmailAddr *qbEmail    `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone     *qbPhone    `json:"PrimaryPhone,omitempty"`
	BillAddr         *qbAddress  `json:"BillAddr,omitempty"`
	Active           *bool       `json:"Active,omitempty"`
	MetaData         *qbMetaData `json:"MetaData,omitempty"`
}

type qbItem struct {
	ID          string           `json:"Id,omitempty"`
	SyncToken   string           `json:"SyncToken,omitempty"`
	Name        string           `json:"Name,omitempty"`
	Description string           `json:"Description,omitempty"`
	Sku         string           `json:"Sku,omitempty"`
	UnitPrice   *decimal.Decimal `json:"UnitPrice,omitempty"`
	Active      *bool            `json:"Active,omitempty"`
	MetaData    *qbMetaData      `json:"MetaData,omitempty"`
}

type qbSalesItemLineDetail struct {
	ItemRef   *qbRef           `json:"ItemRef,omitempty"`
	Qty       *decimal.Decimal `json:"Qty,omitempty"`
	UnitPrice *decimal.Decimal `json:"UnitPrice,omitempty"`
}

type qbLine struct {
	ID                  string                 `json:"Id,omitempty"`
	DetailType          string                 `json:"DetailType"`
	Amount              decimal.Decimal        `json:"Amount"`
	Description         string                 `json:"Description,omitempty"`
	SalesItemLineDetail *qbSalesItemLineDetail `json:"SalesItemLineDetail,omitempty"`
}

type qbInvoice struct {
	ID          string          `json:"Id,omitempty"`
	SyncToken   string          `json:"SyncToken,omitempty"`
	DocNumber   string          `json:"DocNumber,omitempty"`
	TxnDate     string          `json:"TxnDate,omitempty"`
	DueDate     string          `json:"DueDate,omitempty"`
	TotalAmt    decimal.Decimal `json:"TotalAmt"`
	Balance     decimal.Decimal `json:"Balance"`
	CustomerRef *qbRef          `json:"CustomerRef,omitempty"`
	Line        []qbLine        `json:"Line,omitempty"`
	MetaData    *qbMetaData     `json:"MetaData,omitempty"`
}

var errMissingID = errors.New("provider record has no Id")

// entityName is the QuickBooks resource name for an entity type.
func entityName(t domain.EntityType) (string, error) {
	switch t {
	case domain.EntityCustomer:
		return "Customer", nil
	case domain.EntityItem:
		return "Item", nil
	case domain.EntityInvoice:
		return "Invoice", nil
	}
	return "", fmt.Errorf("unsupported entity type %q", t)
}

// decodeRecord maps one raw QuickBooks object. Decode and mapping problems are
// reported on the record so one bad row does not fail a whole page.
func decodeRecord(t domain.EntityType, raw json.RawMessage) domain.ProviderRecord {
	switch t {
	case domain.EntityCustomer:
		var c qbCustomer
		if err := json.Unmarshal(raw, &c); err != nil {
			return domain.ProviderRecord{EntityType: t, MappingErr: fmt.Errorf("failed to decode customer: %w", err)}
		}
		return mapCustomer(&c)
	case domain.EntityItem:
		var it qbItem
		if err := json.Unmarshal(raw, &it); err != nil {
			return domain.ProviderRecord{EntityType: t, MappingErr: fmt.Errorf("failed to decode item: %w", err)}
		}
		return mapItem(&it)
	case domain.EntityInvoice:
		var inv qbInvoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return domain.ProviderRecord{EntityType: t, MappingErr: fmt.Errorf("failed to decode invoice: %w", err)}
		}
		return mapInvoice(&inv)
	}
	return domain.ProviderRecord{EntityType: t, MappingErr: fmt.Errorf("unsupported entity type %q", t)}
}

func mapCustomer(c *qbCustomer) domain.ProviderRecord {
	rec := domain.ProviderRecord{
		EntityType: domain.EntityCustomer,
		ExternalID: c.ID,
		SyncToken:  c.SyncToken,
		UpdatedAt:  lastUpdated(c.MetaData),
	}
	if c.ID == "" {
		rec.MappingErr = errMissingID
		return rec
	}

	name := strings.TrimSpace(c.DisplayName)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSpace(c.GivenName) + " " + strings.TrimSpace(c.FamilyName))
	}
	if name == "" {
		name = strings.TrimSpace(c.CompanyName)
	}

	cust := &domain.Customer{
		Name:    name,
		Company: optional(c.CompanyName),
		Active:  c.Active == nil || *c.Active,
	}
	if c.PrimaryEmailAddr != nil {
		cust.Email = optional(c.PrimaryEmailAddr.Address)
	}
	if c.PrimaryPhone != nil {
		cust.Phone = optional(c.PrimaryPhone.FreeFormNumber)
	}
	if c.BillAddr != nil {
		cust.Address = optional(formatAddress(c.BillAddr))
	}
	rec.Customer = cust
	return rec
}

func mapItem(it *qbItem) domain.ProviderRecord {
	rec := domain.ProviderRecord{
		EntityType: domain.EntityItem,
		ExternalID: it.ID,
		SyncToken:  it.SyncToken,
		UpdatedAt:  lastUpdated(it.MetaData),
	}
	if it.ID == "" {
		rec.MappingErr = errMissingID
		return rec
	}
	p := &domain.Product{
		Name:        strings.TrimSpace(it.Name),
		Description: optional(it.Description),
		SKU:         optional(it.Sku),
		Active:      it.Active == nil || *it.Active,
	}
	if it.UnitPrice != nil {
		p.UnitPrice = *it.UnitPrice
	}
	rec.Product = p
	return rec
}

func mapInvoice(inv *qbInvoice) domain.ProviderRecord {
	rec := domain.ProviderRecord{
		EntityType: domain.EntityInvoice,
		ExternalID: inv.ID,
		SyncToken:  inv.SyncToken,
		UpdatedAt:  lastUpdated(inv.MetaData),
	}
	if inv.ID == "" {
		rec.MappingErr = errMissingID
		return rec
	}
	if inv.CustomerRef == nil || inv.CustomerRef.Value == "" {
		rec.MappingErr = errors.New("invoice has no CustomerRef")
		return rec
	}

	pi := &domain.ProviderInvoice{
		Number:             inv.DocNumber,
		CustomerExternalID: inv.CustomerRef.Value,
		IssueDate:          parseDate(inv.TxnDate),
		DueDate:            parseDate(inv.DueDate),
		Total:              inv.TotalAmt,
		Balance:            inv.Balance,
	}
	if pi.Number == "" {
		pi.Number = inv.ID
	}
	for _, l := range inv.Line {
		// SubTotalLine, DiscountLineDetail and friends carry no item
		if l.DetailType != "SalesItemLineDetail" || l.SalesItemLineDetail == nil {
			continue
		}
		d := l.SalesItemLineDetail
		line := domain.ProviderInvoiceLine{
			Description: optional(l.Description),
			Amount:      l.Amount,
			Quantity:    decimal.NewFromInt(1),
		}
		if d.ItemRef != nil {
			line.ItemExternalID = d.ItemRef.Value
		}
		if d.Qty != nil {
			line.Quantity = *d.Qty
		}
		if d.UnitPrice != nil {
			line.UnitPrice = *d.UnitPrice
		} else if !line.Quantity.IsZero() {
			line.UnitPrice = l.Amount.Div(line.Quantity)
		}
		pi.Lines = append(pi.Lines, line)
	}
	rec.Invoice = pi
	return rec
}

// customerPayload builds the create or sparse-update body for a local customer.
func customerPayload(c *domain.Customer, externalID, syncToken string) *qbCustomer {
	out := &qbCustomer{
		ID:          externalID,
		SyncToken:   syncToken,
		Sparse:      externalID != "",
		DisplayName: c.Name,
	}
	if c.Company != nil {
		out.CompanyName = *c.Company
	}
	if c.Email != nil && *c.Email != "" {
		out.PrimaryEmailAddr = &qbEmail{Address: *c.Email}
	}
	if c.Phone != nil && *c.Phone != "" {
		out.PrimaryPhone = &qbPhone{FreeFormNumber: *c.Phone}
	}
	if c.Address != nil && *c.Address != "" {
		out.BillAddr = &qbAddress{Line1: *c.Address}
	}
	active := c.Active
	out.Active = &active
	return out
}

func formatAddress(a *qbAddress) string {
	var parts []string
	for _, p := range []string{a.Line1, a.Line2, a.City, a.CountrySubDivisionCode, a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func lastUpdated(m *qbMetaData) *time.Time {
	if m == nil || m.LastUpdatedTime == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, m.LastUpdatedTime)
	if err != nil {
		return nil
	}
	return &t
}
