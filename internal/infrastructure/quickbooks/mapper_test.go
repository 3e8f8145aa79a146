package quickbooks

import (
	"testing"

	"pestops-sync/internal/domain"
)

func TestMapCustomerOptionalFields(t *testing.T) {
	rec := decodeRecord(domain.EntityCustomer, []byte(`{"Id":"5","SyncToken":"2","GivenName":"Jane","FamilyName":"Doe"}`))
	if rec.MappingErr != nil {
		t.Fatalf("MappingErr: %v", rec.MappingErr)
	}
	c := rec.Customer
	if c.Name != "Jane Doe" {
		t.Fatalf("name=%q want=Jane Doe", c.Name)
	}
	if c.Email != nil || c.Phone != nil || c.Address != nil || c.Company != nil {
		t.Fatalf("missing optional fields must map to nil: %+v", c)
	}
	if !c.Active {
		t.Fatalf("customer without Active flag should be active")
	}
}

func TestMapCustomerContactFields(t *testing.T) {
	rec := decodeRecord(domain.EntityCustomer, []byte(`{
		"Id":"6","DisplayName":"Acme Pest","CompanyName":"Acme",
		"PrimaryEmailAddr":{"Address":"ops@acme.test"},
		"PrimaryPhone":{"FreeFormNumber":"(555) 010-2000"},
		"BillAddr":{"Line1":"1 Main St","City":"Springfield","PostalCode":"12345"},
		"Active":false}`))
	c := rec.Customer
	if *c.Email != "ops@acme.test" || *c.Phone != "(555) 010-2000" {
		t.Fatalf("contact=%v/%v", *c.Email, *c.Phone)
	}
	if *c.Address != "1 Main St, Springfield, 12345" {
		t.Fatalf("address=%q", *c.Address)
	}
	if c.Active {
		t.Fatalf("expected inactive")
	}
}

func TestMapRecordWithoutID(t *testing.T) {
	rec := decodeRecord(domain.EntityItem, []byte(`{"Name":"Spray"}`))
	if rec.MappingErr == nil {
		t.Fatalf("expected MappingErr for record without Id")
	}
}

func TestMapInvoiceLines(t *testing.T) {
	rec := decodeRecord(domain.EntityInvoice, []byte(`{
		"Id":"130","DocNumber":"1037","TxnDate":"2024-02-01","DueDate":"2024-03-02",
		"TotalAmt":362.07,"Balance":0,"CustomerRef":{"value":"3"},
		"Line":[
			{"DetailType":"SalesItemLineDetail","Amount":150,"Description":"Quarterly",
			 "SalesItemLineDetail":{"ItemRef":{"value":"11"},"Qty":2,"UnitPrice":75}},
			{"DetailType":"SubTotalLineDetail","Amount":150}
		]}`))
	if rec.MappingErr != nil {
		t.Fatalf("MappingErr: %v", rec.MappingErr)
	}
	inv := rec.Invoice
	if inv.Number != "1037" || inv.CustomerExternalID != "3" {
		t.Fatalf("invoice=%+v", inv)
	}
	if inv.IssueDate == nil || inv.IssueDate.Format("2006-01-02") != "2024-02-01" {
		t.Fatalf("issue date=%v", inv.IssueDate)
	}
	if len(inv.Lines) != 1 {
		t.Fatalf("lines=%d want=1", len(inv.Lines))
	}
	l := inv.Lines[0]
	if l.ItemExternalID != "11" || l.Quantity.String() != "2" || l.UnitPrice.String() != "75" {
		t.Fatalf("line=%+v", l)
	}
	if inv.Total.String() != "362.07" {
		t.Fatalf("total=%s", inv.Total)
	}
}

func TestMapInvoiceWithoutCustomerRef(t *testing.T) {
	rec := decodeRecord(domain.EntityInvoice, []byte(`{"Id":"1","TotalAmt":10,"Balance":10}`))
	if rec.MappingErr == nil {
		t.Fatalf("expected MappingErr for invoice without CustomerRef")
	}
}
