package entity

import (
	"time"

	"pestops-sync/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Money is stored as Decimal128 so totals survive aggregation without float drift.

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MongoCustomerDoc represents a customer in MongoDB
type MongoCustomerDoc struct {
	ID        string    `bson:"_id"`
	AccountID string    `bson:"accountId"`
	Name      string    `bson:"name"`
	Company   *string   `bson:"company,omitempty"`
	Email     *string   `bson:"email,omitempty"`
	Phone     *string   `bson:"phone,omitempty"`
	Address   *string   `bson:"address,omitempty"`
	Active    bool      `bson:"active"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d *MongoCustomerDoc) ToDomain() *domain.Customer {
	return &domain.Customer{
		ID:        d.ID,
		AccountID: d.AccountID,
		Name:      d.Name,
		Company:   d.Company,
		Email:     d.Email,
		Phone:     d.Phone,
		Address:   d.Address,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func MongoCustomerDocFromDomain(c *domain.Customer) *MongoCustomerDoc {
	return &MongoCustomerDoc{
		ID:        c.ID,
		AccountID: c.AccountID,
		Name:      c.Name,
		Company:   c.Company,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// MongoProductDoc represents a product in MongoDB
type MongoProductDoc struct {
	ID          string               `bson:"_id"`
	AccountID   string               `bson:"accountId"`
	Name        string               `bson:"name"`
	Description *string              `bson:"description,omitempty"`
	SKU         *string              `bson:"sku,omitempty"`
	UnitPrice   primitive.Decimal128 `bson:"unitPrice"`
	Active      bool                 `bson:"active"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

func (d *MongoProductDoc) ToDomain() *domain.Product {
	return &domain.Product{
		ID:          d.ID,
		AccountID:   d.AccountID,
		Name:        d.Name,
		Description: d.Description,
		SKU:         d.SKU,
		UnitPrice:   fromDecimal128(d.UnitPrice),
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func MongoProductDocFromDomain(p *domain.Product) *MongoProductDoc {
	return &MongoProductDoc{
		ID:          p.ID,
		AccountID:   p.AccountID,
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		UnitPrice:   toDecimal128(p.UnitPrice),
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type MongoInvoiceItemDoc struct {
	ProductID   string               `bson:"productId"`
	Description *string              `bson:"description,omitempty"`
	Quantity    primitive.Decimal128 `bson:"quantity"`
	UnitPrice   primitive.Decimal128 `bson:"unitPrice"`
	Amount      primitive.Decimal128 `bson:"amount"`
}

// MongoInvoiceDoc represents an invoice and its line items in MongoDB
type MongoInvoiceDoc struct {
	ID         string                `bson:"_id"`
	AccountID  string                `bson:"accountId"`
	CustomerID string                `bson:"customerId"`
	Number     string                `bson:"number"`
	IssueDate  *time.Time            `bson:"issueDate,omitempty"`
	DueDate    *time.Time            `bson:"dueDate,omitempty"`
	Total      primitive.Decimal128  `bson:"total"`
	Balance    primitive.Decimal128  `bson:"balance"`
	Status     string                `bson:"status"`
	Items      []MongoInvoiceItemDoc `bson:"items"`
	CreatedAt  time.Time             `bson:"createdAt"`
	UpdatedAt  time.Time             `bson:"updatedAt"`
}

func (d *MongoInvoiceDoc) ToDomain() *domain.Invoice {
	inv := &domain.Invoice{
		ID:         d.ID,
		AccountID:  d.AccountID,
		CustomerID: d.CustomerID,
		Number:     d.Number,
		IssueDate:  d.IssueDate,
		DueDate:    d.DueDate,
		Total:      fromDecimal128(d.Total),
		Balance:    fromDecimal128(d.Balance),
		Status:     d.Status,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	for _, it := range d.Items {
		inv.Items = append(inv.Items, domain.InvoiceItem{
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    fromDecimal128(it.Quantity),
			UnitPrice:   fromDecimal128(it.UnitPrice),
			Amount:      fromDecimal128(it.Amount),
		})
	}
	return inv
}

func MongoInvoiceDocFromDomain(inv *domain.Invoice) *MongoInvoiceDoc {
	doc := &MongoInvoiceDoc{
		ID:         inv.ID,
		AccountID:  inv.AccountID,
		CustomerID: inv.CustomerID,
		Number:     inv.Number,
		IssueDate:  inv.IssueDate,
		DueDate:    inv.DueDate,
		Total:      toDecimal128(inv.Total),
		Balance:    toDecimal128(inv.Balance),
		Status:     inv.Status,
		Items:      []MongoInvoiceItemDoc{},
		CreatedAt:  inv.CreatedAt,
		UpdatedAt:  inv.UpdatedAt,
	}
	for _, it := range inv.Items {
		doc.Items = append(doc.Items, MongoInvoiceItemDoc{
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    toDecimal128(it.Quantity),
			UnitPrice:   toDecimal128(it.UnitPrice),
			Amount:      toDecimal128(it.Amount),
		})
	}
	return doc
}
