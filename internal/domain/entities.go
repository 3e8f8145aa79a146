package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a local customer row. Optional contact fields are nil when unknown.
type Customer struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Company   *string   `json:"company,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a billable service or item.
type Product struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	SKU         *string         `json:"sku,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Invoice references a local customer and local products by internal id.
type Invoice struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"account_id"`
	CustomerID string          `json:"customer_id"`
	Number     string          `json:"number"`
	IssueDate  *time.Time      `json:"issue_date,omitempty"`
	DueDate    *time.Time      `json:"due_date,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Balance    decimal.Decimal `json:"balance"`
	Status     string          `json:"status"`
	Items      []InvoiceItem   `json:"items"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type InvoiceItem struct {
	ProductID   string          `json:"product_id"`
	Description *string         `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// InvoiceStatus derives paid/open from the remaining balance.
func InvoiceStatus(balance decimal.Decimal) string {
	if balance.IsZero() {
		return "paid"
	}
	return "open"
}
