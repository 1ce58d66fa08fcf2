package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          string
	Code        string
	UserID      string
	Items       []OrderItem
	TotalAmount decimal.Decimal
	Status      OrderStatus
	Recipient   Recipient
	PaymentID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TotalQuantity is the number of units across all lines.
func (o *Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// OrderItem keeps the price and name the product had when the order was placed.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumItems is the order total implied by its lines.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

type Recipient struct {
	Name    string
	Phone   string
	Address string
}

func (r Recipient) IsZero() bool {
	return r.Name == "" && r.Phone == "" && r.Address == ""
}

// Payment is an opaque reference to a payment made elsewhere.
type Payment struct {
	ID            string
	TransactionID string
	InitiatorID   string
	Amount        decimal.Decimal
	Succeeded     bool
	CreatedAt     time.Time
}
