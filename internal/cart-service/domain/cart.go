package domain

import (
	"github.com/shopspring/decimal"

	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
)

// Cart is the single open cart of a user. TotalAmount is a stored cache; Total
// recomputes it from the items and is what callers should display.
type Cart struct {
	ID          string
	UserID      string
	TotalAmount decimal.Decimal
	Version     int64
	Items       []Item
}

type Item struct {
	ID         string
	CartID     string
	ProductID  string
	Quantity   int
	TotalPrice decimal.Decimal
	Product    *catalog.Product
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.TotalPrice)
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// LineTotal is price × quantity.
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

// Outcome describes what a cart mutation did to the targeted line.
type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeUpdated Outcome = "updated"
	OutcomeRemoved Outcome = "removed"
)
