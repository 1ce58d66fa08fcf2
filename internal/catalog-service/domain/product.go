package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront/internal/pkg/apperr"
)

type Product struct {
	ID          string
	Name        string
	Code        string
	Description string
	ImageURL    string
	CategoryID  string
	Price       decimal.Decimal
	StockCount  int
	OutOfStock  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SetStock replaces the stock level and keeps OutOfStock in step with it.
func (p *Product) SetStock(count int) error {
	if count < 0 {
		return apperr.New(apperr.KindValidation, "Stock count cannot be negative")
	}
	p.StockCount = count
	p.OutOfStock = count == 0
	return nil
}

// Reserve takes qty units out of stock.
func (p *Product) Reserve(qty int) error {
	if qty < 1 {
		return apperr.New(apperr.KindValidation, "Quantity must be at least 1")
	}
	if p.StockCount < qty {
		return apperr.New(apperr.KindInsufficientStock,
			"Insufficient stock for product %s. Available: %d, Requested: %d", p.Name, p.StockCount, qty)
	}
	return p.SetStock(p.StockCount - qty)
}

// Release puts qty units back, undoing a Reserve.
func (p *Product) Release(qty int) error {
	if qty < 1 {
		return apperr.New(apperr.KindValidation, "Quantity must be at least 1")
	}
	return p.SetStock(p.StockCount + qty)
}

func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return apperr.New(apperr.KindValidation, "Product name is required")
	case strings.TrimSpace(p.CategoryID) == "":
		return apperr.New(apperr.KindValidation, "Category is required")
	case p.Price.IsNegative():
		return apperr.New(apperr.KindValidation, "Price cannot be negative")
	case p.StockCount < 0:
		return apperr.New(apperr.KindValidation, "Stock count cannot be negative")
	}
	return nil
}

// ProductPatch is a partial product update. Nil fields are left unchanged.
type ProductPatch struct {
	Name        *string
	Code        *string
	Description *string
	ImageURL    *string
	CategoryID  *string
	Price       *decimal.Decimal
	StockCount  *int
}

// Apply copies the set fields onto p and validates the result. It reports
// whether the price changed.
func (pp ProductPatch) Apply(p *Product) (bool, error) {
	setString(&p.Name, pp.Name)
	setString(&p.Code, pp.Code)
	setString(&p.Description, pp.Description)
	setString(&p.ImageURL, pp.ImageURL)
	setString(&p.CategoryID, pp.CategoryID)
	repriced := false
	if pp.Price != nil {
		repriced = !pp.Price.Equal(p.Price)
		p.Price = *pp.Price
	}
	if pp.StockCount != nil {
		if err := p.SetStock(*pp.StockCount); err != nil {
			return false, err
		}
	}
	if err := p.Validate(); err != nil {
		return false, err
	}
	return repriced, nil
}

func (pp ProductPatch) IsEmpty() bool {
	return pp == ProductPatch{}
}

func setString(dst, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ProductFilter narrows product listings. Zero values mean "no filter".
type ProductFilter struct {
	Search     string
	CategoryID string
	Page       int
	Limit      int
}

func (f ProductFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Stats is the analytics snapshot shown to admins.
type Stats struct {
	Products        int
	Categories      int
	Users           int
	Orders          int
	OutOfStockCount int
	OutOfStockItems []Product
}
