package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
	"github.com/jcmexdev/storefront/internal/store"
	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

// Fixed ids of the demo accounts, so tokens can be minted for them.
const (
	DemoAdminID = "00000000-0000-0000-0000-00000000a001"
	DemoUserID  = "00000000-0000-0000-0000-00000000c001"
)

type seedProduct struct {
	id, name, code, category string
	price                    string
	stock                    int
}

var demoCategories = []catalog.Category{
	{ID: "cat-electronics", Name: "Electronics"},
	{ID: "cat-books", Name: "Books"},
	{ID: "cat-home", Name: "Home"},
}

var demoProducts = []seedProduct{
	{"prod-headphones", "Wireless Headphones", "EL-001", "cat-electronics", "149.90", 25},
	{"prod-keyboard", "Mechanical Keyboard", "EL-002", "cat-electronics", "89.00", 10},
	{"prod-cable", "USB-C Cable", "EL-003", "cat-electronics", "9.99", 0},
	{"prod-go-book", "The Go Programming Language", "BK-001", "cat-books", "39.50", 15},
	{"prod-mug", "Ceramic Mug", "HM-001", "cat-home", "12.00", 40},
}

// Seed inserts demo data when the catalog is empty. It does nothing otherwise.
func Seed(ctx context.Context, s store.Store) error {
	_, total, err := s.ListProducts(ctx, catalog.ProductFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("sqlstore: seed: %w", err)
	}
	if total > 0 {
		slog.InfoContext(ctx, "seed skipped, catalog not empty", "products", total)
		return nil
	}

	now := time.Now().UTC()
	return s.InTx(ctx, func(tx store.Tx) error {
		users := []user.User{
			{ID: DemoAdminID, Name: "Admin", Email: "admin@storefront.local", Role: user.RoleAdmin, CreatedAt: now},
			{ID: DemoUserID, Name: "Demo Customer", Email: "customer@storefront.local", Role: user.RoleUser,
				Phone: "+1 555 0100", Address: "221B Baker Street, London", CreatedAt: now},
		}
		for i := range users {
			if err := tx.CreateUser(ctx, &users[i]); err != nil {
				return err
			}
		}
		for _, c := range demoCategories {
			c.CreatedAt = now
			if err := tx.CreateCategory(ctx, &c); err != nil {
				return err
			}
		}
		for _, sp := range demoProducts {
			p := catalog.Product{
				ID: sp.id, Name: sp.name, Code: sp.code, CategoryID: sp.category,
				Price: decimal.RequireFromString(sp.price), CreatedAt: now, UpdatedAt: now,
			}
			if err := p.SetStock(sp.stock); err != nil {
				return err
			}
			if err := tx.CreateProduct(ctx, &p); err != nil {
				return err
			}
		}
		slog.InfoContext(ctx, "demo data seeded",
			"products", len(demoProducts), "categories", len(demoCategories), "admin_id", DemoAdminID, "user_id", DemoUserID)
		return nil
	})
}
