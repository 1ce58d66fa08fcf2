package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	cart "github.com/jcmexdev/storefront/internal/cart-service/domain"
	"github.com/jcmexdev/storefront/internal/catalog-service/domain"
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	"github.com/jcmexdev/storefront/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

func (s *Service) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	f.Page, f.Limit = NormalizePage(f.Page, f.Limit)
	products, total, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, 0, apperr.Unexpected(err, "Error listing products")
	}
	return products, total, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindProductNotFound, "Product not found")
	}
	if err != nil {
		return nil, apperr.Unexpected(err, "Error loading the product")
	}
	return p, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, apperr.Unexpected(err, "Error listing categories")
	}
	return cats, nil
}

func (s *Service) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "Category name is required")
	}
	c := &domain.Category{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateCategory(ctx, c)
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.New(apperr.KindConflict, "Category %q already exists", name)
	}
	if err != nil {
		return nil, apperr.Unexpected(err, "Error creating the category")
	}
	slog.InfoContext(ctx, "category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

func (s *Service) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.ID, p.CreatedAt, p.UpdatedAt = uuid.NewString(), now, now
	if err := p.SetStock(p.StockCount); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := checkCategory(ctx, tx, p.CategoryID); err != nil {
			return err
		}
		return tx.CreateProduct(ctx, &p)
	})
	if err != nil {
		return nil, apperr.Unexpected(err, "Error creating the product")
	}
	slog.InfoContext(ctx, "product created", "product_id", p.ID, "name", p.Name, "stock", p.StockCount)
	return &p, nil
}

// SetStock replaces the stock level of a product under a row lock.
func (s *Service) SetStock(ctx context.Context, productID string, count int) (*domain.Product, error) {
	var p *domain.Product
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if p, err = lockProduct(ctx, tx, productID); err != nil {
			return err
		}
		if err := p.SetStock(count); err != nil {
			return err
		}
		return tx.SaveProductStock(ctx, p)
	})
	if err != nil {
		return nil, apperr.Unexpected(err, "Error updating the stock")
	}
	slog.InfoContext(ctx, "stock set", "product_id", productID, "stock", count)
	return p, nil
}

// UpdateProduct applies a partial update. A price change reprices every cart
// line holding the product and refreshes those carts' cached totals.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	if patch.IsEmpty() {
		return nil, apperr.New(apperr.KindValidation, "Nothing to update")
	}

	var (
		p     *domain.Product
		lines []cart.Item
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		// Carts are locked before the product, the same order cart and
		// order writes take them in.
		if patch.Price != nil {
			if _, err := tx.LockCartItemsByProduct(ctx, id); err != nil {
				return err
			}
		}
		var err error
		if p, err = lockProduct(ctx, tx, id); err != nil {
			return err
		}
		oldCategory := p.CategoryID
		repriced, err := patch.Apply(p)
		if err != nil {
			return err
		}
		if p.CategoryID != oldCategory {
			if err := checkCategory(ctx, tx, p.CategoryID); err != nil {
				return err
			}
		}
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		if !repriced {
			return nil
		}

		if lines, err = tx.LockCartItemsByProduct(ctx, id); err != nil {
			return err
		}
		for i := range lines {
			lines[i].TotalPrice = cart.LineTotal(p.Price, lines[i].Quantity)
			if err := tx.UpdateCartItem(ctx, &lines[i]); err != nil {
				return err
			}
			if _, err := tx.RecomputeCartTotal(ctx, lines[i].CartID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Unexpected(err, "Error updating the product")
	}
	slog.InfoContext(ctx, "product updated", "product_id", p.ID, "price", p.Price.StringFixed(2),
		"stock", p.StockCount, "carts_repriced", len(lines))
	return p, nil
}

// DeleteProduct removes a product and drops it from every cart. Products that
// appear on an order are kept so order history stays intact.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	var lines []cart.Item
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockCartItemsByProduct(ctx, id); err != nil {
			return err
		}
		p, err := lockProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		ordered, err := tx.ProductOrdered(ctx, id)
		if err != nil {
			return err
		}
		if ordered {
			return apperr.New(apperr.KindConflict, "Product %s has been ordered and cannot be deleted", p.Name)
		}

		if lines, err = tx.LockCartItemsByProduct(ctx, id); err != nil {
			return err
		}
		for _, it := range lines {
			if err := tx.DeleteCartItem(ctx, it.ID); err != nil {
				return err
			}
			left, err := tx.RecomputeCartTotal(ctx, it.CartID)
			if err != nil {
				return err
			}
			if left == 0 {
				if err := tx.DeleteCart(ctx, it.CartID); err != nil {
					return err
				}
			}
		}
		return tx.DeleteProduct(ctx, id)
	})
	if errors.Is(err, store.ErrConflict) {
		return apperr.New(apperr.KindConflict, "Product is still referenced and cannot be deleted")
	}
	if err != nil {
		return apperr.Unexpected(err, "Error deleting the product")
	}
	slog.InfoContext(ctx, "product deleted", "product_id", id, "cart_lines_removed", len(lines))
	return nil
}

// CategoryProducts returns a category and one page of its products.
func (s *Service) CategoryProducts(ctx context.Context, id string, page, limit int) (*domain.Category, []domain.Product, int, error) {
	c, err := s.store.GetCategory(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, 0, apperr.New(apperr.KindCategoryNotFound, "Category not found")
	}
	if err != nil {
		return nil, nil, 0, apperr.Unexpected(err, "Error loading the category")
	}
	products, total, err := s.ListProducts(ctx, domain.ProductFilter{CategoryID: id, Page: page, Limit: limit})
	if err != nil {
		return nil, nil, 0, err
	}
	return c, products, total, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "Category name is required")
	}

	var c *domain.Category
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		c, err = tx.GetCategory(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.KindCategoryNotFound, "Category not found")
		}
		if err != nil {
			return err
		}
		c.Name = name
		return tx.UpdateCategory(ctx, c)
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.New(apperr.KindConflict, "Category %q already exists", name)
	}
	if err != nil {
		return nil, apperr.Unexpected(err, "Error updating the category")
	}
	slog.InfoContext(ctx, "category updated", "category_id", c.ID, "name", c.Name)
	return c, nil
}

// DeleteCategory removes an empty category.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := checkCategory(ctx, tx, id); err != nil {
			return err
		}
		_, n, err := tx.ListProducts(ctx, domain.ProductFilter{CategoryID: id, Limit: 1})
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.New(apperr.KindConflict, "Category has %d product(s) and cannot be deleted", n)
		}
		return tx.DeleteCategory(ctx, id)
	})
	if errors.Is(err, store.ErrConflict) {
		return apperr.New(apperr.KindConflict, "Category still has products")
	}
	if err != nil {
		return apperr.Unexpected(err, "Error deleting the category")
	}
	slog.InfoContext(ctx, "category deleted", "category_id", id)
	return nil
}

func (s *Service) Analytics(ctx context.Context) (*domain.Stats, error) {
	stats, err := s.store.CatalogStats(ctx)
	if err != nil {
		return nil, apperr.Unexpected(err, "Error computing analytics")
	}
	return stats, nil
}

func lockProduct(ctx context.Context, tx store.Tx, id string) (*domain.Product, error) {
	p, err := tx.LockProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindProductNotFound, "Product not found")
	}
	return p, err
}

func checkCategory(ctx context.Context, tx store.Tx, id string) error {
	_, err := tx.GetCategory(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.KindCategoryNotFound, "Category not found")
	}
	return err
}

// NormalizePage applies the default page size and clamps out of range values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
