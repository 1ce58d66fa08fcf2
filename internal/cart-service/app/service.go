package app

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/storefront/internal/cart-service/domain"
	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	"github.com/jcmexdev/storefront/internal/store"
)

// Result describes the effect of a cart mutation. Item is nil when the line
// was removed.
type Result struct {
	Outcome     domain.Outcome
	Item        *domain.Item
	CartDeleted bool
}

type Service struct {
	store  store.Store
	tracer trace.Tracer
}

func NewService(s store.Store) *Service {
	return &Service{store: s, tracer: otel.Tracer("cart-service")}
}

// AddOrAdjustItem adds delta units of a product to the user's cart, creating
// the cart and the line as needed. A negative delta shrinks the line and
// removes it once it drops below one.
func (s *Service) AddOrAdjustItem(ctx context.Context, userID, productID string, delta int) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "cart.AddOrAdjustItem", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("cart.delta", delta),
	))
	defer span.End()

	if productID == "" {
		return nil, apperr.New(apperr.KindValidation, "Product ID and quantity are required")
	}
	if delta == 0 {
		return nil, apperr.New(apperr.KindValidation, "Quantity change must be a non-zero number")
	}

	var res *Result
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := checkUser(ctx, tx, userID); err != nil {
			return err
		}
		c, err := tx.EnsureCart(ctx, userID)
		if err != nil {
			return err
		}
		product, err := productFor(ctx, tx, productID)
		if err != nil {
			return err
		}

		item, err := tx.GetCartItemByProduct(ctx, c.ID, productID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			res, err = addItem(ctx, tx, c, product, delta)
		case err != nil:
			return err
		default:
			res, err = adjustItem(ctx, tx, item, product, delta)
		}
		if err != nil {
			return err
		}
		return settle(ctx, tx, c.ID, res)
	})
	if err != nil {
		return nil, apperr.Unexpected(err, "Error updating the cart")
	}

	slog.InfoContext(ctx, "cart updated", "user_id", userID, "product_id", productID,
		"delta", delta, "outcome", res.Outcome, "cart_deleted", res.CartDeleted)
	return res, nil
}

// AdjustItem changes the quantity of an existing line by delta.
func (s *Service) AdjustItem(ctx context.Context, userID, itemID string, delta int) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "cart.AdjustItem", trace.WithAttributes(
		attribute.String("cart_item.id", itemID),
		attribute.Int("cart.delta", delta),
	))
	defer span.End()

	if delta == 0 {
		return nil, apperr.New(apperr.KindValidation, "Quantity change must be a valid number")
	}

	var res *Result
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := checkUser(ctx, tx, userID); err != nil {
			return err
		}
		c, item, err := cartItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		product, err := productFor(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}
		if res, err = adjustItem(ctx, tx, item, product, delta); err != nil {
			return err
		}
		return settle(ctx, tx, c.ID, res)
	})
	if err != nil {
		return nil, apperr.Unexpected(err, "Error updating cart item quantity")
	}
	return res, nil
}

// RemoveItem deletes a line. The cart goes with its last line.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "cart.RemoveItem", trace.WithAttributes(
		attribute.String("cart_item.id", itemID),
	))
	defer span.End()

	res := &Result{Outcome: domain.OutcomeRemoved}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := checkUser(ctx, tx, userID); err != nil {
			return err
		}
		c, item, err := cartItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCartItem(ctx, item.ID); err != nil {
			return err
		}
		return settle(ctx, tx, c.ID, res)
	})
	if err != nil {
		return nil, apperr.Unexpected(err, "Error deleting cart item")
	}

	slog.InfoContext(ctx, "cart item removed", "user_id", userID, "item_id", itemID, "cart_deleted", res.CartDeleted)
	return res, nil
}

// GetCart returns the cart with items sorted by product name. TotalAmount is
// recomputed from the items rather than read from the stored cache.
func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart.GetCart")
	defer span.End()

	c, err := s.store.GetCartByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindCartNotFound, "Cart not found")
	}
	if err != nil {
		return nil, apperr.Unexpected(err, "Error loading the cart")
	}
	c.TotalAmount = c.Total()
	return c, nil
}

// ListCarts returns every open cart for admins, totals recomputed from items.
func (s *Service) ListCarts(ctx context.Context) ([]domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart.ListCarts")
	defer span.End()

	carts, err := s.store.ListCarts(ctx)
	if err != nil {
		return nil, apperr.Unexpected(err, "Error listing carts")
	}
	for i := range carts {
		carts[i].TotalAmount = carts[i].Total()
	}
	return carts, nil
}

func addItem(ctx context.Context, tx store.Tx, c *domain.Cart, p *catalog.Product, qty int) (*Result, error) {
	if qty < 0 {
		return nil, apperr.New(apperr.KindValidation, "Quantity must be positive when adding a new product")
	}
	if qty > p.StockCount {
		return nil, apperr.New(apperr.KindInsufficientStock,
			"Cannot add %d items. Available stock: %d", qty, p.StockCount)
	}
	item := &domain.Item{
		CartID:     c.ID,
		ProductID:  p.ID,
		Quantity:   qty,
		TotalPrice: domain.LineTotal(p.Price, qty),
		Product:    p,
	}
	if err := tx.InsertCartItem(ctx, item); err != nil {
		return nil, err
	}
	return &Result{Outcome: domain.OutcomeAdded, Item: item}, nil
}

func adjustItem(ctx context.Context, tx store.Tx, item *domain.Item, p *catalog.Product, delta int) (*Result, error) {
	// Compared as a difference so a huge delta cannot wrap newQty.
	if delta > 0 && delta > p.StockCount-item.Quantity {
		return nil, apperr.New(apperr.KindInsufficientStock,
			"Cannot add more items. Available stock: %d, Current in cart: %d", p.StockCount, item.Quantity)
	}
	newQty := item.Quantity + delta
	if newQty < 1 {
		if err := tx.DeleteCartItem(ctx, item.ID); err != nil {
			return nil, err
		}
		return &Result{Outcome: domain.OutcomeRemoved}, nil
	}

	item.Quantity = newQty
	item.TotalPrice = domain.LineTotal(p.Price, newQty)
	item.Product = p
	if err := tx.UpdateCartItem(ctx, item); err != nil {
		return nil, err
	}
	return &Result{Outcome: domain.OutcomeUpdated, Item: item}, nil
}

// settle refreshes the cached total and drops the cart once it is empty.
func settle(ctx context.Context, tx store.Tx, cartID string, res *Result) error {
	left, err := tx.RecomputeCartTotal(ctx, cartID)
	if err != nil {
		return err
	}
	if left > 0 {
		return nil
	}
	if err := tx.DeleteCart(ctx, cartID); err != nil {
		return err
	}
	res.CartDeleted = true
	return nil
}

func checkUser(ctx context.Context, tx store.Tx, userID string) error {
	if userID == "" {
		return apperr.New(apperr.KindAuthenticationRequired, "User must be logged in")
	}
	u, err := tx.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.KindUserNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	if u.IsBlocked {
		return apperr.New(apperr.KindUnauthorized, "User is blocked")
	}
	return nil
}

// productFor locks the product row. Callers must already hold the cart lock.
func productFor(ctx context.Context, tx store.Tx, productID string) (*catalog.Product, error) {
	p, err := tx.LockProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindProductNotFound, "Product not found")
	}
	if err != nil {
		return nil, err
	}
	if p.OutOfStock {
		return nil, apperr.New(apperr.KindOutOfStock, "Product is out of stock")
	}
	return p, nil
}

func cartItem(ctx context.Context, tx store.Tx, userID, itemID string) (*domain.Cart, *domain.Item, error) {
	c, err := tx.LockCart(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.New(apperr.KindCartNotFound, "Cart not found")
	}
	if err != nil {
		return nil, nil, err
	}
	item, err := tx.GetCartItem(ctx, c.ID, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.New(apperr.KindItemNotFound, "Cart item not found")
	}
	if err != nil {
		return nil, nil, err
	}
	return c, item, nil
}
