// Package store declares the persistence ports used by the storefront services.
//
// Every method that changes stock, carts or orders lives on Tx so that it can
// only run inside a transaction opened by Store.InTx.
package store

import (
	"context"
	"errors"

	cart "github.com/jcmexdev/storefront/internal/cart-service/domain"
	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
	order "github.com/jcmexdev/storefront/internal/order-service/domain"
	"github.com/jcmexdev/storefront/internal/order-service/statuslog"
	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write hits a unique or foreign key constraint.
	ErrConflict = errors.New("store: conflict")
	// ErrStale is returned when an optimistic version check fails.
	ErrStale = errors.New("store: stale version")
)

// OrderFilter pages through orders. Search matches the order code.
type OrderFilter struct {
	Search string
	Page   int
	Limit  int
}

func (f OrderFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type Reader interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
	ListUsers(ctx context.Context, role user.Role) ([]user.User, error)

	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	ListProducts(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, int, error)
	GetCategory(ctx context.Context, id string) (*catalog.Category, error)
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	CatalogStats(ctx context.Context) (*catalog.Stats, error)

	// GetCartByUser returns the cart with its items and their products,
	// ordered by product name.
	GetCartByUser(ctx context.Context, userID string) (*cart.Cart, error)
	// ListCarts returns every cart with its items, ordered by user.
	ListCarts(ctx context.Context) ([]cart.Cart, error)

	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]order.Order, int, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error)
	ListStatusLog(ctx context.Context, orderID string) ([]statuslog.Entry, error)
	ListPayments(ctx context.Context, f OrderFilter) ([]order.Payment, int, error)
}

type Tx interface {
	Reader

	// LockProduct reads a product and holds a row lock on it until the
	// transaction ends.
	LockProduct(ctx context.Context, id string) (*catalog.Product, error)
	SaveProductStock(ctx context.Context, p *catalog.Product) error
	CreateProduct(ctx context.Context, p *catalog.Product) error
	// UpdateProduct writes every column of p, stock and price included.
	UpdateProduct(ctx context.Context, p *catalog.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// ProductOrdered reports whether any order line references the product.
	ProductOrdered(ctx context.Context, id string) (bool, error)
	CreateCategory(ctx context.Context, c *catalog.Category) error
	UpdateCategory(ctx context.Context, c *catalog.Category) error
	DeleteCategory(ctx context.Context, id string) error
	CreateUser(ctx context.Context, u *user.User) error

	// EnsureCart returns the user's cart, creating an empty one if needed.
	EnsureCart(ctx context.Context, userID string) (*cart.Cart, error)
	LockCart(ctx context.Context, userID string) (*cart.Cart, error)
	// LockCartItemsByProduct locks every cart holding the product, in id
	// order, and returns their lines for it.
	LockCartItemsByProduct(ctx context.Context, productID string) ([]cart.Item, error)
	GetCartItem(ctx context.Context, cartID, itemID string) (*cart.Item, error)
	GetCartItemByProduct(ctx context.Context, cartID, productID string) (*cart.Item, error)
	InsertCartItem(ctx context.Context, it *cart.Item) error
	UpdateCartItem(ctx context.Context, it *cart.Item) error
	DeleteCartItem(ctx context.Context, itemID string) error
	// RecomputeCartTotal stores the sum of the item totals, bumps the cart
	// version and returns how many items are left.
	RecomputeCartTotal(ctx context.Context, cartID string) (int, error)
	DeleteCart(ctx context.Context, cartID string) error
	// ClaimCart bumps the version if it still equals version, else ErrStale.
	ClaimCart(ctx context.Context, cartID string, version int64) error
	ClearCart(ctx context.Context, cartID string) error

	OrderCodeExists(ctx context.Context, code string) (bool, error)
	InsertPayment(ctx context.Context, p *order.Payment) error
	InsertOrder(ctx context.Context, o *order.Order) error
	LockOrder(ctx context.Context, id string) (*order.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status order.OrderStatus) error
	AppendStatusLog(ctx context.Context, e *statuslog.Entry) error
}

type Store interface {
	Reader
	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
