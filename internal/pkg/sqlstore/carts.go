package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cart "github.com/jcmexdev/storefront/internal/cart-service/domain"
	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
	"github.com/jcmexdev/storefront/internal/store"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func (c *conn) GetCartByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	ct, err := c.getCart(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	q := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.total_price, ` + productColumns + `
		FROM   cart_items ci
		JOIN   products p ON p.id = ci.product_id
		WHERE  ci.cart_id = ?
		ORDER  BY p.name, ci.id`
	rows, err := c.query(ctx, q, ct.ID)
	if err != nil {
		return nil, classify("list cart items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it cart.Item
			p  catalog.Product
		)
		err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.TotalPrice,
			&p.ID, &p.Name, &p.Code, &p.Description, &p.ImageURL, &p.CategoryID,
			&p.Price, &p.StockCount, &p.OutOfStock, scanTime(&p.CreatedAt), scanTime(&p.UpdatedAt))
		if err != nil {
			return nil, classify("scan cart item", err)
		}
		it.Product = &p
		ct.Items = append(ct.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list cart items", err)
	}
	return ct, nil
}

func (c *conn) ListCarts(ctx context.Context) ([]cart.Cart, error) {
	rows, err := c.query(ctx, `SELECT id, user_id, total_amount, version FROM carts ORDER BY user_id`)
	if err != nil {
		return nil, classify("list carts", err)
	}
	var (
		carts []cart.Cart
		index = map[string]int{}
	)
	for rows.Next() {
		var ct cart.Cart
		if err := rows.Scan(&ct.ID, &ct.UserID, &ct.TotalAmount, &ct.Version); err != nil {
			_ = rows.Close()
			return nil, classify("scan cart", err)
		}
		index[ct.ID] = len(carts)
		carts = append(carts, ct)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify("list carts", err)
	}

	q := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.total_price, ` + productColumns + `
		FROM   cart_items ci
		JOIN   products p ON p.id = ci.product_id
		ORDER  BY p.name, ci.id`
	rows, err = c.query(ctx, q)
	if err != nil {
		return nil, classify("list cart items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it cart.Item
			p  catalog.Product
		)
		err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.TotalPrice,
			&p.ID, &p.Name, &p.Code, &p.Description, &p.ImageURL, &p.CategoryID,
			&p.Price, &p.StockCount, &p.OutOfStock, scanTime(&p.CreatedAt), scanTime(&p.UpdatedAt))
		if err != nil {
			return nil, classify("scan cart item", err)
		}
		i, ok := index[it.CartID]
		if !ok {
			continue
		}
		it.Product = &p
		carts[i].Items = append(carts[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list cart items", err)
	}
	return carts, nil
}

func (c *conn) LockCartItemsByProduct(ctx context.Context, productID string) ([]cart.Item, error) {
	if suffix := c.forUpdate(); suffix != "" {
		q := `
			SELECT id FROM carts
			WHERE  id IN (SELECT cart_id FROM cart_items WHERE product_id = ?)
			ORDER  BY id` + suffix
		rows, err := c.query(ctx, q, productID)
		if err != nil {
			return nil, classify("lock carts", err)
		}
		for rows.Next() {
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return nil, classify("lock carts", err)
		}
	}

	q := `SELECT id, cart_id, product_id, quantity, total_price FROM cart_items WHERE product_id = ? ORDER BY cart_id`
	rows, err := c.query(ctx, q, productID)
	if err != nil {
		return nil, classify("list cart items", err)
	}
	defer rows.Close()

	var out []cart.Item
	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.TotalPrice); err != nil {
			return nil, classify("scan cart item", err)
		}
		out = append(out, it)
	}
	return out, classify("list cart items", rows.Err())
}

func (c *conn) LockCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return c.getCart(ctx, userID, c.forUpdate())
}

func (c *conn) getCart(ctx context.Context, userID, suffix string) (*cart.Cart, error) {
	q := `SELECT id, user_id, total_amount, version FROM carts WHERE user_id = ?` + suffix

	var ct cart.Cart
	if err := c.queryRow(ctx, q, userID).Scan(&ct.ID, &ct.UserID, &ct.TotalAmount, &ct.Version); err != nil {
		return nil, classify(fmt.Sprintf("get cart of %q", userID), err)
	}
	return &ct, nil
}

func (c *conn) EnsureCart(ctx context.Context, userID string) (*cart.Cart, error) {
	const q = `
		INSERT INTO carts (id, user_id, total_amount, version)
		VALUES (?, ?, ?, 0)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := c.exec(ctx, fmt.Sprintf("ensure cart of %q", userID), q,
		uuid.NewString(), userID, money(decimal.Zero)); err != nil {
		return nil, err
	}
	return c.LockCart(ctx, userID)
}

func (c *conn) GetCartItem(ctx context.Context, cartID, itemID string) (*cart.Item, error) {
	return c.getCartItem(ctx, `cart_id = ? AND id = ?`, cartID, itemID)
}

func (c *conn) GetCartItemByProduct(ctx context.Context, cartID, productID string) (*cart.Item, error) {
	return c.getCartItem(ctx, `cart_id = ? AND product_id = ?`, cartID, productID)
}

func (c *conn) getCartItem(ctx context.Context, where string, args ...any) (*cart.Item, error) {
	q := `SELECT id, cart_id, product_id, quantity, total_price FROM cart_items WHERE ` + where

	var it cart.Item
	if err := c.queryRow(ctx, q, args...).Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.TotalPrice); err != nil {
		return nil, classify("get cart item", err)
	}
	return &it, nil
}

func (c *conn) InsertCartItem(ctx context.Context, it *cart.Item) error {
	const q = `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, total_price)
		VALUES (?, ?, ?, ?, ?)`

	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	_, err := c.exec(ctx, "insert cart item", q, it.ID, it.CartID, it.ProductID, it.Quantity, money(it.TotalPrice))
	return err
}

func (c *conn) UpdateCartItem(ctx context.Context, it *cart.Item) error {
	const q = `UPDATE cart_items SET quantity = ?, total_price = ? WHERE id = ?`

	res, err := c.exec(ctx, "update cart item", q, it.Quantity, money(it.TotalPrice), it.ID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "update cart item")
}

func (c *conn) DeleteCartItem(ctx context.Context, itemID string) error {
	res, err := c.exec(ctx, "delete cart item", `DELETE FROM cart_items WHERE id = ?`, itemID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "delete cart item")
}

func (c *conn) RecomputeCartTotal(ctx context.Context, cartID string) (int, error) {
	rows, err := c.query(ctx, `SELECT total_price FROM cart_items WHERE cart_id = ?`, cartID)
	if err != nil {
		return 0, classify("sum cart items", err)
	}
	total, n := decimal.Zero, 0
	for rows.Next() {
		var price decimal.Decimal
		if err := rows.Scan(&price); err != nil {
			_ = rows.Close()
			return 0, classify("scan cart item", err)
		}
		total = total.Add(price)
		n++
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, classify("sum cart items", err)
	}

	res, err := c.exec(ctx, "recompute cart total",
		`UPDATE carts SET total_amount = ?, version = version + 1 WHERE id = ?`, money(total), cartID)
	if err != nil {
		return 0, err
	}
	return n, rowsAffected(res, "recompute cart total")
}

func (c *conn) DeleteCart(ctx context.Context, cartID string) error {
	if _, err := c.exec(ctx, "delete cart items", `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return err
	}
	res, err := c.exec(ctx, "delete cart", `DELETE FROM carts WHERE id = ?`, cartID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "delete cart")
}

func (c *conn) ClaimCart(ctx context.Context, cartID string, version int64) error {
	res, err := c.exec(ctx, "claim cart",
		`UPDATE carts SET version = version + 1 WHERE id = ? AND version = ?`, cartID, version)
	if err != nil {
		return err
	}
	if err := rowsAffected(res, "claim cart"); err != nil {
		if err == store.ErrNotFound {
			return store.ErrStale
		}
		return err
	}
	return nil
}

func (c *conn) ClearCart(ctx context.Context, cartID string) error {
	if _, err := c.exec(ctx, "clear cart items", `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return err
	}
	_, err := c.exec(ctx, "clear cart",
		`UPDATE carts SET total_amount = ?, version = version + 1 WHERE id = ?`, money(decimal.Zero), cartID)
	return err
}
