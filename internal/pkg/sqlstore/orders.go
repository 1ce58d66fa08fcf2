package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	order "github.com/jcmexdev/storefront/internal/order-service/domain"
	"github.com/jcmexdev/storefront/internal/store"
)

const orderColumns = `o.id, o.code, o.user_id, o.total_amount, o.status,
	o.recipient_name, o.recipient_phone, o.recipient_address, o.payment_id, o.created_at, o.updated_at`

func scanOrder(s scanner, o *order.Order) error {
	var paymentID sql.NullString
	err := s.Scan(&o.ID, &o.Code, &o.UserID, &o.TotalAmount, &o.Status,
		&o.Recipient.Name, &o.Recipient.Phone, &o.Recipient.Address, &paymentID,
		scanTime(&o.CreatedAt), scanTime(&o.UpdatedAt))
	o.PaymentID = paymentID.String
	return err
}

func (c *conn) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	return c.getOrder(ctx, id, "")
}

func (c *conn) LockOrder(ctx context.Context, id string) (*order.Order, error) {
	return c.getOrder(ctx, id, c.forUpdate())
}

func (c *conn) getOrder(ctx context.Context, id, suffix string) (*order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = ?` + suffix

	var o order.Order
	if err := scanOrder(c.queryRow(ctx, q, id), &o); err != nil {
		return nil, classify(fmt.Sprintf("get order %q", id), err)
	}
	items, err := c.orderItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

// orderItems loads the lines of several orders with one query.
func (c *conn) orderItems(ctx context.Context, orderIDs []string) (map[string][]order.OrderItem, error) {
	out := make(map[string][]order.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	q := `
		SELECT id, order_id, product_id, product_name, quantity, unit_price
		FROM   order_items
		WHERE  order_id IN (?` + strings.Repeat(", ?", len(orderIDs)-1) + `)
		ORDER  BY order_id, product_id`

	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, classify("list order items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it order.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, classify("scan order item", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list order items", err)
	}
	return out, nil
}

func (c *conn) ListOrders(ctx context.Context, f store.OrderFilter) ([]order.Order, int, error) {
	clause, args := "", []any{}
	if s := strings.TrimSpace(f.Search); s != "" {
		clause = ` WHERE LOWER(o.code) LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(s))
	}

	var total int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM orders o`+clause, args...).Scan(&total); err != nil {
		return nil, 0, classify("count orders", err)
	}

	q := `SELECT ` + orderColumns + ` FROM orders o` + clause + ` ORDER BY o.created_at DESC, o.id`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset())
	}
	orders, err := c.listOrders(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (c *conn) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders o WHERE o.user_id = ? ORDER BY o.created_at DESC, o.id`
	return c.listOrders(ctx, q, userID)
}

func (c *conn) listOrders(ctx context.Context, q string, args ...any) ([]order.Order, error) {
	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, classify("list orders", err)
	}
	var (
		orders []order.Order
		ids    []string
	)
	for rows.Next() {
		var o order.Order
		if err := scanOrder(rows, &o); err != nil {
			_ = rows.Close()
			return nil, classify("scan order", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify("list orders", err)
	}

	items, err := c.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (c *conn) OrderCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM orders WHERE code = ?`, code).Scan(&n); err != nil {
		return false, classify("check order code", err)
	}
	return n > 0, nil
}

// InsertOrder writes the order and its items. IDs and timestamps are filled
// in when empty.
func (c *conn) InsertOrder(ctx context.Context, o *order.Order) error {
	const qOrder = `
		INSERT INTO orders
			(id, code, user_id, total_amount, status, recipient_name, recipient_phone, recipient_address,
			 payment_id, created_at, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	const qItem = `
		INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price)
		VALUES (?, ?, ?, ?, ?, ?)`

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt

	_, err := c.exec(ctx, fmt.Sprintf("insert order %q", o.Code), qOrder,
		o.ID, o.Code, o.UserID, money(o.TotalAmount), string(o.Status),
		o.Recipient.Name, o.Recipient.Phone, o.Recipient.Address,
		nullableString(o.PaymentID), c.ts(o.CreatedAt), c.ts(o.UpdatedAt))
	if err != nil {
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		if _, err := c.exec(ctx, "insert order item", qItem,
			it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, money(it.UnitPrice)); err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) UpdateOrderStatus(ctx context.Context, id string, status order.OrderStatus) error {
	res, err := c.exec(ctx, fmt.Sprintf("update status of %q", id),
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), c.ts(time.Now()), id)
	if err != nil {
		return err
	}
	return rowsAffected(res, "update order status")
}

func (c *conn) InsertPayment(ctx context.Context, p *order.Payment) error {
	const q = `
		INSERT INTO payments (id, transaction_id, initiator_id, amount, succeeded, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := c.exec(ctx, fmt.Sprintf("insert payment %q", p.TransactionID), q,
		p.ID, p.TransactionID, p.InitiatorID, money(p.Amount), p.Succeeded, c.ts(p.CreatedAt))
	return err
}

func (c *conn) ListPayments(ctx context.Context, f store.OrderFilter) ([]order.Payment, int, error) {
	var total int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM payments`).Scan(&total); err != nil {
		return nil, 0, classify("count payments", err)
	}

	q := `SELECT id, transaction_id, initiator_id, amount, succeeded, created_at FROM payments ORDER BY created_at DESC, id`
	var args []any
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset())
	}
	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, 0, classify("list payments", err)
	}
	defer rows.Close()

	var out []order.Payment
	for rows.Next() {
		var p order.Payment
		if err := rows.Scan(&p.ID, &p.TransactionID, &p.InitiatorID, &p.Amount, &p.Succeeded, scanTime(&p.CreatedAt)); err != nil {
			return nil, 0, classify("scan payment", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list payments", err)
	}
	return out, total, nil
}

// nullableString returns nil for empty strings so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
