package sqlstore

import (
	"context"
	"fmt"

	"github.com/jcmexdev/storefront/internal/order-service/statuslog"
)

// AppendStatusLog inserts a new entry. The table is append-only.
func (c *conn) AppendStatusLog(ctx context.Context, e *statuslog.Entry) error {
	const q = `
		INSERT INTO order_status_log
			(order_id, from_status, to_status, actor, trace_id, span_id, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)`

	_, err := c.exec(ctx, fmt.Sprintf("append status log for %q", e.OrderID), q,
		e.OrderID, e.FromStatus, e.ToStatus, e.Actor, e.TraceID, e.SpanID, c.ts(e.CreatedAt))
	return err
}

// ListStatusLog returns the history of an order, oldest first.
func (c *conn) ListStatusLog(ctx context.Context, orderID string) ([]statuslog.Entry, error) {
	const q = `
		SELECT order_id, from_status, to_status, actor, trace_id, span_id, created_at
		FROM   order_status_log
		WHERE  order_id = ?
		ORDER  BY id`

	rows, err := c.query(ctx, q, orderID)
	if err != nil {
		return nil, classify(fmt.Sprintf("list status log for %q", orderID), err)
	}
	defer rows.Close()

	var out []statuslog.Entry
	for rows.Next() {
		var e statuslog.Entry
		if err := rows.Scan(&e.OrderID, &e.FromStatus, &e.ToStatus, &e.Actor, &e.TraceID, &e.SpanID, scanTime(&e.CreatedAt)); err != nil {
			return nil, classify("scan status log", err)
		}
		out = append(out, e)
	}
	return out, classify("list status log", rows.Err())
}
