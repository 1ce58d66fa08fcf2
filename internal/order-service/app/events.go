package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcmexdev/storefront/internal/order-service/domain"
)

type Topics struct {
	OrderPlaced        string
	OrderStatusChanged string
}

type EventItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type OrderPlaced struct {
	OrderID     string      `json:"orderId"`
	Code        string      `json:"code"`
	UserID      string      `json:"userId"`
	TotalAmount string      `json:"totalAmount"`
	Items       []EventItem `json:"items"`
	PlacedAt    time.Time   `json:"placedAt"`
}

type OrderStatusChanged struct {
	OrderID   string    `json:"orderId"`
	Code      string    `json:"code"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Actor     string    `json:"actor"`
	Restocked bool      `json:"restocked"`
	ChangedAt time.Time `json:"changedAt"`
}

func newOrderPlaced(o *domain.Order) OrderPlaced {
	items := make([]EventItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, EventItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice.StringFixed(2)})
	}
	return OrderPlaced{
		OrderID:     o.ID,
		Code:        o.Code,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Items:       items,
		PlacedAt:    o.CreatedAt,
	}
}

// publish is best effort: the order is already committed.
func (s *Service) publish(ctx context.Context, topic, key string, event any) {
	if topic == "" {
		return
	}
	if err := s.publisher.PublishEvent(ctx, topic, key, event); err != nil {
		slog.ErrorContext(ctx, "failed to publish event", "topic", topic, "key", key, "error", err)
	}
}
