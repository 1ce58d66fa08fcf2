package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jcmexdev/storefront/internal/pkg/apperr"
)

type orderMetrics struct {
	placed        metric.Int64Counter
	rejected      metric.Int64Counter
	statusChanges metric.Int64Counter
	unitsReserved metric.Int64Counter
	unitsReleased metric.Int64Counter
}

func newOrderMetrics(m metric.Meter) *orderMetrics {
	return &orderMetrics{
		placed:        counter(m, "orders.placed", "Orders committed"),
		rejected:      counter(m, "orders.rejected", "PlaceOrder calls that failed, by error kind"),
		statusChanges: counter(m, "orders.status_changes", "Applied status transitions, by target status"),
		unitsReserved: counter(m, "inventory.units_reserved", "Stock units taken by placed orders"),
		unitsReleased: counter(m, "inventory.units_released", "Stock units returned by cancellations"),
	}
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
	}
	return c
}

func (m *orderMetrics) orderPlaced(ctx context.Context, units int) {
	m.placed.Add(ctx, 1)
	m.unitsReserved.Add(ctx, int64(units))
}

func (m *orderMetrics) orderRejected(ctx context.Context, err error) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(apperr.KindOf(err)))))
}

func (m *orderMetrics) statusChanged(ctx context.Context, to string, released int) {
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("status", to)))
	if released > 0 {
		m.unitsReleased.Add(ctx, int64(released))
	}
}
