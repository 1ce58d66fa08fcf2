package app

import (
	"context"
	"errors"
	"slices"

	"github.com/jcmexdev/storefront/internal/order-service/domain"
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	"github.com/jcmexdev/storefront/internal/store"
)

// quantitiesByProduct sums quantities per product and returns the product ids
// in ascending order. Locks are always taken in that order, so two
// transactions touching the same products cannot deadlock.
func quantitiesByProduct(items []domain.OrderItem) ([]string, map[string]int) {
	qty := make(map[string]int, len(items))
	for _, it := range items {
		qty[it.ProductID] += it.Quantity
	}
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, qty
}

func reserveStock(ctx context.Context, tx store.Tx, items []domain.OrderItem) error {
	ids, qty := quantitiesByProduct(items)
	for _, id := range ids {
		p, err := tx.LockProduct(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.KindProductNotFound, "Product not found")
		}
		if err != nil {
			return err
		}
		if err := p.Reserve(qty[id]); err != nil {
			return err
		}
		if err := tx.SaveProductStock(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// releaseStock puts the items back on the shelf and returns the unit count.
func releaseStock(ctx context.Context, tx store.Tx, items []domain.OrderItem) (int, error) {
	ids, qty := quantitiesByProduct(items)
	units := 0
	for _, id := range ids {
		p, err := tx.LockProduct(ctx, id)
		if err != nil {
			return 0, err
		}
		if err := p.Release(qty[id]); err != nil {
			return 0, err
		}
		if err := tx.SaveProductStock(ctx, p); err != nil {
			return 0, err
		}
		units += qty[id]
	}
	return units, nil
}
