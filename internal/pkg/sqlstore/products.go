package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
)

const productColumns = `p.id, p.name, p.code, p.description, p.image_url, p.category_id,
	p.price, p.stock_count, p.out_of_stock, p.created_at, p.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner, p *catalog.Product) error {
	return s.Scan(
		&p.ID, &p.Name, &p.Code, &p.Description, &p.ImageURL, &p.CategoryID,
		&p.Price, &p.StockCount, &p.OutOfStock, scanTime(&p.CreatedAt), scanTime(&p.UpdatedAt),
	)
}

func (c *conn) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	return c.getProduct(ctx, id, "")
}

func (c *conn) LockProduct(ctx context.Context, id string) (*catalog.Product, error) {
	return c.getProduct(ctx, id, c.forUpdate())
}

func (c *conn) getProduct(ctx context.Context, id, suffix string) (*catalog.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products p WHERE p.id = ?` + suffix

	var p catalog.Product
	if err := scanProduct(c.queryRow(ctx, q, id), &p); err != nil {
		return nil, classify(fmt.Sprintf("get product %q", id), err)
	}
	return &p, nil
}

func (c *conn) ListProducts(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, int, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, `LOWER(p.name) LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(s))
	}
	if f.CategoryID != "" {
		where = append(where, `p.category_id = ?`)
		args = append(args, f.CategoryID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM products p`+clause, args...).Scan(&total); err != nil {
		return nil, 0, classify("count products", err)
	}

	q := `SELECT ` + productColumns + ` FROM products p` + clause + ` ORDER BY p.name, p.id`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset())
	}
	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, 0, classify("list products", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, 0, classify("scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list products", err)
	}
	return out, total, nil
}

func (c *conn) SaveProductStock(ctx context.Context, p *catalog.Product) error {
	const q = `UPDATE products SET stock_count = ?, out_of_stock = ?, updated_at = ? WHERE id = ?`

	p.UpdatedAt = time.Now().UTC()
	res, err := c.exec(ctx, fmt.Sprintf("save stock of %q", p.ID), q,
		p.StockCount, p.StockCount == 0, c.ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	p.OutOfStock = p.StockCount == 0
	return rowsAffected(res, "save stock")
}

func (c *conn) CreateProduct(ctx context.Context, p *catalog.Product) error {
	const q = `
		INSERT INTO products
			(id, name, code, description, image_url, category_id, price, stock_count, out_of_stock, created_at, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := c.exec(ctx, fmt.Sprintf("create product %q", p.Name), q,
		p.ID, p.Name, p.Code, p.Description, p.ImageURL, p.CategoryID,
		money(p.Price), p.StockCount, p.StockCount == 0, c.ts(p.CreatedAt), c.ts(p.UpdatedAt))
	return err
}

func (c *conn) GetCategory(ctx context.Context, id string) (*catalog.Category, error) {
	const q = `SELECT id, name, created_at FROM categories WHERE id = ?`

	var cat catalog.Category
	if err := c.queryRow(ctx, q, id).Scan(&cat.ID, &cat.Name, scanTime(&cat.CreatedAt)); err != nil {
		return nil, classify(fmt.Sprintf("get category %q", id), err)
	}
	return &cat, nil
}

func (c *conn) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := c.query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, classify("list categories", err)
	}
	defer rows.Close()

	var out []catalog.Category
	for rows.Next() {
		var cat catalog.Category
		if err := rows.Scan(&cat.ID, &cat.Name, scanTime(&cat.CreatedAt)); err != nil {
			return nil, classify("scan category", err)
		}
		out = append(out, cat)
	}
	return out, classify("list categories", rows.Err())
}

func (c *conn) CreateCategory(ctx context.Context, cat *catalog.Category) error {
	const q = `INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)`

	_, err := c.exec(ctx, fmt.Sprintf("create category %q", cat.Name), q, cat.ID, cat.Name, c.ts(cat.CreatedAt))
	return err
}

func (c *conn) CatalogStats(ctx context.Context) (*catalog.Stats, error) {
	const q = `
		SELECT (SELECT COUNT(*) FROM products),
		       (SELECT COUNT(*) FROM categories),
		       (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM orders),
		       (SELECT COUNT(*) FROM products WHERE out_of_stock = ?)`

	var s catalog.Stats
	err := c.queryRow(ctx, q, true).Scan(&s.Products, &s.Categories, &s.Users, &s.Orders, &s.OutOfStockCount)
	if err != nil {
		return nil, classify("catalog stats", err)
	}

	rows, err := c.query(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.out_of_stock = ? ORDER BY p.name`, true)
	if err != nil {
		return nil, classify("list out of stock", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p catalog.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, classify("scan product", err)
		}
		s.OutOfStockItems = append(s.OutOfStockItems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list out of stock", err)
	}
	return &s, nil
}

func (c *conn) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	const q = `
		UPDATE products
		SET    name = ?, code = ?, description = ?, image_url = ?, category_id = ?,
		       price = ?, stock_count = ?, out_of_stock = ?, updated_at = ?
		WHERE  id = ?`

	p.UpdatedAt = time.Now().UTC()
	p.OutOfStock = p.StockCount == 0
	res, err := c.exec(ctx, fmt.Sprintf("update product %q", p.ID), q,
		p.Name, p.Code, p.Description, p.ImageURL, p.CategoryID,
		money(p.Price), p.StockCount, p.OutOfStock, c.ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "update product")
}

func (c *conn) DeleteProduct(ctx context.Context, id string) error {
	res, err := c.exec(ctx, fmt.Sprintf("delete product %q", id), `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, "delete product")
}

func (c *conn) ProductOrdered(ctx context.Context, id string) (bool, error) {
	var ordered bool
	err := c.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = ?)`, id).Scan(&ordered)
	return ordered, classify("product ordered", err)
}

func (c *conn) UpdateCategory(ctx context.Context, cat *catalog.Category) error {
	res, err := c.exec(ctx, fmt.Sprintf("update category %q", cat.ID),
		`UPDATE categories SET name = ? WHERE id = ?`, cat.Name, cat.ID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "update category")
}

func (c *conn) DeleteCategory(ctx context.Context, id string) error {
	res, err := c.exec(ctx, fmt.Sprintf("delete category %q", id), `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, "delete category")
}
