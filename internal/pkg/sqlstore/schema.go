package sqlstore

// Both schemas describe the same tables. Money is NUMERIC on PostgreSQL and
// TEXT on SQLite so no precision is lost; timestamps on SQLite are RFC3339 TEXT.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL UNIQUE,
		role        TEXT NOT NULL DEFAULT 'USER',
		phone       TEXT NOT NULL DEFAULT '',
		address     TEXT NOT NULL DEFAULT '',
		is_blocked  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		code          TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		image_url     TEXT NOT NULL DEFAULT '',
		category_id   TEXT NOT NULL REFERENCES categories(id),
		price         NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		stock_count   INTEGER NOT NULL CHECK (stock_count >= 0),
		out_of_stock  BOOLEAN NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL UNIQUE REFERENCES users(id),
		total_amount  NUMERIC(12,2) NOT NULL DEFAULT 0,
		version       BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id           TEXT PRIMARY KEY,
		cart_id      TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id   TEXT NOT NULL REFERENCES products(id),
		quantity     INTEGER NOT NULL CHECK (quantity >= 1),
		total_price  NUMERIC(12,2) NOT NULL,
		UNIQUE (cart_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id              TEXT PRIMARY KEY,
		transaction_id  TEXT NOT NULL,
		initiator_id    TEXT NOT NULL DEFAULT '',
		amount          NUMERIC(12,2) NOT NULL,
		succeeded       BOOLEAN NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                 TEXT PRIMARY KEY,
		code               TEXT NOT NULL UNIQUE,
		user_id            TEXT NOT NULL REFERENCES users(id),
		total_amount       NUMERIC(12,2) NOT NULL,
		status             TEXT NOT NULL,
		recipient_name     TEXT NOT NULL DEFAULT '',
		recipient_phone    TEXT NOT NULL DEFAULT '',
		recipient_address  TEXT NOT NULL,
		payment_id         TEXT UNIQUE REFERENCES payments(id),
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id            TEXT PRIMARY KEY,
		order_id      TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id    TEXT NOT NULL REFERENCES products(id),
		product_name  TEXT NOT NULL,
		quantity      INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price    NUMERIC(12,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_status_log (
		id           BIGSERIAL PRIMARY KEY,
		order_id     TEXT NOT NULL REFERENCES orders(id),
		from_status  TEXT NOT NULL DEFAULT '',
		to_status    TEXT NOT NULL,
		actor        TEXT NOT NULL DEFAULT '',
		trace_id     TEXT NOT NULL DEFAULT '',
		span_id      TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_status_log_order ON order_status_log(order_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_status_log_trace ON order_status_log(trace_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL UNIQUE,
		role        TEXT NOT NULL DEFAULT 'USER',
		phone       TEXT NOT NULL DEFAULT '',
		address     TEXT NOT NULL DEFAULT '',
		is_blocked  INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		created_at  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		code          TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		image_url     TEXT NOT NULL DEFAULT '',
		category_id   TEXT NOT NULL REFERENCES categories(id),
		price         TEXT NOT NULL,
		stock_count   INTEGER NOT NULL CHECK (stock_count >= 0),
		out_of_stock  INTEGER NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL UNIQUE REFERENCES users(id),
		total_amount  TEXT NOT NULL DEFAULT '0',
		version       INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id           TEXT PRIMARY KEY,
		cart_id      TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id   TEXT NOT NULL REFERENCES products(id),
		quantity     INTEGER NOT NULL CHECK (quantity >= 1),
		total_price  TEXT NOT NULL,
		UNIQUE (cart_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id              TEXT PRIMARY KEY,
		transaction_id  TEXT NOT NULL,
		initiator_id    TEXT NOT NULL DEFAULT '',
		amount          TEXT NOT NULL,
		succeeded       INTEGER NOT NULL DEFAULT 1,
		created_at      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                 TEXT PRIMARY KEY,
		code               TEXT NOT NULL UNIQUE,
		user_id            TEXT NOT NULL REFERENCES users(id),
		total_amount       TEXT NOT NULL,
		status             TEXT NOT NULL,
		recipient_name     TEXT NOT NULL DEFAULT '',
		recipient_phone    TEXT NOT NULL DEFAULT '',
		recipient_address  TEXT NOT NULL,
		payment_id         TEXT UNIQUE REFERENCES payments(id),
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id            TEXT PRIMARY KEY,
		order_id      TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id    TEXT NOT NULL REFERENCES products(id),
		product_name  TEXT NOT NULL,
		quantity      INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_status_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id     TEXT NOT NULL REFERENCES orders(id),
		from_status  TEXT NOT NULL DEFAULT '',
		to_status    TEXT NOT NULL,
		actor        TEXT NOT NULL DEFAULT '',
		trace_id     TEXT NOT NULL DEFAULT '',
		span_id      TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_status_log_order ON order_status_log(order_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_status_log_trace ON order_status_log(trace_id)`,
}
