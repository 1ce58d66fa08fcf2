// Package sqlstoretest opens throwaway stores for tests.
//
// SQLite stores live in t.TempDir. PostgreSQL stores are created in a fresh
// schema of the database named by TEST_DATABASE_URL and are skipped when the
// variable is unset.
package sqlstoretest

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
	"github.com/jcmexdev/storefront/internal/pkg/sqlstore"
	"github.com/jcmexdev/storefront/internal/store"
	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

// Open returns a migrated store backed by a file in t.TempDir.
func Open(t testing.TB) *sqlstore.DB {
	t.Helper()
	db, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "store.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// PostgresURLEnv names the variable holding a postgres:// URL for tests.
const PostgresURLEnv = "TEST_DATABASE_URL"

// OpenPostgres returns a migrated store in a schema of its own. The pool has
// several connections, so transactions really run side by side.
func OpenPostgres(t testing.TB) *sqlstore.DB {
	t.Helper()
	base := os.Getenv(PostgresURLEnv)
	if base == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}
	ctx := context.Background()

	admin, err := sql.Open(sqlstore.DriverPostgres, base)
	require.NoError(t, err)
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.ExecContext(ctx, `CREATE SCHEMA `+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.ExecContext(context.Background(), `DROP SCHEMA `+schema+` CASCADE`)
		_ = admin.Close()
	})

	u, err := url.Parse(base)
	require.NoError(t, err)
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	db, err := sqlstore.Open(ctx, sqlstore.DriverPostgres, u.String(), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ForEachDialect runs fn once per supported database.
func ForEachDialect(t *testing.T, fn func(t *testing.T, db *sqlstore.DB)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, Open(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, OpenPostgres(t)) })
}

// User inserts a customer with a delivery address.
func User(t testing.TB, s store.Store, role user.Role) *user.User {
	t.Helper()
	id := uuid.NewString()
	u := &user.User{
		ID:        id,
		Name:      "user " + id[:8],
		Email:     id + "@example.com",
		Role:      role,
		Phone:     "555-0100",
		Address:   "1 Main Street",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateUser(context.Background(), u)
	}))
	return u
}

// Product inserts a product (and its category) with the given price and stock.
func Product(t testing.TB, s store.Store, name, price string, stock int) *catalog.Product {
	t.Helper()
	now := time.Now().UTC()
	cat := &catalog.Category{ID: uuid.NewString(), Name: "category " + name + " " + uuid.NewString()[:8], CreatedAt: now}
	p := &catalog.Product{
		ID:         uuid.NewString(),
		Name:       name,
		CategoryID: cat.ID,
		Price:      decimal.RequireFromString(price),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, p.SetStock(stock))
	require.NoError(t, s.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateCategory(context.Background(), cat); err != nil {
			return err
		}
		return tx.CreateProduct(context.Background(), p)
	}))
	return p
}
