package httpx_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartapp "github.com/jcmexdev/storefront/internal/cart-service/app"
	catalogapp "github.com/jcmexdev/storefront/internal/catalog-service/app"
	orderapp "github.com/jcmexdev/storefront/internal/order-service/app"
	"github.com/jcmexdev/storefront/internal/pkg/cache"
	"github.com/jcmexdev/storefront/internal/pkg/identity"
	"github.com/jcmexdev/storefront/internal/pkg/reqctx"
	"github.com/jcmexdev/storefront/internal/pkg/sqlstore"
	"github.com/jcmexdev/storefront/internal/pkg/sqlstore/sqlstoretest"
	"github.com/jcmexdev/storefront/internal/storefront-api/infra/httpx"
	userapp "github.com/jcmexdev/storefront/internal/user-service/app"
	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Meta    *httpx.Meta     `json:"meta"`
}

type api struct {
	t      *testing.T
	db     *sqlstore.DB
	router http.Handler
	auth   *identity.Provider
}

func newAPI(t *testing.T, opts ...orderapp.Option) *api {
	t.Helper()
	db := sqlstoretest.Open(t)
	auth := identity.NewProvider("test-secret")
	h := httpx.NewHandler(
		cartapp.NewService(db),
		orderapp.NewService(db, opts...),
		catalogapp.NewService(db),
		userapp.NewService(db),
		db,
	)
	return &api{t: t, db: db, router: httpx.NewRouter(h, auth, 5*time.Second), auth: auth}
}

func (a *api) token(u *user.User) string {
	a.t.Helper()
	tok, err := a.auth.Issue(u.ID, u.Role, time.Hour)
	require.NoError(a.t, err)
	return tok
}

func (a *api) do(method, path, token string, body any, headers ...string) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)

	code, env := a.do(http.MethodGet, "/api/v1/healthz", "", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestAuthentication(t *testing.T) {
	a := newAPI(t)
	customer := sqlstoretest.User(t, a.db, user.RoleUser)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantError  string
	}{
		{"missing token", http.MethodGet, "/api/v1/cart", "", http.StatusUnauthorized, "AuthenticationRequired"},
		{"garbage token", http.MethodGet, "/api/v1/cart", "not-a-jwt", http.StatusUnauthorized, "InvalidCredential"},
		{"user on admin orders", http.MethodGet, "/api/v1/admin/orders", a.token(customer), http.StatusForbidden, "Unauthorized"},
		{"user on analytics", http.MethodGet, "/api/v1/admin/analytics", a.token(customer), http.StatusForbidden, "Unauthorized"},
		{"user changing status", http.MethodPatch, "/api/v1/admin/order-change-status", a.token(customer), http.StatusForbidden, "Unauthorized"},
		{"user listing users", http.MethodGet, "/api/v1/admin/users", a.token(customer), http.StatusForbidden, "Unauthorized"},
		{"user editing product", http.MethodPatch, "/api/v1/admin/products/x", a.token(customer), http.StatusForbidden, "Unauthorized"},
		{"anonymous profile", http.MethodGet, "/api/v1/me", "", http.StatusUnauthorized, "AuthenticationRequired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := a.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantStatus, code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantError, env.Error)
		})
	}
}

func TestGetCartWithoutCart(t *testing.T) {
	a := newAPI(t)
	customer := sqlstoretest.User(t, a.db, user.RoleUser)

	code, env := a.do(http.MethodGet, "/api/v1/cart", a.token(customer), nil)

	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)
	assert.Equal(t, "Cart not found", env.Message)
}

func TestCartEndpoints(t *testing.T) {
	a := newAPI(t)
	customer := sqlstoretest.User(t, a.db, user.RoleUser)
	tok := a.token(customer)
	p := sqlstoretest.Product(t, a.db, "Lamp", "12.50", 4)

	code, env := a.do(http.MethodPost, "/api/v1/cart", tok, map[string]any{"productId": p.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, code, env.Message)
	added := decodeData[httpx.CartMutationResponse](t, env)
	assert.Equal(t, "added", added.Outcome)
	require.NotNil(t, added.Item)

	code, env = a.do(http.MethodPost, "/api/v1/cart", tok, map[string]any{"productId": p.ID, "quantity": 5})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InsufficientStock", env.Error)
	assert.Equal(t, "Cannot add more items. Available stock: 4, Current in cart: 2", env.Message)

	code, env = a.do(http.MethodPatch, "/api/v1/cart", tok, map[string]any{"cartItemId": added.Item.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Cart item quantity updated successfully", env.Message)

	code, env = a.do(http.MethodGet, "/api/v1/cart", tok, nil)
	require.Equal(t, http.StatusOK, code)
	c := decodeData[httpx.CartResponse](t, env)
	assert.Equal(t, "37.50", c.TotalAmount)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)

	code, env = a.do(http.MethodPatch, "/api/v1/cart", tok, map[string]any{"cartItemId": added.Item.ID, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Quantity change must be a valid number", env.Message)

	code, env = a.do(http.MethodDelete, "/api/v1/cart/"+added.Item.ID, tok, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	removed := decodeData[httpx.CartMutationResponse](t, env)
	assert.Equal(t, "removed", removed.Outcome)
	assert.True(t, removed.CartDeleted)

	code, env = a.do(http.MethodDelete, "/api/v1/cart/"+added.Item.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "CartNotFound", env.Error)
}

func TestAddToCartRequiresFields(t *testing.T) {
	a := newAPI(t)
	customer := sqlstoretest.User(t, a.db, user.RoleUser)

	code, env := a.do(http.MethodPost, "/api/v1/cart", a.token(customer), map[string]any{"productId": "p-1"})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Product ID and quantity are required", env.Message)
}

func TestOrderLifecycle(t *testing.T) {
	a := newAPI(t)
	customer := sqlstoretest.User(t, a.db, user.RoleUser)
	admin := sqlstoretest.User(t, a.db, user.RoleAdmin)
	tok, adminTok := a.token(customer), a.token(admin)
	p := sqlstoretest.Product(t, a.db, "Kettle", "20.00", 5)

	code, env := a.do(http.MethodPost, "/api/v1/cart", tok, map[string]any{"productId": p.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = a.do(http.MethodPost, "/api/v1/order", tok, map[string]any{
		"transactionId": "tx-1",
		"initiatorId":   "wallet",
		"amount":        "60.00",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	placed := decodeData[httpx.OrderResponse](t, env)
	assert.Equal(t, "PENDING", placed.Status)
	assert.Equal(t, "60.00", placed.TotalAmount)
	assert.Equal(t, 3, placed.TotalQuantity)
	assert.Equal(t, customer.Address, placed.Address)
	assert.NotEmpty(t, placed.PaymentID)
	require.Len(t, placed.Items, 1)
	assert.Equal(t, "20.00", placed.Items[0].UnitPrice)

	_, env = a.do(http.MethodGet, "/api/v1/products/"+p.ID, "", nil)
	assert.Equal(t, 2, decodeData[httpx.ProductResponse](t, env).StockCount)

	code, env = a.do(http.MethodGet, "/api/v1/cart", tok, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)

	code, env = a.do(http.MethodGet, "/api/v1/order-details", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]httpx.OrderResponse](t, env), 1)

	code, env = a.do(http.MethodPatch, "/api/v1/admin/order-change-status", adminTok,
		map[string]any{"orderId": placed.ID, "status": "COMPLETED"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidTransition", env.Error)

	code, env = a.do(http.MethodPatch, "/api/v1/admin/order-change-status", adminTok,
		map[string]any{"orderId": placed.ID, "status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidStatus", env.Error)

	code, env = a.do(http.MethodPatch, "/api/v1/admin/order-change-status", adminTok,
		map[string]any{"orderId": placed.ID, "status": "CANCELED"})
	require.Equal(t, http.StatusOK, code, env.Message)
	change := decodeData[httpx.StatusChangeResponse](t, env)
	assert.True(t, change.Changed)
	assert.True(t, change.Restocked)
	assert.Equal(t, "Order status updated to CANCELED", env.Message)

	_, env = a.do(http.MethodGet, "/api/v1/products/"+p.ID, "", nil)
	restocked := decodeData[httpx.ProductResponse](t, env)
	assert.Equal(t, 5, restocked.StockCount)
	assert.False(t, restocked.OutOfStock)

	code, env = a.do(http.MethodGet, "/api/v1/admin/order/"+placed.ID, adminTok, nil)
	require.Equal(t, http.StatusOK, code)
	details := decodeData[httpx.OrderResponse](t, env)
	require.Len(t, details.History, 2)
	assert.Equal(t, "PENDING", details.History[0].To)
	assert.Equal(t, "CANCELED", details.History[1].To)
	assert.Equal(t, admin.ID, details.History[1].Actor)

	code, env = a.do(http.MethodGet, "/api/v1/admin/orders?page=1&limit=10", adminTok, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, httpx.Meta{Total: 1, CurrentPage: 1, TotalPages: 1}, *env.Meta)

	code, env = a.do(http.MethodGet, "/api/v1/admin/payments", adminTok, nil)
	require.Equal(t, http.StatusOK, code)
	payments := decodeData[[]httpx.PaymentResponse](t, env)
	require.Len(t, payments, 1)
	assert.Equal(t, "60.00", payments[0].Amount)

	code, env = a.do(http.MethodGet, "/api/v1/admin/order/missing", adminTok, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "OrderNotFound", env.Error)
}

func TestPlaceOrderRejections(t *testing.T) {
	a := newAPI(t)
	customer := sqlstoretest.User(t, a.db, user.RoleUser)
	admin := sqlstoretest.User(t, a.db, user.RoleAdmin)
	tok := a.token(customer)

	code, env := a.do(http.MethodPost, "/api/v1/order", tok, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "EmptyCart", env.Error)
	assert.Equal(t, "No items found in cart", env.Message)

	p := sqlstoretest.Product(t, a.db, "Chair", "45.00", 3)
	code, _ = a.do(http.MethodPost, "/api/v1/cart", tok, map[string]any{"productId": p.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, code)

	code, env = a.do(http.MethodPatch, "/api/v1/admin/products/"+p.ID+"/stock", a.token(admin),
		map[string]any{"stockCount": 1})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = a.do(http.MethodPost, "/api/v1/order", tok, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InsufficientStock", env.Error)
	assert.Equal(t, "Insufficient stock for product Chair. Available: 1, Requested: 3", env.Message)
}

func TestPlaceOrderReplaysIdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := newAPI(t, orderapp.WithIdempotency(cache.NewFromClient(client, "storefront"), time.Hour))
	customer := sqlstoretest.User(t, a.db, user.RoleUser)
	tok := a.token(customer)
	p := sqlstoretest.Product(t, a.db, "Mug", "8.00", 10)

	code, _ := a.do(http.MethodPost, "/api/v1/cart", tok, map[string]any{"productId": p.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, code)

	code, env := a.do(http.MethodPost, "/api/v1/order", tok, nil, reqctx.HeaderXIdempotencyKey, "checkout-1")
	require.Equal(t, http.StatusCreated, code, env.Message)
	first := decodeData[httpx.OrderResponse](t, env)

	code, env = a.do(http.MethodPost, "/api/v1/order", tok, nil, reqctx.HeaderXIdempotencyKey, "checkout-1")
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, first.ID, decodeData[httpx.OrderResponse](t, env).ID)

	_, env = a.do(http.MethodGet, "/api/v1/products/"+p.ID, "", nil)
	assert.Equal(t, 8, decodeData[httpx.ProductResponse](t, env).StockCount)
}

func TestCatalogAdmin(t *testing.T) {
	a := newAPI(t)
	admin := sqlstoretest.User(t, a.db, user.RoleAdmin)
	adminTok := a.token(admin)

	code, env := a.do(http.MethodPost, "/api/v1/admin/categories", adminTok, map[string]any{"name": "Garden"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	category := decodeData[httpx.CategoryResponse](t, env)

	code, env = a.do(http.MethodPost, "/api/v1/admin/categories", adminTok, map[string]any{"name": "Garden"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Conflict", env.Error)

	code, env = a.do(http.MethodPost, "/api/v1/admin/products", adminTok, map[string]any{
		"name":       "Hose",
		"categoryId": category.ID,
		"price":      "19.99",
		"stockCount": 0,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	hose := decodeData[httpx.ProductResponse](t, env)
	assert.True(t, hose.OutOfStock)
	assert.Equal(t, "19.99", hose.Price)

	code, env = a.do(http.MethodPost, "/api/v1/admin/products", adminTok, map[string]any{
		"name":       "Rake",
		"categoryId": "missing",
		"price":      "5",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "CategoryNotFound", env.Error)

	code, env = a.do(http.MethodGet, "/api/v1/admin/analytics", adminTok, nil)
	require.Equal(t, http.StatusOK, code)
	stats := decodeData[httpx.StatsResponse](t, env)
	assert.Equal(t, 1, stats.Products)
	assert.Equal(t, 1, stats.OutOfStockCount)
	require.Len(t, stats.OutOfStockItems, 1)
	assert.Equal(t, hose.ID, stats.OutOfStockItems[0].ID)

	code, env = a.do(http.MethodGet, "/api/v1/products?categoryId="+category.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]httpx.ProductResponse](t, env), 1)
	assert.Equal(t, 1, env.Meta.Total)

	code, env = a.do(http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]httpx.CategoryResponse](t, env), 1)
}

func TestCatalogEditing(t *testing.T) {
	a := newAPI(t)
	admin := sqlstoretest.User(t, a.db, user.RoleAdmin)
	customer := sqlstoretest.User(t, a.db, user.RoleUser)
	adminTok, customerTok := a.token(admin), a.token(customer)
	lamp := sqlstoretest.Product(t, a.db, "Lamp", "10", 5)

	code, env := a.do(http.MethodPost, "/api/v1/cart", customerTok, map[string]any{"productId": lamp.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = a.do(http.MethodPatch, "/api/v1/admin/products/"+lamp.ID, adminTok, map[string]any{
		"name":  "Desk lamp",
		"price": "12.50",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Product updated successfully", env.Message)
	updated := decodeData[httpx.ProductResponse](t, env)
	assert.Equal(t, "Desk lamp", updated.Name)
	assert.Equal(t, "12.50", updated.Price)
	assert.Equal(t, 5, updated.StockCount)

	code, env = a.do(http.MethodGet, "/api/v1/cart", customerTok, nil)
	require.Equal(t, http.StatusOK, code)
	c := decodeData[httpx.CartResponse](t, env)
	assert.Equal(t, "25.00", c.TotalAmount)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "25.00", c.Items[0].TotalPrice)

	code, env = a.do(http.MethodPatch, "/api/v1/admin/products/"+lamp.ID, adminTok, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ValidationError", env.Error)
	code, env = a.do(http.MethodPatch, "/api/v1/admin/products/missing", adminTok, map[string]any{"name": "X"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ProductNotFound", env.Error)

	code, env = a.do(http.MethodGet, "/api/v1/categories/"+lamp.CategoryID+"/products", "", nil)
	require.Equal(t, http.StatusOK, code)
	listing := decodeData[httpx.CategoryProductsResponse](t, env)
	assert.Equal(t, lamp.CategoryID, listing.Category.ID)
	require.Len(t, listing.Products, 1)
	assert.Equal(t, 1, env.Meta.Total)

	code, env = a.do(http.MethodPatch, "/api/v1/admin/categories/"+lamp.CategoryID, adminTok, map[string]any{"name": "Lighting"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Lighting", decodeData[httpx.CategoryResponse](t, env).Name)

	code, env = a.do(http.MethodDelete, "/api/v1/admin/categories/"+lamp.CategoryID, adminTok, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Conflict", env.Error)

	code, env = a.do(http.MethodDelete, "/api/v1/admin/products/"+lamp.ID, adminTok, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Product deleted successfully", env.Message)

	code, env = a.do(http.MethodGet, "/api/v1/cart", customerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)
	assert.Equal(t, "Cart not found", env.Message)

	code, env = a.do(http.MethodDelete, "/api/v1/admin/categories/"+lamp.CategoryID, adminTok, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Category deleted successfully", env.Message)

	code, env = a.do(http.MethodGet, "/api/v1/categories/"+lamp.CategoryID+"/products", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "CategoryNotFound", env.Error)
}

func TestProfileAndAdminListings(t *testing.T) {
	a := newAPI(t)
	admin := sqlstoretest.User(t, a.db, user.RoleAdmin)
	customer := sqlstoretest.User(t, a.db, user.RoleUser)
	p := sqlstoretest.Product(t, a.db, "Lamp", "4", 5)

	code, env := a.do(http.MethodGet, "/api/v1/me", a.token(customer), nil)
	require.Equal(t, http.StatusOK, code)
	me := decodeData[httpx.UserResponse](t, env)
	assert.Equal(t, customer.ID, me.ID)
	assert.Equal(t, "USER", me.Role)

	code, env = a.do(http.MethodGet, "/api/v1/me", a.token(admin), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ADMIN", decodeData[httpx.UserResponse](t, env).Role)

	code, env = a.do(http.MethodGet, "/api/v1/admin/users", a.token(admin), nil)
	require.Equal(t, http.StatusOK, code)
	users := decodeData[[]httpx.UserResponse](t, env)
	require.Len(t, users, 1)
	assert.Equal(t, customer.ID, users[0].ID)

	code, env = a.do(http.MethodPost, "/api/v1/cart", a.token(customer), map[string]any{"productId": p.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = a.do(http.MethodGet, "/api/v1/admin/carts", a.token(admin), nil)
	require.Equal(t, http.StatusOK, code)
	carts := decodeData[[]httpx.CartResponse](t, env)
	require.Len(t, carts, 1)
	assert.Equal(t, customer.ID, carts[0].UserID)
	assert.Equal(t, "12.00", carts[0].TotalAmount)
}
