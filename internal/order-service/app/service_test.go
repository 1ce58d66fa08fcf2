package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	cartapp "github.com/jcmexdev/storefront/internal/cart-service/app"
	catalogapp "github.com/jcmexdev/storefront/internal/catalog-service/app"
	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
	"github.com/jcmexdev/storefront/internal/order-service/app"
	"github.com/jcmexdev/storefront/internal/order-service/domain"
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	"github.com/jcmexdev/storefront/internal/pkg/cache"
	"github.com/jcmexdev/storefront/internal/pkg/sqlstore"
	"github.com/jcmexdev/storefront/internal/pkg/sqlstore/sqlstoretest"
	"github.com/jcmexdev/storefront/internal/store"
	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

type recordedEvent struct {
	topic, key string
	payload    []byte
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{topic: topic, key: key, payload: b})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

var testTopics = app.Topics{OrderPlaced: "orders.placed", OrderStatusChanged: "orders.status-changed"}

type fixture struct {
	db    *sqlstore.DB
	carts *cartapp.Service
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return fixtureOn(sqlstoretest.Open(t))
}

func fixtureOn(db *sqlstore.DB) *fixture {
	return &fixture{
		db:    db,
		carts: cartapp.NewService(db),
		pub:   &recordingPublisher{},
	}
}

func (f *fixture) service(opts ...app.Option) *app.Service {
	opts = append([]app.Option{app.WithPublisher(f.pub, testTopics)}, opts...)
	return app.NewService(f.db, opts...)
}

func (f *fixture) addToCart(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	_, err := f.carts.AddOrAdjustItem(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, productID string) *catalog.Product {
	t.Helper()
	p, err := f.db.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "P", "100", 5)
	f.addToCart(t, u.ID, p.ID, 2)

	res, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
	require.NoError(t, err)
	o := res.Order
	assert.False(t, res.Replayed)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(200)))
	assert.Regexp(t, `^[A-Z][1-9][0-9]{5}$`, o.Code)
	assert.Equal(t, u.Address, o.Recipient.Address)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "P", o.Items[0].ProductName)
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.NewFromInt(100)))

	after := f.stock(t, p.ID)
	assert.Equal(t, 3, after.StockCount)
	assert.False(t, after.OutOfStock)

	c, err := f.db.GetCartByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.TotalAmount.IsZero())

	details, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, details.History, 1)
	assert.Equal(t, "", details.History[0].FromStatus)
	assert.Equal(t, "PENDING", details.History[0].ToStatus)

	assert.Equal(t, []string{"orders.placed"}, f.pub.topics())
}

func TestPlaceOrderSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "P", "10", 5)
	f.addToCart(t, u.ID, p.ID, 1)

	res, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
	require.NoError(t, err)

	price := decimal.NewFromInt(99)
	_, err = catalogapp.NewService(f.db).UpdateProduct(ctx, p.ID, catalog.ProductPatch{Price: &price})
	require.NoError(t, err)

	details, err := svc.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.True(t, details.Order.TotalAmount.Equal(decimal.NewFromInt(10)))
	assert.True(t, domain.SumItems(details.Order.Items).Equal(decimal.NewFromInt(10)))
}

func TestPlaceOrderWithPaymentAndRecipient(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "P", "5", 5)
	f.addToCart(t, u.ID, p.ID, 2)

	res, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{
		UserID:    u.ID,
		Recipient: domain.Recipient{Address: "42 Elsewhere"},
		Payment:   &app.PaymentInput{TransactionID: "tx-9", InitiatorID: "gw", Amount: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, "42 Elsewhere", res.Order.Recipient.Address)
	assert.Equal(t, u.Name, res.Order.Recipient.Name)
	assert.NotEmpty(t, res.Order.PaymentID)

	payments, total, err := svc.ListPayments(ctx, store.OrderFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, res.Order.PaymentID, payments[0].ID)
}

func TestPlaceOrderRejections(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)

	_, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{})
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)

	_, err = svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: "ghost"})
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)

	_, err = svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	_, err = f.db.DB().ExecContext(ctx, `UPDATE users SET address = '' WHERE id = ?`, u.ID)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "No address found for the user", apperr.MessageOf(err))
}

func TestPlaceOrderPreCheckNamesProduct(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "Lamp", "1", 4)
	f.addToCart(t, u.ID, p.ID, 4)

	_, err := catalogapp.NewService(f.db).SetStock(ctx, p.ID, 1)
	require.NoError(t, err)

	_, err = svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, "Insufficient stock for product Lamp. Available: 1, Requested: 4", apperr.MessageOf(err))
}

// staleStockStore makes every locked product look sold out, as if another
// order committed between the pre-check and the lock.
type staleStockStore struct{ store.Store }

func (s staleStockStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.InTx(ctx, func(tx store.Tx) error { return fn(staleStockTx{tx}) })
}

type staleStockTx struct{ store.Tx }

func (t staleStockTx) LockProduct(ctx context.Context, id string) (*catalog.Product, error) {
	p, err := t.Tx.LockProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	p.StockCount, p.OutOfStock = 0, true
	return p, nil
}

func TestLateStockFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	a := sqlstoretest.Product(t, f.db, "A", "3", 5)
	b := sqlstoretest.Product(t, f.db, "B", "4", 5)
	f.addToCart(t, u.ID, a.ID, 2)
	f.addToCart(t, u.ID, b.ID, 1)
	before, err := f.db.GetCartByUser(ctx, u.ID)
	require.NoError(t, err)

	svc := app.NewService(staleStockStore{f.db}, app.WithPublisher(f.pub, testTopics))
	_, err = svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID, Payment: &app.PaymentInput{TransactionID: "tx"}})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	orders, total, err := f.db.ListOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
	_, paymentCount, err := f.db.ListPayments(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, paymentCount)

	assert.Equal(t, 5, f.stock(t, a.ID).StockCount)
	assert.Equal(t, 5, f.stock(t, b.ID).StockCount)

	after, err := f.db.GetCartByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, after.Items, 2)
	assert.True(t, after.TotalAmount.Equal(before.TotalAmount))
	assert.Empty(t, f.pub.topics())
}

// Runs on PostgreSQL too when TEST_DATABASE_URL is set. There the pool has
// several connections and only the product row locks keep stock consistent.
func TestConcurrentOrdersNeverOversell(t *testing.T) {
	sqlstoretest.ForEachDialect(t, func(t *testing.T, db *sqlstore.DB) {
		concurrentOrdersNeverOversell(t, fixtureOn(db))
	})
}

func concurrentOrdersNeverOversell(t *testing.T, f *fixture) {
	svc := f.service()
	ctx := context.Background()
	p := sqlstoretest.Product(t, f.db, "P", "10", 5)
	users := make([]*user.User, 6)
	for i := range users {
		users[i] = sqlstoretest.User(t, f.db, user.RoleUser)
		f.addToCart(t, users[i].ID, p.ID, 2)
	}

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	errs := make([]error, len(users))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
		}()
	}
	close(start)
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.KindOf(err) == apperr.KindInsufficientStock:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 4, rejected)

	after := f.stock(t, p.ID)
	assert.Equal(t, 1, after.StockCount)
	assert.False(t, after.OutOfStock)
}

func TestDoubleSubmitPlacesOneOrder(t *testing.T) {
	sqlstoretest.ForEachDialect(t, func(t *testing.T, db *sqlstore.DB) {
		doubleSubmitPlacesOneOrder(t, fixtureOn(db))
	})
}

func doubleSubmitPlacesOneOrder(t *testing.T, f *fixture) {
	svc := f.service()
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "P", "10", 10)
	f.addToCart(t, u.ID, p.ID, 2)

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		kind := apperr.KindOf(err)
		assert.Contains(t, []apperr.Kind{apperr.KindEmptyCart, apperr.KindConflict}, kind, "%v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 8, f.stock(t, p.ID).StockCount)
}

func TestCancelRestocksItems(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()
	admin := sqlstoretest.User(t, f.db, user.RoleAdmin)
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	a := sqlstoretest.Product(t, f.db, "A", "1", 3)
	b := sqlstoretest.Product(t, f.db, "B", "1", 1)
	f.addToCart(t, u.ID, a.ID, 3)
	f.addToCart(t, u.ID, b.ID, 1)

	res, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
	require.NoError(t, err)
	assert.True(t, f.stock(t, a.ID).OutOfStock)
	assert.True(t, f.stock(t, b.ID).OutOfStock)

	change, err := svc.UpdateOrderStatus(ctx, admin.ID, res.Order.ID, "canceled")
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.True(t, change.Restocked)
	assert.Equal(t, domain.StatusPending, change.From)

	pa, pb := f.stock(t, a.ID), f.stock(t, b.ID)
	assert.Equal(t, 3, pa.StockCount)
	assert.False(t, pa.OutOfStock)
	assert.Equal(t, 1, pb.StockCount)
	assert.False(t, pb.OutOfStock)

	// Canceling again changes nothing.
	change, err = svc.UpdateOrderStatus(ctx, admin.ID, res.Order.ID, "CANCELED")
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.Equal(t, 3, f.stock(t, a.ID).StockCount)

	details, err := svc.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Len(t, details.History, 2)
	assert.Equal(t, "PENDING", details.History[1].FromStatus)
	assert.Equal(t, "CANCELED", details.History[1].ToStatus)
	assert.Equal(t, admin.ID, details.History[1].Actor)

	assert.Equal(t, []string{"orders.placed", "orders.status-changed"}, f.pub.topics())
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "P", "1", 10)

	place := func() string {
		f.addToCart(t, u.ID, p.ID, 1)
		res, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
		require.NoError(t, err)
		return res.Order.ID
	}

	_, err := svc.UpdateOrderStatus(ctx, "admin", "missing", "DISPATCHED")
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
	_, err = svc.UpdateOrderStatus(ctx, "admin", "missing", "SHIPPED")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)

	id := place()
	_, err = svc.UpdateOrderStatus(ctx, "admin", id, "COMPLETED")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	for _, next := range []string{"DISPATCHED", "COMPLETED"} {
		change, err := svc.UpdateOrderStatus(ctx, "admin", id, next)
		require.NoError(t, err)
		assert.False(t, change.Restocked)
	}
	for _, next := range []string{"PENDING", "DISPATCHED", "CANCELED"} {
		_, err = svc.UpdateOrderStatus(ctx, "admin", id, next)
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition, next)
	}
	assert.Equal(t, 9, f.stock(t, p.ID).StockCount)

	id = place()
	_, err = svc.UpdateOrderStatus(ctx, "admin", id, "DISPATCHED")
	require.NoError(t, err)
	change, err := svc.UpdateOrderStatus(ctx, "admin", id, "CANCELED")
	require.NoError(t, err)
	assert.True(t, change.Restocked)
	_, err = svc.UpdateOrderStatus(ctx, "admin", id, "DISPATCHED")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, 9, f.stock(t, p.ID).StockCount)
}

type fixedCodes struct{ short, long string }

func (c fixedCodes) Short() string { return c.short }
func (c fixedCodes) Long() string  { return c.long }

func TestOrderCodeFallsBackToLongForm(t *testing.T) {
	f := newFixture(t)
	svc := f.service(app.WithCodeGenerator(fixedCodes{short: "A111111", long: "ZZ00000001"}))
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "P", "1", 10)

	codes := []string{}
	for range 3 {
		f.addToCart(t, u.ID, p.ID, 1)
		res, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
		if err != nil {
			assert.ErrorIs(t, err, apperr.ErrConflict)
			break
		}
		codes = append(codes, res.Order.Code)
	}
	assert.Equal(t, []string{"A111111", "ZZ00000001"}, codes)
	assert.Equal(t, 8, f.stock(t, p.ID).StockCount)
}

func TestIdempotencyKeyReplaysOrder(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "storefront")
	t.Cleanup(func() { _ = c.Close() })
	svc := f.service(app.WithIdempotency(c, time.Hour))
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "P", "1", 10)

	// A failed attempt releases the key.
	_, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID, IdempotencyKey: "k1"})
	require.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.False(t, mr.Exists("storefront:place-order:"+u.ID+":k1"))

	f.addToCart(t, u.ID, p.ID, 2)
	first, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
	assert.Equal(t, 8, f.stock(t, p.ID).StockCount)

	require.NoError(t, mr.Set("storefront:place-order:"+u.ID+":k2", "pending"))
	_, err = svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID, IdempotencyKey: "k2"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestIdempotencyFailsOpenWhenRedisIsDown(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), "storefront")
	t.Cleanup(func() { _ = c.Close() })
	svc := f.service(app.WithIdempotency(c, time.Hour))
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "P", "1", 10)
	f.addToCart(t, u.ID, p.ID, 1)

	mr.Close()
	res, err := svc.PlaceOrder(context.Background(), app.PlaceOrderInput{UserID: u.ID, IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Order.ID)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()
	u := sqlstoretest.User(t, f.db, user.RoleUser)
	other := sqlstoretest.User(t, f.db, user.RoleUser)
	p := sqlstoretest.Product(t, f.db, "P", "1", 10)

	f.addToCart(t, u.ID, p.ID, 1)
	first, err := svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: u.ID})
	require.NoError(t, err)
	f.addToCart(t, other.ID, p.ID, 2)
	_, err = svc.PlaceOrder(ctx, app.PlaceOrderInput{UserID: other.ID})
	require.NoError(t, err)

	mine, err := svc.ListUserOrders(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.Order.ID, mine[0].ID)

	all, total, err := svc.ListOrders(ctx, store.OrderFilter{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 1)

	found, total, err := svc.ListOrders(ctx, store.OrderFilter{Search: first.Order.Code, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, first.Order.ID, found[0].ID)
}
