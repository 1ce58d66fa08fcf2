package app

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	cart "github.com/jcmexdev/storefront/internal/cart-service/domain"
	"github.com/jcmexdev/storefront/internal/order-service/domain"
	"github.com/jcmexdev/storefront/internal/order-service/statuslog"
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	"github.com/jcmexdev/storefront/internal/pkg/cache"
	"github.com/jcmexdev/storefront/internal/pkg/messaging"
	"github.com/jcmexdev/storefront/internal/store"
	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

const (
	shortCodeAttempts = 5
	longCodeAttempts  = 3
	maxCommitAttempts = 3
)

type Service struct {
	store     store.Store
	codes     domain.CodeGenerator
	idem      *idempotencyGuard
	publisher messaging.Publisher
	topics    Topics
	metrics   *orderMetrics
	tracer    trace.Tracer
}

type Option func(*Service)

// WithIdempotency enables replay of PlaceOrder requests carrying a key.
func WithIdempotency(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.idem = &idempotencyGuard{cache: c, ttl: ttl}
		}
	}
}

func WithPublisher(p messaging.Publisher, topics Topics) Option {
	return func(s *Service) {
		s.publisher = p
		s.topics = topics
	}
}

func WithCodeGenerator(g domain.CodeGenerator) Option {
	return func(s *Service) { s.codes = g }
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) { s.metrics = newOrderMetrics(m) }
}

func NewService(s store.Store, opts ...Option) *Service {
	svc := &Service{
		store:     s,
		codes:     domain.RandomCodes{},
		publisher: messaging.LogPublisher{},
		tracer:    otel.Tracer("order-service"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.metrics == nil {
		svc.metrics = newOrderMetrics(otel.Meter("order-service"))
	}
	return svc
}

type PaymentInput struct {
	TransactionID string
	InitiatorID   string
	Amount        decimal.Decimal
}

type PlaceOrderInput struct {
	UserID string
	// Recipient overrides the delivery details stored on the user.
	Recipient      domain.Recipient
	Payment        *PaymentInput
	IdempotencyKey string
}

type PlaceOrderResult struct {
	Order *domain.Order
	// Replayed is true when the order was created by an earlier request with
	// the same idempotency key.
	Replayed bool
}

// PlaceOrder turns the user's cart into an order. The order, its items, the
// stock decrement and the emptied cart are committed together or not at all.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperr.KindOf(err)))
			s.metrics.orderRejected(ctx, err)
		}
		span.End()
	}()

	u, err := s.activeUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	recipient, err := resolveRecipient(u, in.Recipient)
	if err != nil {
		return nil, err
	}
	if in.Payment != nil {
		if strings.TrimSpace(in.Payment.TransactionID) == "" {
			return nil, apperr.New(apperr.KindValidation, "Transaction ID is required")
		}
		if in.Payment.Amount.IsNegative() {
			return nil, apperr.New(apperr.KindValidation, "Payment amount cannot be negative")
		}
	}

	c, err := s.idem.claim(ctx, u.ID, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if c.orderID != "" {
		o, err := s.store.GetOrder(ctx, c.orderID)
		if err != nil {
			return nil, apperr.Unexpected(err, "Error loading the order")
		}
		slog.InfoContext(ctx, "order replayed", "order_id", o.ID, "user_id", u.ID)
		return &PlaceOrderResult{Order: o, Replayed: true}, nil
	}

	o, err := s.placeOrder(ctx, u, recipient, in.Payment)
	if err != nil {
		s.idem.release(ctx, c)
		return nil, err
	}
	s.idem.complete(ctx, c, o.ID)

	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.code", o.Code))
	slog.InfoContext(ctx, "order placed", "order_id", o.ID, "code", o.Code, "user_id", u.ID,
		"total", o.TotalAmount.StringFixed(2), "items", len(o.Items))
	s.metrics.orderPlaced(ctx, o.TotalQuantity())
	s.publish(ctx, s.topics.OrderPlaced, o.ID, newOrderPlaced(o))

	return &PlaceOrderResult{Order: o}, nil
}

func (s *Service) placeOrder(ctx context.Context, u *user.User, recipient domain.Recipient, payment *PaymentInput) (*domain.Order, error) {
	c, err := s.store.GetCartByUser(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && c.IsEmpty()) {
		return nil, apperr.New(apperr.KindEmptyCart, "No items found in cart")
	}
	if err != nil {
		return nil, apperr.Unexpected(err, "Error loading the cart")
	}

	// Fail early, before taking any lock. The check is repeated under lock.
	items := make([]domain.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Product.StockCount < it.Quantity {
			return nil, apperr.New(apperr.KindInsufficientStock,
				"Insufficient stock for product %s. Available: %d, Requested: %d",
				it.Product.Name, it.Product.StockCount, it.Quantity)
		}
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.Product.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.Product.Price,
		})
	}

	for attempt := 1; ; attempt++ {
		o := &domain.Order{
			UserID:      u.ID,
			Items:       slices.Clone(items),
			TotalAmount: domain.SumItems(items),
			Status:      domain.StatusPending,
			Recipient:   recipient,
		}
		err = s.store.InTx(ctx, func(tx store.Tx) error {
			return s.commitOrder(ctx, tx, c, o, payment)
		})
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt == maxCommitAttempts {
			break
		}
		slog.WarnContext(ctx, "order code collided, retrying", "attempt", attempt, "error", err)
	}

	switch {
	case errors.Is(err, store.ErrStale):
		return nil, apperr.Wrap(err, apperr.KindConflict, "Cart changed while placing the order")
	case errors.Is(err, store.ErrConflict):
		return nil, apperr.Wrap(err, apperr.KindConflict, "Could not allocate an order code")
	}
	return nil, apperr.Unexpected(err, "Error creating the order")
}

func (s *Service) commitOrder(ctx context.Context, tx store.Tx, c *cart.Cart, o *domain.Order, payment *PaymentInput) error {
	if err := tx.ClaimCart(ctx, c.ID, c.Version); err != nil {
		return err
	}

	code, err := s.allocateCode(ctx, tx)
	if err != nil {
		return err
	}
	o.Code = code

	if payment != nil {
		p := &domain.Payment{
			TransactionID: payment.TransactionID,
			InitiatorID:   payment.InitiatorID,
			Amount:        payment.Amount,
			Succeeded:     true,
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		o.PaymentID = p.ID
	}

	if err := tx.InsertOrder(ctx, o); err != nil {
		return err
	}
	if err := reserveStock(ctx, tx, o.Items); err != nil {
		return err
	}
	if err := tx.ClearCart(ctx, c.ID); err != nil {
		return err
	}
	return tx.AppendStatusLog(ctx, statuslog.NewEntry(ctx, o.ID, "", string(o.Status), o.UserID))
}

// allocateCode picks a code not used by any committed order. The UNIQUE
// constraint still catches a race with a concurrent transaction.
func (s *Service) allocateCode(ctx context.Context, tx store.Tx) (string, error) {
	for i := 0; i < shortCodeAttempts+longCodeAttempts; i++ {
		code := s.codes.Short()
		if i >= shortCodeAttempts {
			code = s.codes.Long()
		}
		exists, err := tx.OrderCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", store.ErrConflict
}

// StatusChange reports what UpdateOrderStatus did.
type StatusChange struct {
	Order     *domain.Order
	From      domain.OrderStatus
	To        domain.OrderStatus
	Changed   bool
	Restocked bool
}

// UpdateOrderStatus moves an order along the status table. Canceling returns
// the reserved stock in the same transaction.
func (s *Service) UpdateOrderStatus(ctx context.Context, actorID, orderID, status string) (*StatusChange, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", status),
	))
	defer span.End()

	next, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	change := &StatusChange{To: next}
	released := 0
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.KindOrderNotFound, "Order not found")
		}
		if err != nil {
			return err
		}
		change.Order, change.From = o, o.Status

		if o.Status == next {
			return nil
		}
		if !o.Status.CanTransitionTo(next) {
			return apperr.New(apperr.KindInvalidTransition,
				"Cannot change order status from %s to %s", o.Status, next)
		}
		if next == domain.StatusCanceled {
			if released, err = releaseStock(ctx, tx, o.Items); err != nil {
				return err
			}
			change.Restocked = true
		}
		if err := tx.UpdateOrderStatus(ctx, o.ID, next); err != nil {
			return err
		}
		o.Status = next
		change.Changed = true
		return tx.AppendStatusLog(ctx, statuslog.NewEntry(ctx, o.ID, string(change.From), string(next), actorID))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		return nil, apperr.Unexpected(err, "Error updating the order status")
	}
	if !change.Changed {
		return change, nil
	}

	slog.InfoContext(ctx, "order status changed", "order_id", orderID, "from", change.From, "to", next,
		"actor", actorID, "restocked_units", released)
	s.metrics.statusChanged(ctx, string(next), released)
	s.publish(ctx, s.topics.OrderStatusChanged, orderID, OrderStatusChanged{
		OrderID:   orderID,
		Code:      change.Order.Code,
		From:      string(change.From),
		To:        string(next),
		Actor:     actorID,
		Restocked: change.Restocked,
		ChangedAt: time.Now().UTC(),
	})
	return change, nil
}

// OrderDetails is an order with its status history.
type OrderDetails struct {
	Order   *domain.Order
	History []statuslog.Entry
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*OrderDetails, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindOrderNotFound, "Order not found")
	}
	if err != nil {
		return nil, apperr.Unexpected(err, "Error loading the order")
	}
	history, err := s.store.ListStatusLog(ctx, orderID)
	if err != nil {
		return nil, apperr.Unexpected(err, "Error loading the order history")
	}
	return &OrderDetails{Order: o, History: history}, nil
}

func (s *Service) ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, int, error) {
	orders, total, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return nil, 0, apperr.Unexpected(err, "Error listing orders")
	}
	return orders, total, nil
}

func (s *Service) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if _, err := s.activeUser(ctx, userID); err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Unexpected(err, "Error listing orders")
	}
	return orders, nil
}

func (s *Service) ListPayments(ctx context.Context, f store.OrderFilter) ([]domain.Payment, int, error) {
	payments, total, err := s.store.ListPayments(ctx, f)
	if err != nil {
		return nil, 0, apperr.Unexpected(err, "Error listing payments")
	}
	return payments, total, nil
}

func (s *Service) activeUser(ctx context.Context, userID string) (*user.User, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindAuthenticationRequired, "User must be logged in")
	}
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindUserNotFound, "User not found")
	}
	if err != nil {
		return nil, apperr.Unexpected(err, "Error loading the user")
	}
	if u.IsBlocked {
		return nil, apperr.New(apperr.KindUnauthorized, "User is blocked")
	}
	return u, nil
}

func resolveRecipient(u *user.User, in domain.Recipient) (domain.Recipient, error) {
	if strings.TrimSpace(in.Address) != "" {
		if in.Name == "" {
			in.Name = u.Name
		}
		if in.Phone == "" {
			in.Phone = u.Phone
		}
		return in, nil
	}
	if !u.HasDeliveryDetails() {
		return domain.Recipient{}, apperr.New(apperr.KindValidation, "No address found for the user")
	}
	return domain.Recipient{Name: u.Name, Phone: u.Phone, Address: u.Address}, nil
}
