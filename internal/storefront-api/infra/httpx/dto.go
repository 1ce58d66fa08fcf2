package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	cart "github.com/jcmexdev/storefront/internal/cart-service/domain"
	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
	order "github.com/jcmexdev/storefront/internal/order-service/domain"
	"github.com/jcmexdev/storefront/internal/order-service/statuslog"
	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

// Envelope is the body of every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type Meta struct {
	Total       int `json:"total"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

func newMeta(total, page, limit int) *Meta {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Meta{Total: total, CurrentPage: page, TotalPages: pages}
}

// Requests

type AddToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type UpdateCartRequest struct {
	CartItemID string `json:"cartItemId"`
	Quantity   *int   `json:"quantity"`
}

type PlaceOrderRequest struct {
	Name          string           `json:"name"`
	Phone         string           `json:"phone"`
	Address       string           `json:"address"`
	TransactionID string           `json:"transactionId"`
	InitiatorID   string           `json:"initiatorId"`
	Amount        *decimal.Decimal `json:"amount"`
}

type ChangeStatusRequest struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	ImageURL    string          `json:"imageUrl"`
	CategoryID  string          `json:"categoryId"`
	Price       decimal.Decimal `json:"price"`
	StockCount  int             `json:"stockCount"`
}

// UpdateProductRequest is a partial update. Absent fields are left unchanged.
type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Code        *string          `json:"code"`
	Description *string          `json:"description"`
	ImageURL    *string          `json:"imageUrl"`
	CategoryID  *string          `json:"categoryId"`
	Price       *decimal.Decimal `json:"price"`
	StockCount  *int             `json:"stockCount"`
}

type SetStockRequest struct {
	StockCount *int `json:"stockCount"`
}

// Responses. Money is rendered as a string with two decimals.

type ProductResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CategoryID  string    `json:"categoryId"`
	Price       string    `json:"price"`
	StockCount  int       `json:"stockCount"`
	OutOfStock  bool      `json:"outOfStock"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CategoryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type CategoryProductsResponse struct {
	Category CategoryResponse  `json:"category"`
	Products []ProductResponse `json:"products"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	IsBlocked bool      `json:"isBlocked"`
	CreatedAt time.Time `json:"createdAt"`
}

type CartResponse struct {
	ID          string             `json:"id"`
	UserID      string             `json:"userId"`
	TotalAmount string             `json:"totalAmount"`
	Items       []CartItemResponse `json:"items"`
}

type CartItemResponse struct {
	ID         string           `json:"id"`
	ProductID  string           `json:"productId"`
	Quantity   int              `json:"quantity"`
	TotalPrice string           `json:"totalPrice"`
	Product    *ProductResponse `json:"product,omitempty"`
}

type CartMutationResponse struct {
	Outcome     string            `json:"outcome"`
	Item        *CartItemResponse `json:"item,omitempty"`
	CartDeleted bool              `json:"cartDeleted,omitempty"`
}

type OrderResponse struct {
	ID            string              `json:"id"`
	Code          string              `json:"orderId"`
	UserID        string              `json:"userId"`
	Status        string              `json:"status"`
	TotalAmount   string              `json:"totalAmount"`
	TotalQuantity int                 `json:"totalQuantity"`
	Name          string              `json:"name,omitempty"`
	Phone         string              `json:"phone,omitempty"`
	Address       string              `json:"address,omitempty"`
	PaymentID     string              `json:"paymentId,omitempty"`
	Items         []OrderItemResponse `json:"items"`
	History       []StatusLogResponse `json:"history,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type OrderItemResponse struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Subtotal    string `json:"subtotal"`
}

type StatusLogResponse struct {
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Actor     string    `json:"actor,omitempty"`
	TraceID   string    `json:"traceId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type StatusChangeResponse struct {
	Order     OrderResponse `json:"order"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Changed   bool          `json:"changed"`
	Restocked bool          `json:"restocked"`
}

type PaymentResponse struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	InitiatorID   string    `json:"initiatorId"`
	Amount        string    `json:"amount"`
	Succeeded     bool      `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

type StatsResponse struct {
	Products        int               `json:"products"`
	Categories      int               `json:"categories"`
	Users           int               `json:"users"`
	Orders          int               `json:"orders"`
	OutOfStockCount int               `json:"outOfStockCount"`
	OutOfStockItems []ProductResponse `json:"outOfStockItems"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func mapProduct(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Code:        p.Code,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
		Price:       money(p.Price),
		StockCount:  p.StockCount,
		OutOfStock:  p.OutOfStock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func mapProducts(ps []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, len(ps))
	for i := range ps {
		out[i] = mapProduct(&ps[i])
	}
	return out
}

func mapCategory(c *catalog.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}

func mapCategories(cs []catalog.Category) []CategoryResponse {
	out := make([]CategoryResponse, len(cs))
	for i := range cs {
		out[i] = mapCategory(&cs[i])
	}
	return out
}

func mapCartItem(it *cart.Item) CartItemResponse {
	resp := CartItemResponse{
		ID:         it.ID,
		ProductID:  it.ProductID,
		Quantity:   it.Quantity,
		TotalPrice: money(it.TotalPrice),
	}
	if it.Product != nil {
		p := mapProduct(it.Product)
		resp.Product = &p
	}
	return resp
}

func mapCart(c *cart.Cart) CartResponse {
	items := make([]CartItemResponse, len(c.Items))
	for i := range c.Items {
		items[i] = mapCartItem(&c.Items[i])
	}
	return CartResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		TotalAmount: money(c.TotalAmount),
		Items:       items,
	}
}

func mapCarts(cs []cart.Cart) []CartResponse {
	out := make([]CartResponse, len(cs))
	for i := range cs {
		out[i] = mapCart(&cs[i])
	}
	return out
}

func mapUser(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Phone:     u.Phone,
		Address:   u.Address,
		IsBlocked: u.IsBlocked,
		CreatedAt: u.CreatedAt,
	}
}

func mapUsers(us []user.User) []UserResponse {
	out := make([]UserResponse, len(us))
	for i := range us {
		out[i] = mapUser(&us[i])
	}
	return out
}

func mapOrder(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   money(it.UnitPrice),
			Subtotal:    money(it.Subtotal()),
		}
	}
	return OrderResponse{
		ID:            o.ID,
		Code:          o.Code,
		UserID:        o.UserID,
		Status:        string(o.Status),
		TotalAmount:   money(o.TotalAmount),
		TotalQuantity: o.TotalQuantity(),
		Name:          o.Recipient.Name,
		Phone:         o.Recipient.Phone,
		Address:       o.Recipient.Address,
		PaymentID:     o.PaymentID,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func mapOrders(orders []order.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = mapOrder(&orders[i])
	}
	return out
}

func mapHistory(entries []statuslog.Entry) []StatusLogResponse {
	out := make([]StatusLogResponse, len(entries))
	for i, e := range entries {
		out[i] = StatusLogResponse{
			From:      e.FromStatus,
			To:        e.ToStatus,
			Actor:     e.Actor,
			TraceID:   e.TraceID,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}

func mapPayments(ps []order.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(ps))
	for i, p := range ps {
		out[i] = PaymentResponse{
			ID:            p.ID,
			TransactionID: p.TransactionID,
			InitiatorID:   p.InitiatorID,
			Amount:        money(p.Amount),
			Succeeded:     p.Succeeded,
			CreatedAt:     p.CreatedAt,
		}
	}
	return out
}

func mapStats(s *catalog.Stats) StatsResponse {
	return StatsResponse{
		Products:        s.Products,
		Categories:      s.Categories,
		Users:           s.Users,
		Orders:          s.Orders,
		OutOfStockCount: s.OutOfStockCount,
		OutOfStockItems: mapProducts(s.OutOfStockItems),
	}
}
