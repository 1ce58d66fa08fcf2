package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/storefront/internal/pkg/identity"
	"github.com/jcmexdev/storefront/internal/storefront-api/infra/httpx/middlewares"
)

func NewRouter(handler *Handler, auth *identity.Provider, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", handler.Health)

		r.Get("/products", handler.ListProducts)
		r.Get("/products/{id}", handler.GetProduct)
		r.Get("/categories", handler.ListCategories)
		r.Get("/categories/{id}/products", handler.CategoryProducts)

		r.Group(func(r chi.Router) {
			r.Use(middlewares.Authenticate(auth, writeError))

			r.Get("/me", handler.Me)

			r.Group(func(r chi.Router) {
				r.Use(middlewares.Require(identity.ActionShop, writeError))
				r.Get("/cart", handler.GetCart)
				r.Post("/cart", handler.AddToCart)
				r.Patch("/cart", handler.UpdateCart)
				r.Delete("/cart/{itemId}", handler.DeleteCartItem)
				r.Post("/order", handler.PlaceOrder)
				r.Get("/order-details", handler.OrderDetails)
			})

			r.Route("/admin", func(r chi.Router) {
				r.With(middlewares.Require(identity.ActionManageOrders, writeError)).
					Patch("/order-change-status", handler.ChangeOrderStatus)

				r.Group(func(r chi.Router) {
					r.Use(middlewares.Require(identity.ActionReadAllOrders, writeError))
					r.Get("/orders", handler.ListOrders)
					r.Get("/order/{id}", handler.GetOrder)
					r.Get("/payments", handler.ListPayments)
				})

				r.Group(func(r chi.Router) {
					r.Use(middlewares.Require(identity.ActionManageCatalog, writeError))
					r.Post("/categories", handler.CreateCategory)
					r.Patch("/categories/{id}", handler.UpdateCategory)
					r.Delete("/categories/{id}", handler.DeleteCategory)
					r.Post("/products", handler.CreateProduct)
					r.Patch("/products/{id}", handler.UpdateProduct)
					r.Delete("/products/{id}", handler.DeleteProduct)
					r.Patch("/products/{id}/stock", handler.SetStock)
				})

				r.Group(func(r chi.Router) {
					r.Use(middlewares.Require(identity.ActionReadCustomers, writeError))
					r.Get("/users", handler.ListUsers)
					r.Get("/carts", handler.ListCarts)
				})

				r.With(middlewares.Require(identity.ActionReadAnalytics, writeError)).
					Get("/analytics", handler.Analytics)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
