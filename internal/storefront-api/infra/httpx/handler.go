package httpx

import (
	"context"
	"net/http"
	"strconv"

	cartapp "github.com/jcmexdev/storefront/internal/cart-service/app"
	catalogapp "github.com/jcmexdev/storefront/internal/catalog-service/app"
	orderapp "github.com/jcmexdev/storefront/internal/order-service/app"
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	"github.com/jcmexdev/storefront/internal/pkg/identity"
	userapp "github.com/jcmexdev/storefront/internal/user-service/app"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the storefront HTTP API on top of the domain services.
type Handler struct {
	carts   *cartapp.Service
	orders  *orderapp.Service
	catalog *catalogapp.Service
	users   *userapp.Service
	health  Pinger // nil-safe: /healthz reports ok without a check
}

func NewHandler(
	carts *cartapp.Service,
	orders *orderapp.Service,
	catalog *catalogapp.Service,
	users *userapp.Service,
	health Pinger,
) *Handler {
	return &Handler{
		carts:   carts,
		orders:  orders,
		catalog: catalog,
		users:   users,
		health:  health,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			writeError(w, r, apperr.Unexpected(err, "Database unavailable"))
			return
		}
	}
	writeSuccess(w, http.StatusOK, "ok", nil)
}

// caller returns the identity attached by the auth middleware.
func caller(r *http.Request) string {
	id, _ := identity.FromContext(r.Context())
	return id.UserID
}

// pageParams reads page and limit from the query string.
func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return catalogapp.NormalizePage(page, limit)
}
