package httpx

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	cartapp "github.com/jcmexdev/storefront/internal/cart-service/app"
	cart "github.com/jcmexdev/storefront/internal/cart-service/domain"
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
)

// GetCart returns the caller's cart. A missing cart is reported with 200 and
// success=false so clients can render an empty cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetCart(r.Context(), caller(r))
	if apperr.KindOf(err) == apperr.KindCartNotFound {
		writeJSON(w, http.StatusOK, Envelope{Success: false, Message: "Cart not found"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", mapCart(c))
}

// AddToCart adds quantity units of a product, or adjusts the existing line.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ProductID) == "" || req.Quantity == nil {
		writeError(w, r, apperr.New(apperr.KindValidation, "Product ID and quantity are required"))
		return
	}

	res, err := h.carts.AddOrAdjustItem(r.Context(), caller(r), req.ProductID, *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == cart.OutcomeAdded {
		status = http.StatusCreated
	}
	writeSuccess(w, status, cartMessage(res.Outcome), mapCartResult(res))
}

// UpdateCart changes the quantity of a cart line by a signed delta.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Quantity == nil || *req.Quantity == 0 {
		writeError(w, r, apperr.New(apperr.KindValidation, "Quantity change must be a valid number"))
		return
	}
	if strings.TrimSpace(req.CartItemID) == "" {
		writeError(w, r, apperr.New(apperr.KindValidation, "Cart item ID is required"))
		return
	}

	res, err := h.carts.AdjustItem(r.Context(), caller(r), req.CartItemID, *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, cartMessage(res.Outcome), mapCartResult(res))
}

func (h *Handler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	res, err := h.carts.RemoveItem(r.Context(), caller(r), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, cartMessage(res.Outcome), mapCartResult(res))
}

func cartMessage(o cart.Outcome) string {
	switch o {
	case cart.OutcomeAdded:
		return "Product successfully added to cart"
	case cart.OutcomeRemoved:
		return "Cart item deleted successfully"
	default:
		return "Cart item quantity updated successfully"
	}
}

func mapCartResult(res *cartapp.Result) CartMutationResponse {
	resp := CartMutationResponse{Outcome: string(res.Outcome), CartDeleted: res.CartDeleted}
	if res.Item != nil {
		item := mapCartItem(res.Item)
		resp.Item = &item
	}
	return resp
}

// ListCarts returns every open cart for admins.
func (h *Handler) ListCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.carts.ListCarts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", mapCarts(carts))
}
