package httpx

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	catalog "github.com/jcmexdev/storefront/internal/catalog-service/domain"
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	q := r.URL.Query()
	products, total, err := h.catalog.ListProducts(r.Context(), catalog.ProductFilter{
		Search:     strings.TrimSpace(q.Get("search")),
		CategoryID: q.Get("categoryId"),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Data:    mapProducts(products),
		Meta:    newMeta(total, page, limit),
	})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", mapProduct(p))
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", mapCategories(categories))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Category created successfully", mapCategory(c))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.CreateProduct(r.Context(), catalog.Product{
		Name:        strings.TrimSpace(req.Name),
		Code:        req.Code,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		Price:       req.Price,
		StockCount:  req.StockCount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Product created successfully", mapProduct(p))
}

// SetStock replaces the stock level of a product.
func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req SetStockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.StockCount == nil {
		writeError(w, r, apperr.New(apperr.KindValidation, "Stock count is required"))
		return
	}
	p, err := h.catalog.SetStock(r.Context(), chi.URLParam(r, "id"), *req.StockCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Stock updated successfully", mapProduct(p))
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Analytics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", mapStats(stats))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), catalog.ProductPatch{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		Price:       req.Price,
		StockCount:  req.StockCount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Product updated successfully", mapProduct(p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Product deleted successfully", nil)
}

// CategoryProducts returns a category with one page of its products.
func (h *Handler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	c, products, total, err := h.catalog.CategoryProducts(r.Context(), chi.URLParam(r, "id"), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Data:    CategoryProductsResponse{Category: mapCategory(c), Products: mapProducts(products)},
		Meta:    newMeta(total, page, limit),
	})
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.catalog.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Category updated successfully", mapCategory(c))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Category deleted successfully", nil)
}
