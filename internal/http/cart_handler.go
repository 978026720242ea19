package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog/domain"
	"github.com/fjod/go_storefront/internal/money"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodySize = 1 << 20 // 1MB

type CartHandler struct {
	catalog  Catalog
	registry *cart.Registry
}

func NewCartHandler(catalog Catalog, registry *cart.Registry) *CartHandler {
	return &CartHandler{
		catalog:  catalog,
		registry: registry,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Slug      string `json:"slug"`
	Quantity  *int   `json:"quantity"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int   `json:"quantity"`
	Color    string `json:"color"`
	Size     string `json:"size"`
}

type CartItemResponse struct {
	ProductID         string `json:"product_id"`
	Name              string `json:"name"`
	Slug              string `json:"slug"`
	Image             string `json:"image"`
	UnitPrice         int64  `json:"unit_price"`
	Quantity          int    `json:"quantity"`
	Color             string `json:"color,omitempty"`
	Size              string `json:"size,omitempty"`
	Subtotal          int64  `json:"subtotal"`
	FormattedSubtotal string `json:"formatted_subtotal"`
}

type CartResponse struct {
	Items          []CartItemResponse `json:"items"`
	TotalItems     int                `json:"total_items"`
	TotalPrice     int64              `json:"total_price"`
	Currency       string             `json:"currency,omitempty"`
	FormattedTotal string             `json:"formatted_total"`
}

// validationError is a 400 with a machine-readable code.
type validationError struct {
	code    string
	message string
}

func (e *validationError) Error() string { return e.message }

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, toCartResponse(h.session(r).Cart))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	var (
		p   *domain.Product
		err error
	)
	switch {
	case strings.TrimSpace(req.ProductID) != "":
		p, err = h.catalog.GetByID(r.Context(), strings.TrimSpace(req.ProductID))
	case strings.TrimSpace(req.Slug) != "":
		p, err = h.catalog.GetBySlug(r.Context(), strings.TrimSpace(req.Slug))
	default:
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id or slug is required")
		return
	}
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	store := h.session(r).Cart
	if err := validateLine(p, quantity, req.Color, req.Size); err != nil {
		respondValidation(w, err)
		return
	}
	if c := store.Currency(); c != "" && !strings.EqualFold(c, p.Currency) {
		respondError(w, http.StatusBadRequest, "currency_mismatch",
			fmt.Sprintf("cart is priced in %s, product is priced in %s", c, p.Currency))
		return
	}

	store.Add(*p, quantity, req.Color, req.Size)
	respondJSON(w, http.StatusCreated, toCartResponse(store))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if strings.TrimSpace(productID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	store := h.session(r).Cart
	if *req.Quantity > 0 {
		p, err := h.catalog.GetByID(r.Context(), productID)
		if err != nil {
			handleServiceError(r.Context(), w, err)
			return
		}
		if limit := p.MaxQuantity(); *req.Quantity > limit {
			respondError(w, http.StatusBadRequest, "invalid_quantity",
				fmt.Sprintf("quantity must be between 1 and %d", limit))
			return
		}
	}

	store.UpdateQuantity(productID, *req.Quantity, req.Color, req.Size)
	respondJSON(w, http.StatusOK, toCartResponse(store))
}

// DELETE /api/v1/cart/items/{product_id}?color=&size=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if strings.TrimSpace(productID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	q := r.URL.Query()
	store := h.session(r).Cart
	store.Remove(productID, q.Get("color"), q.Get("size"))
	respondJSON(w, http.StatusOK, toCartResponse(store))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store := h.session(r).Cart
	store.Clear()
	respondJSON(w, http.StatusOK, toCartResponse(store))
}

func (h *CartHandler) session(r *http.Request) *cart.Session {
	return h.registry.Session(getSessionID(r.Context()))
}

func validateLine(p *domain.Product, quantity int, color, size string) error {
	if limit := p.MaxQuantity(); quantity < 1 || quantity > limit {
		return &validationError{"invalid_quantity", fmt.Sprintf("quantity must be between 1 and %d", limit)}
	}
	if !p.HasColor(color) {
		return &validationError{"invalid_color", fmt.Sprintf("color %q is not available for %s", color, p.Name)}
	}
	if !p.HasSize(size) {
		return &validationError{"invalid_size", fmt.Sprintf("size %q is not available for %s", size, p.Name)}
	}
	return nil
}

func respondValidation(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		respondError(w, http.StatusBadRequest, ve.code, ve.message)
		return
	}
	respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
}

// decodeJSON reads a JSON body. An empty body decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func toCartResponse(s *cart.Store) CartResponse {
	items := s.Items()
	resp := CartResponse{
		Items:    make([]CartItemResponse, len(items)),
		Currency: s.Currency(),
	}
	for i, li := range items {
		resp.Items[i] = CartItemResponse{
			ProductID:         li.Product.ID,
			Name:              li.Product.Name,
			Slug:              li.Product.Slug,
			Image:             li.Product.Image,
			UnitPrice:         li.Product.Price,
			Quantity:          li.Quantity,
			Color:             li.SelectedColor,
			Size:              li.SelectedSize,
			Subtotal:          li.Subtotal(),
			FormattedSubtotal: money.Format(li.Subtotal(), li.Product.Currency),
		}
		resp.TotalItems += li.Quantity
		resp.TotalPrice += li.Subtotal()
	}
	resp.FormattedTotal = money.Format(resp.TotalPrice, resp.Currency)
	return resp
}
