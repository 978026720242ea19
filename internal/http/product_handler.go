package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/fjod/go_storefront/internal/catalog/domain"
	catalogsvc "github.com/fjod/go_storefront/internal/catalog/service"
	"github.com/fjod/go_storefront/internal/money"
	"github.com/go-chi/chi/v5"
)

// Catalog is the read side of the product catalog used by the handlers.
type Catalog interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, category string) ([]*domain.Product, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	Related(ctx context.Context, p *domain.Product, limit int) ([]*domain.Product, error)
}

type ProductHandler struct {
	catalog Catalog
}

func NewProductHandler(catalog Catalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

type ProductResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Price          int64    `json:"price"`
	FormattedPrice string   `json:"formatted_price"`
	Currency       string   `json:"currency"`
	Image          string   `json:"image"`
	Images         []string `json:"images"`
	Category       string   `json:"category"`
	Slug           string   `json:"slug"`
	Colors         []string `json:"colors,omitempty"`
	Sizes          []string `json:"sizes,omitempty"`
	Stock          *int     `json:"stock,omitempty"`
	MaxQuantity    int      `json:"max_quantity"`
}

type ProductsResponse struct {
	Category string            `json:"category"`
	Products []ProductResponse `json:"products"`
}

type ProductDetailResponse struct {
	Product ProductResponse   `json:"product"`
	Related []ProductResponse `json:"related"`
}

type HomeResponse struct {
	Categories []domain.Category `json:"categories"`
	Category   string            `json:"category"`
	Products   []ProductResponse `json:"products"`
}

// GET /
func (h *ProductHandler) Home(w http.ResponseWriter, r *http.Request) {
	category := selectedCategory(r)
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}
	products, err := h.catalog.List(r.Context(), category)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	all := append([]domain.Category{{Name: "All", Slug: "all"}}, categories...)
	respondJSON(w, http.StatusOK, HomeResponse{
		Categories: all,
		Category:   category,
		Products:   toProductResponses(products),
	})
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	category := selectedCategory(r)
	products, err := h.catalog.List(r.Context(), category)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductsResponse{Category: category, Products: toProductResponses(products)})
}

// GET /api/v1/products/{slug}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	p, err := h.catalog.GetBySlug(r.Context(), slug)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}
	related, err := h.catalog.Related(r.Context(), p, catalogsvc.RelatedLimit)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductDetailResponse{
		Product: toProductResponse(p),
		Related: toProductResponses(related),
	})
}

// GET /api/v1/categories
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	respondJSON(w, http.StatusOK, map[string][]domain.Category{"categories": categories})
}

func selectedCategory(r *http.Request) string {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		return "all"
	}
	return category
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		FormattedPrice: money.Format(p.Price, p.Currency),
		Currency:       p.Currency,
		Image:          p.Image,
		Images:         p.ImageList(),
		Category:       p.Category,
		Slug:           p.Slug,
		Colors:         p.Colors,
		Sizes:          p.Sizes,
		Stock:          p.Stock,
		MaxQuantity:    p.MaxQuantity(),
	}
}

func toProductResponses(products []*domain.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	return out
}
