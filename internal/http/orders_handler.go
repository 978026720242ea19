package http

import (
	"context"
	"net/http"
	"time"

	d "github.com/fjod/go_storefront/internal/checkout/domain"
	checkoutrepo "github.com/fjod/go_storefront/internal/checkout/repository"
	"github.com/fjod/go_storefront/internal/money"
	"github.com/go-chi/chi/v5"
)

// Orders is the read side of the checkout ledger.
type Orders interface {
	Session(ctx context.Context, id string) (*d.CheckoutSession, error)
	SessionsFor(ctx context.Context, cartSessionID string) ([]*d.CheckoutSession, error)
}

type OrdersHandler struct {
	orders Orders
}

func NewOrdersHandler(orders Orders) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

type OrderItemDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

type OrderResponseDTO struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Final          bool           `json:"final"`
	ItemsCount     int            `json:"items_count"`
	TotalQuantity  int            `json:"total_quantity"`
	TotalAmount    int64          `json:"total_amount"`
	FormattedTotal string         `json:"formatted_total"`
	Currency       string         `json:"currency"`
	Items          []OrderItemDTO `json:"items"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.orders.SessionsFor(r.Context(), getSessionID(r.Context()))
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(sessions))
	for _, s := range sessions {
		dtos = append(dtos, toOrderResponse(s))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	s, err := h.orders.Session(r.Context(), orderID)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}
	// another browser's order looks the same as a missing one
	if s.CartSessionID != getSessionID(r.Context()) {
		handleServiceError(r.Context(), w, checkoutrepo.ErrSessionNotFound)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(s))
}

func toOrderResponse(s *d.CheckoutSession) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(s.Manifest))
	for _, it := range s.Manifest {
		items = append(items, OrderItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
			Color:     it.Color,
			Size:      it.Size,
		})
	}
	return OrderResponseDTO{
		ID:             s.ID,
		Status:         s.Status.String(),
		Final:          s.Status.IsTerminal(),
		ItemsCount:     s.ItemsCount,
		TotalQuantity:  s.TotalQuantity,
		TotalAmount:    s.AmountTotal,
		FormattedTotal: money.Format(s.AmountTotal, s.Currency),
		Currency:       s.Currency,
		Items:          items,
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      s.UpdatedAt.Format(time.RFC3339),
	}
}
