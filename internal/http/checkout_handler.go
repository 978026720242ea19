package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/fjod/go_storefront/internal/cart"
	checkout "github.com/fjod/go_storefront/internal/checkout/service"
)

type Checkout interface {
	Initiate(ctx context.Context, in checkout.InitiateInput) (*checkout.InitiateResult, error)
	Complete(ctx context.Context, in checkout.CompleteInput) (*checkout.CompleteResult, error)
}

type CheckoutHandler struct {
	catalog       Catalog
	registry      *cart.Registry
	checkout      Checkout
	publicBaseURL string
}

func NewCheckoutHandler(catalog Catalog, registry *cart.Registry, c Checkout, publicBaseURL string) *CheckoutHandler {
	return &CheckoutHandler{
		catalog:       catalog,
		registry:      registry,
		checkout:      c,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

type CheckoutItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type InitiateCheckoutRequestDTO struct {
	Items []CheckoutItemDTO `json:"items"`
}

type CheckoutResponseDTO struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type CheckoutResultDTO struct {
	Status   string `json:"status"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	OrderID  string `json:"order_id,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	var req InitiateCheckoutRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sessionID := getSessionID(r.Context())
	session := h.registry.Session(sessionID)

	items := session.Cart.Items()
	if len(req.Items) > 0 {
		// prices always come from the catalog, never from the client
		transient := cart.NewStore()
		for _, it := range req.Items {
			p, err := h.catalog.GetByID(r.Context(), it.ProductID)
			if err != nil {
				handleServiceError(r.Context(), w, err)
				return
			}
			if err := validateLine(p, it.Quantity, it.Color, it.Size); err != nil {
				respondValidation(w, err)
				return
			}
			transient.Add(*p, it.Quantity, it.Color, it.Size)
		}
		items = transient.Items()
	}

	res, err := h.checkout.Initiate(r.Context(), checkout.InitiateInput{
		CartSessionID: sessionID,
		Items:         items,
		Origin:        h.origin(r),
		Guard:         session,
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		SessionID: res.SessionID,
		URL:       res.URL,
	})
}

// GET /checkout/success?session_id=
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if token == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	sessionID := getSessionID(r.Context())
	in := checkout.CompleteInput{CartSessionID: sessionID, Token: token}
	// an expired cart session stays gone
	if s, ok := h.registry.Lookup(sessionID); ok {
		in.Cart = s.Cart
	}
	res, err := h.checkout.Complete(r.Context(), in)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutResultDTO{
		Status:   "paid",
		Title:    "Payment Successful!",
		Message:  "Thank you for your purchase. Your order has been confirmed and you will receive an email confirmation shortly.",
		OrderID:  res.SessionID,
		Verified: res.Verified,
	})
}

// GET /checkout/cancel
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CheckoutResultDTO{
		Status:  "cancelled",
		Title:   "Payment Cancelled",
		Message: "Your payment was cancelled. No charges have been made. You can continue shopping or try again.",
	})
}

// origin is where the provider sends the buyer back to: the configured
// public URL, else the browser's Origin header, else the request host.
func (h *CheckoutHandler) origin(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	if o := r.Header.Get("Origin"); o != "" {
		if u, err := url.Parse(o); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
