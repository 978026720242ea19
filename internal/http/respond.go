package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	catalog "github.com/fjod/go_storefront/internal/catalog/domain"
	checkoutrepo "github.com/fjod/go_storefront/internal/checkout/repository"
	checkout "github.com/fjod/go_storefront/internal/checkout/service"
	"github.com/fjod/go_storefront/internal/logging"
	"github.com/fjod/go_storefront/internal/payment"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("response_encode_failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps domain and provider errors to HTTP responses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrMixedCurrency):
		respondError(w, http.StatusBadRequest, "currency_mismatch", err.Error())
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, checkoutrepo.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.Is(err, checkout.ErrPaymentNotConfirmed):
		respondError(w, http.StatusConflict, "payment_not_confirmed", err.Error())
	case errors.Is(err, payment.ErrProviderUnavailable):
		respondError(w, http.StatusServiceUnavailable, "provider_unavailable",
			"payment provider is temporarily unavailable, please try again")
	case errors.Is(err, checkout.ErrNoRedirectURL):
		respondError(w, http.StatusBadGateway, "provider_error", "failed to create checkout session")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		var pe *payment.ProviderError
		if errors.As(err, &pe) {
			msg := pe.Message
			if msg == "" {
				msg = "failed to create checkout session"
			}
			respondError(w, http.StatusBadGateway, "provider_error", msg)
			return
		}
		logging.FromContext(ctx).Error("unhandled_error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
