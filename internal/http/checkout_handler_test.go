package http

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/fjod/go_storefront/internal/checkout/domain"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_EmptyCart(t *testing.T) {
	provider := &failingProvider{err: errors.New("must not be called")}
	env := newTestEnv(t, withProvider(provider))

	resp := env.do(t, env.client(t), http.MethodPost, "/api/v1/checkout", nil)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "empty_cart", body.Code)
	assert.Equal(t, "cart is empty", body.Error)
	assert.Zero(t, provider.calls)
	assert.Zero(t, env.countRows(t, "checkout_sessions"))
}

func TestCheckout_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.do(t, c, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "1", Quantity: intPtr(2), Color: "red"})
	env.do(t, c, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "8"})

	resp := env.do(t, c, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[CheckoutResponseDTO](t, resp)
	require.True(t, strings.HasPrefix(created.SessionID, "cs_test_"))
	assert.Equal(t, testBaseURL+"/checkout/success?session_id="+created.SessionID, created.URL)

	// checkout leaves the cart alone until the buyer comes back
	resp = env.do(t, c, http.MethodGet, "/api/v1/cart", nil)
	assert.Len(t, decode[CartResponse](t, resp).Items, 2)

	ledger, err := env.ledger.GetCheckoutSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCreated, ledger.Status)
	assert.Equal(t, env.sessionID(t, c), ledger.CartSessionID)
	assert.Equal(t, 2, ledger.ItemsCount)
	assert.Equal(t, 3, ledger.TotalQuantity)
	assert.Equal(t, int64(2*1999+1250), ledger.AmountTotal)
	assert.Equal(t, "USD", ledger.Currency)

	u, err := url.Parse(created.URL)
	require.NoError(t, err)
	resp = env.do(t, c, http.MethodGet, u.RequestURI(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[CheckoutResultDTO](t, resp)
	assert.Equal(t, "Payment Successful!", result.Title)
	assert.Equal(t, created.SessionID, result.OrderID)

	resp = env.do(t, c, http.MethodGet, "/api/v1/cart", nil)
	assert.Empty(t, decode[CartResponse](t, resp).Items)

	ledger, err = env.ledger.GetCheckoutSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, ledger.Status)
	assert.Equal(t, 2, env.countRows(t, "checkout_outbox"))
}

func TestCheckout_ExplicitItemsLeaveSessionCartAlone(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.do(t, c, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "6"})

	resp := env.do(t, c, http.MethodPost, "/api/v1/checkout", InitiateCheckoutRequestDTO{
		Items: []CheckoutItemDTO{
			{ProductID: "1", Quantity: 1, Color: "black", Size: "L"},
			{ProductID: "4", Quantity: 2},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[CheckoutResponseDTO](t, resp)

	ledger, err := env.ledger.GetCheckoutSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.ItemsCount)
	assert.Equal(t, int64(1999+2*2400), ledger.AmountTotal)
	require.Len(t, ledger.Manifest, 2)
	assert.Equal(t, "black", ledger.Manifest[0].Color)
	assert.Equal(t, "L", ledger.Manifest[0].Size)

	resp = env.do(t, c, http.MethodGet, "/api/v1/cart", nil)
	cart := decode[CartResponse](t, resp)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "6", cart.Items[0].ProductID)
}

func TestCheckout_ExplicitItemsAreValidated(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp := env.do(t, c, http.MethodPost, "/api/v1/checkout", InitiateCheckoutRequestDTO{
		Items: []CheckoutItemDTO{{ProductID: "1", Quantity: 1, Color: "purple"}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_color", decode[ErrorResponse](t, resp).Code)

	resp = env.do(t, c, http.MethodPost, "/api/v1/checkout", InitiateCheckoutRequestDTO{
		Items: []CheckoutItemDTO{{ProductID: "missing", Quantity: 1}},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, env.countRows(t, "checkout_sessions"))
}

func TestCheckout_ProviderError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "provider message is surfaced",
			err:         &payment.ProviderError{Message: "Your card was declined.", Rejected: true},
			wantStatus:  http.StatusBadGateway,
			wantCode:    "provider_error",
			wantMessage: "Your card was declined.",
		},
		{
			name:        "generic fallback",
			err:         &payment.ProviderError{Err: errors.New("connection reset")},
			wantStatus:  http.StatusBadGateway,
			wantCode:    "provider_error",
			wantMessage: "failed to create checkout session",
		},
		{
			name:       "breaker open",
			err:        payment.ErrProviderUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "provider_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, withProvider(&failingProvider{err: tt.err}))
			c := env.client(t)
			env.do(t, c, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "2"})

			resp := env.do(t, c, http.MethodPost, "/api/v1/checkout", nil)

			require.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decode[ErrorResponse](t, resp)
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Error)
			}

			resp = env.do(t, c, http.MethodGet, "/api/v1/cart", nil)
			assert.Len(t, decode[CartResponse](t, resp).Items, 1)
			assert.Zero(t, env.countRows(t, "checkout_sessions"))
		})
	}
}

func TestCheckout_RejectsConcurrentSubmission(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.do(t, c, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "2"})

	session := env.registry.Session(env.sessionID(t, c))
	require.True(t, session.TryBeginCheckout())

	resp := env.do(t, c, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "checkout_in_progress", decode[ErrorResponse](t, resp).Code)

	session.EndCheckout()
	resp = env.do(t, c, http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSuccess_WithoutTokenRedirectsHome(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.do(t, c, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "7"})

	resp := env.do(t, c, http.MethodGet, "/checkout/success", nil)

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = env.do(t, c, http.MethodGet, "/api/v1/cart", nil)
	assert.Len(t, decode[CartResponse](t, resp).Items, 1)
}

func TestSuccess_UnknownTokenStillClearsCart(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.do(t, c, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "7"})

	resp := env.do(t, c, http.MethodGet, "/checkout/success?session_id=cs_test_unknown", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cs_test_unknown", decode[CheckoutResultDTO](t, resp).OrderID)

	resp = env.do(t, c, http.MethodGet, "/api/v1/cart", nil)
	assert.Empty(t, decode[CartResponse](t, resp).Items)
}

func TestSuccess_DoesNotCreateCartSession(t *testing.T) {
	env := newTestEnv(t)
	owner := env.client(t)
	env.do(t, owner, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "8"})
	resp := env.do(t, owner, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[CheckoutResponseDTO](t, resp)
	require.Equal(t, 1, env.registry.Len())

	// the buyer returns on a browser that lost the cart cookie
	resp = env.do(t, env.client(t), http.MethodGet, "/checkout/success?session_id="+created.SessionID, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", decode[CheckoutResultDTO](t, resp).Status)
	assert.Equal(t, 1, env.registry.Len())
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.do(t, c, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "7"})

	resp := env.do(t, c, http.MethodGet, "/checkout/cancel", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[CheckoutResultDTO](t, resp)
	assert.Equal(t, "Payment Cancelled", result.Title)
	assert.Contains(t, result.Message, "No charges have been made.")

	resp = env.do(t, c, http.MethodGet, "/api/v1/cart", nil)
	assert.Len(t, decode[CartResponse](t, resp).Items, 1)
}

func TestCheckout_OriginFallsBackToRequest(t *testing.T) {
	env := newTestEnv(t, withBaseURL(""))
	c := env.client(t)
	env.do(t, c, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: "2"})

	resp := env.do(t, c, http.MethodPost, "/api/v1/checkout", nil, "Origin", "http://localhost:3000")

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[CheckoutResponseDTO](t, resp)
	assert.True(t, strings.HasPrefix(created.URL, "http://localhost:3000/checkout/success?session_id="), created.URL)
}

func TestCheckoutHandler_Origin(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		setup   func(r *http.Request)
		want    string
	}{
		{
			name:    "configured base url wins",
			baseURL: "https://shop.example.com/",
			setup:   func(r *http.Request) { r.Header.Set("Origin", "https://evil.example.com") },
			want:    "https://shop.example.com",
		},
		{
			name:  "origin header",
			setup: func(r *http.Request) { r.Header.Set("Origin", "https://www.example.com") },
			want:  "https://www.example.com",
		},
		{
			name:  "malformed origin falls back to host",
			setup: func(r *http.Request) { r.Header.Set("Origin", "null") },
			want:  "http://example.com",
		},
		{
			name:  "forwarded proto",
			setup: func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") },
			want:  "https://example.com",
		},
		{
			name:  "tls",
			setup: func(r *http.Request) { r.TLS = &tls.ConnectionState{} },
			want:  "https://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCheckoutHandler(nil, nil, nil, tt.baseURL)
			r := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/checkout", nil)
			tt.setup(r)

			assert.Equal(t, tt.want, h.origin(r))
		})
	}
}
