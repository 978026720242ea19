// Package stripe implements payment.Provider on Stripe Checkout.
package stripe

import (
	"context"
	"errors"
	"net/http"

	"github.com/fjod/go_storefront/internal/payment"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// sessionClient is the part of the Stripe API used here.
type sessionClient interface {
	New(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
	Get(id string, params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
}

type Provider struct {
	sessions sessionClient
}

func New(secretKey string) *Provider {
	sc := client.New(secretKey, nil)
	return &Provider{sessions: sc.CheckoutSessions}
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.Session, error) {
	sp := &stripego.CheckoutSessionParams{
		Params:             stripego.Params{Context: ctx},
		Mode:               stripego.String(string(params.Mode)),
		PaymentMethodTypes: stripego.StringSlice(params.PaymentMethodTypes),
		SuccessURL:         stripego.String(params.SuccessURL),
		CancelURL:          stripego.String(params.CancelURL),
	}
	for _, li := range params.LineItems {
		product := &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripego.String(li.Name),
		}
		// stripe rejects empty strings here
		if li.Description != "" {
			product.Description = stripego.String(li.Description)
		}
		if len(li.Images) > 0 {
			product.Images = stripego.StringSlice(li.Images)
		}
		sp.LineItems = append(sp.LineItems, &stripego.CheckoutSessionLineItemParams{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripego.String(li.Currency),
				ProductData: product,
				UnitAmount:  stripego.Int64(li.UnitAmount),
			},
			Quantity: stripego.Int64(li.Quantity),
		})
	}
	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}

	s, err := p.sessions.New(sp)
	if err != nil {
		return nil, wrapError(err)
	}
	return &payment.Session{ID: s.ID, URL: s.URL}, nil
}

func (p *Provider) GetCheckoutSession(ctx context.Context, sessionID string) (*payment.SessionDetails, error) {
	s, err := p.sessions.Get(sessionID, &stripego.CheckoutSessionParams{
		Params: stripego.Params{Context: ctx},
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return &payment.SessionDetails{
		ID:            s.ID,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}, nil
}

func wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *stripego.Error
	if errors.As(err, &se) {
		return &payment.ProviderError{
			Message:  se.Msg,
			Rejected: se.HTTPStatusCode >= http.StatusBadRequest && se.HTTPStatusCode < http.StatusInternalServerError && se.HTTPStatusCode != http.StatusTooManyRequests,
			Err:      err,
		}
	}
	return &payment.ProviderError{Err: err}
}
