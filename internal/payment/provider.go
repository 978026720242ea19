// Package payment is the port to the hosted checkout provider.
package payment

import (
	"context"
	"errors"
)

type Mode string

const (
	// ModePayment is a one-time payment.
	ModePayment Mode = "payment"
)

const (
	PaymentMethodCard = "card"

	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"

	// SessionIDPlaceholder is substituted by the provider in the success URL.
	SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
)

// LineItem is one priced line of a checkout session. UnitAmount is in minor
// units of Currency (lower-case ISO code).
type LineItem struct {
	Name        string
	Description string
	Images      []string
	UnitAmount  int64
	Currency    string
	Quantity    int64
}

type CheckoutParams struct {
	Mode               Mode
	PaymentMethodTypes []string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
	LineItems          []LineItem
}

// Session is a created checkout session. URL is where the buyer is sent.
type Session struct {
	ID  string
	URL string
}

type SessionDetails struct {
	ID            string
	Status        string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

func (d *SessionDetails) Paid() bool {
	return d != nil && d.PaymentStatus == PaymentStatusPaid
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*SessionDetails, error)
}

var ErrProviderUnavailable = errors.New("payment provider unavailable")

// ProviderError carries the provider's own message. Rejected is set when the
// provider refused the request itself (4xx) rather than failing to serve it.
type ProviderError struct {
	Message  string
	Rejected bool
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return "payment provider: " + e.Message
	}
	if e.Err != nil {
		return "payment provider: " + e.Err.Error()
	}
	return "payment provider error"
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Message returns the provider's text for err, or "" if it has none.
func Message(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return ""
}
