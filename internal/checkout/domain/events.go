package domain

import "time"

const (
	EventCheckoutSessionCreated = "checkout.session_created"
	EventCheckoutCompleted      = "checkout.completed"
)

type CheckoutSessionCreated struct {
	CheckoutID    string         `json:"checkout_id"`
	CartSessionID string         `json:"cart_session_id"`
	Items         []ManifestItem `json:"items"`
	TotalAmount   int64          `json:"total_amount"`
	Currency      string         `json:"currency"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (CheckoutSessionCreated) EventName() string { return EventCheckoutSessionCreated }

type CheckoutCompleted struct {
	CheckoutID    string    `json:"checkout_id"`
	CartSessionID string    `json:"cart_session_id"`
	Verified      bool      `json:"verified"`
	CompletedAt   time.Time `json:"completed_at"`
}

func (CheckoutCompleted) EventName() string { return EventCheckoutCompleted }
