package domain

type CheckoutStatus string

const (
	// CheckoutStatusCreated: the provider session exists and the buyer was sent to pay.
	CheckoutStatusCreated   CheckoutStatus = "CREATED"
	CheckoutStatusCompleted CheckoutStatus = "COMPLETED"
)

func CanTransitionTo(from, to CheckoutStatus) bool {
	return from == CheckoutStatusCreated && to == CheckoutStatusCompleted
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
