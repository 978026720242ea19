package domain

import "time"

// ManifestItem is one cart line as it was sent to the provider.
type ManifestItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// CheckoutSession is the ledger record of one provider checkout session.
// Amounts are minor units.
type CheckoutSession struct {
	ID            string
	CartSessionID string
	Status        CheckoutStatus
	ItemsCount    int
	TotalQuantity int
	AmountTotal   int64
	Currency      string
	Manifest      []ManifestItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
