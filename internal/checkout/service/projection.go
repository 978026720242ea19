package service

import (
	"encoding/json"
	"strings"

	"github.com/fjod/go_storefront/internal/cart"
	d "github.com/fjod/go_storefront/internal/checkout/domain"
	"github.com/fjod/go_storefront/internal/payment"
)

// MaxSummaryLength keeps the summary under the provider's 500 character
// metadata limit.
const MaxSummaryLength = 450

// SummaryEntry is the compact form of a line kept in provider metadata.
type SummaryEntry struct {
	ID    string `json:"id"`
	Qty   int    `json:"qty"`
	Color string `json:"color"`
	Size  string `json:"size"`
}

// Projection is the checkout payload derived from a cart.
type Projection struct {
	LineItems []payment.LineItem
	// Summary is valid JSON; SummaryEntries says how many lines it holds.
	Summary        string
	SummaryEntries int
	// ItemsCount is the number of lines, whatever the summary kept.
	ItemsCount    int
	TotalQuantity int
	AmountTotal   int64
	Currency      string
	Manifest      []d.ManifestItem
}

// Project derives the provider line items, the metadata summary and the
// ledger manifest from cart lines, in cart order.
func Project(items []cart.LineItem) (*Projection, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	p := &Projection{
		LineItems:  make([]payment.LineItem, 0, len(items)),
		Manifest:   make([]d.ManifestItem, 0, len(items)),
		ItemsCount: len(items),
		Currency:   items[0].Product.Currency,
	}
	summary := make([]SummaryEntry, 0, len(items))

	for _, li := range items {
		if !strings.EqualFold(li.Product.Currency, p.Currency) {
			return nil, ErrMixedCurrency
		}
		p.LineItems = append(p.LineItems, payment.LineItem{
			Name:        li.Product.Name,
			Description: li.Product.Description,
			Images:      li.Product.ImageList(),
			UnitAmount:  li.Product.Price,
			Currency:    strings.ToLower(li.Product.Currency),
			Quantity:    int64(li.Quantity),
		})
		p.Manifest = append(p.Manifest, d.ManifestItem{
			ProductID: li.Product.ID,
			Name:      li.Product.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.Product.Price,
			Subtotal:  li.Subtotal(),
			Color:     li.SelectedColor,
			Size:      li.SelectedSize,
		})
		summary = append(summary, SummaryEntry{
			ID:    li.Product.ID,
			Qty:   li.Quantity,
			Color: li.SelectedColor,
			Size:  li.SelectedSize,
		})
		p.TotalQuantity += li.Quantity
		p.AmountTotal += li.Subtotal()
	}

	p.Summary, p.SummaryEntries = EncodeSummary(summary, MaxSummaryLength)
	return p, nil
}

// EncodeSummary JSON-encodes as many leading entries as fit in limit
// characters. Entries are never cut, so the result always parses.
func EncodeSummary(entries []SummaryEntry, limit int) (string, int) {
	var b strings.Builder
	b.WriteByte('[')
	n := 0
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			break
		}
		extra := len(raw) + 1 // closing bracket
		if n > 0 {
			extra++ // comma
		}
		if b.Len()+extra > limit {
			break
		}
		if n > 0 {
			b.WriteByte(',')
		}
		b.Write(raw)
		n++
	}
	b.WriteByte(']')
	return b.String(), n
}
