// Package stub is a local payment provider that approves every session and
// sends the buyer straight back to the success URL.
package stub

import (
	"context"
	"strings"
	"sync"

	"github.com/fjod/go_storefront/internal/payment"
	"github.com/google/uuid"
)

const (
	sessionPrefix = "cs_test_"
	// maxSessions bounds how many sessions stay retrievable; the oldest go first.
	maxSessions = 10000
)

type Provider struct {
	mu       sync.RWMutex
	sessions map[string]*payment.SessionDetails
	order    []string
	limit    int
}

func New() *Provider {
	return &Provider{
		sessions: make(map[string]*payment.SessionDetails),
		limit:    maxSessions,
	}
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(params.LineItems) == 0 {
		return nil, &payment.ProviderError{Message: "line_items must not be empty", Rejected: true}
	}

	id := sessionPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	var total int64
	for _, li := range params.LineItems {
		total += li.UnitAmount * li.Quantity
	}
	metadata := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	p.mu.Lock()
	p.sessions[id] = &payment.SessionDetails{
		ID:            id,
		Status:        "complete",
		PaymentStatus: payment.PaymentStatusPaid,
		AmountTotal:   total,
		Currency:      params.LineItems[0].Currency,
		Metadata:      metadata,
	}
	p.order = append(p.order, id)
	for len(p.order) > p.limit {
		delete(p.sessions, p.order[0])
		p.order = p.order[1:]
	}
	p.mu.Unlock()

	return &payment.Session{
		ID:  id,
		URL: strings.ReplaceAll(params.SuccessURL, payment.SessionIDPlaceholder, id),
	}, nil
}

func (p *Provider) GetCheckoutSession(ctx context.Context, sessionID string) (*payment.SessionDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.sessions[sessionID]
	if !ok {
		return nil, &payment.ProviderError{Message: "No such checkout.session: " + sessionID, Rejected: true}
	}
	out := *d
	return &out, nil
}
