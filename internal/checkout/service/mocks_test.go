package service

import (
	"context"
	"sync"

	d "github.com/fjod/go_storefront/internal/checkout/domain"
	r "github.com/fjod/go_storefront/internal/checkout/repository"
	"github.com/fjod/go_storefront/internal/payment"
)

type MockRepository struct {
	mu        sync.Mutex
	sessions  map[string]*d.CheckoutSession
	events    []*r.OutboxEvent
	CreateErr error
	UpdateErr error
}

func newMockRepository() *MockRepository {
	return &MockRepository{sessions: make(map[string]*d.CheckoutSession)}
}

func (m *MockRepository) CreateCheckoutSession(_ context.Context, s *d.CheckoutSession, event *r.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.sessions[s.ID] = s
	if event != nil {
		m.events = append(m.events, event)
	}
	return nil
}

func (m *MockRepository) GetCheckoutSession(_ context.Context, id string) (*d.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, r.ErrSessionNotFound
	}
	return s, nil
}

func (m *MockRepository) ListByCartSession(_ context.Context, cartSessionID string) ([]*d.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*d.CheckoutSession
	for _, s := range m.sessions {
		if s.CartSessionID == cartSessionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockRepository) UpdateStatus(_ context.Context, id string, status d.CheckoutStatus, event *r.OutboxEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return false, m.UpdateErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return false, r.ErrSessionNotFound
	}
	if s.Status == status {
		return false, nil
	}
	s.Status = status
	if event != nil {
		m.events = append(m.events, event)
	}
	return true, nil
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*r.OutboxEvent(nil), m.events...), nil
}

func (m *MockRepository) MarkEventAsProcessed(context.Context, int64) error {
	return nil
}

type MockProvider struct {
	mu          sync.Mutex
	CreateCalls int
	GetCalls    int
	LastParams  payment.CheckoutParams
	Session     *payment.Session
	Details     *payment.SessionDetails
	CreateErr   error
	GetErr      error
	// block, when set, holds CreateCheckoutSession until it is closed
	block chan struct{}
}

func (m *MockProvider) CreateCheckoutSession(_ context.Context, params payment.CheckoutParams) (*payment.Session, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.LastParams = params
	block := m.block
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.Session != nil {
		return m.Session, nil
	}
	return &payment.Session{ID: "cs_test_1", URL: "https://checkout.example.com/pay/cs_test_1"}, nil
}

func (m *MockProvider) GetCheckoutSession(_ context.Context, id string) (*payment.SessionDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.Details != nil {
		return m.Details, nil
	}
	return &payment.SessionDetails{ID: id, PaymentStatus: payment.PaymentStatusPaid}, nil
}

func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCalls
}
