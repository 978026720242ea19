package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	d "github.com/fjod/go_storefront/internal/checkout/domain"
	r "github.com/fjod/go_storefront/internal/checkout/repository"
	"github.com/fjod/go_storefront/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mu          sync.Mutex
	events      []*r.OutboxEvent
	processed   []int64
	fetchErr    error
	markErr     error
	fetchLimits []int
}

func (m *MockRepository) CreateCheckoutSession(context.Context, *d.CheckoutSession, *r.OutboxEvent) error {
	return nil
}

func (m *MockRepository) GetCheckoutSession(context.Context, string) (*d.CheckoutSession, error) {
	return nil, r.ErrSessionNotFound
}

func (m *MockRepository) ListByCartSession(context.Context, string) ([]*d.CheckoutSession, error) {
	return nil, nil
}

func (m *MockRepository) UpdateStatus(context.Context, string, d.CheckoutStatus, *r.OutboxEvent) (bool, error) {
	return false, nil
}

func (m *MockRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchLimits = append(m.fetchLimits, limit)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []*r.OutboxEvent
	for _, e := range m.events {
		if !m.isProcessed(e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.processed = append(m.processed, id)
	return nil
}

func (m *MockRepository) isProcessed(id int64) bool {
	for _, p := range m.processed {
		if p == id {
			return true
		}
	}
	return false
}

func (m *MockRepository) Processed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.processed...)
}

type MockPublisher struct {
	mu       sync.Mutex
	messages []events.Message
	failOn   string
}

func (p *MockPublisher) Publish(_ context.Context, msgs ...events.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if m.Type == p.failOn {
			return errors.New("broker unavailable")
		}
		p.messages = append(p.messages, m)
	}
	return nil
}

func (p *MockPublisher) Close() error { return nil }

func outbox() []*r.OutboxEvent {
	return []*r.OutboxEvent{
		{ID: 1, AggregateId: "cs_1", EventType: d.EventCheckoutSessionCreated, Payload: []byte(`{"n":1}`)},
		{ID: 2, AggregateId: "cs_1", EventType: d.EventCheckoutCompleted, Payload: []byte(`{"n":2}`)},
		{ID: 3, AggregateId: "cs_2", EventType: d.EventCheckoutSessionCreated, Payload: []byte(`{"n":3}`)},
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	repo := &MockRepository{events: outbox()}
	pub := &MockPublisher{}
	poller := NewOutboxPoller(repo, pub, nil)

	n := poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{1, 2, 3}, repo.Processed())
	require.Len(t, pub.messages, 3)
	assert.Equal(t, "cs_1", pub.messages[1].Key)
	assert.Equal(t, d.EventCheckoutCompleted, pub.messages[1].Type)
	assert.Equal(t, []int{defaultBatchSize}, repo.fetchLimits)
}

func TestProcessUnpublishedEvents_StopsOnPublishError(t *testing.T) {
	repo := &MockRepository{events: outbox()}
	pub := &MockPublisher{failOn: d.EventCheckoutCompleted}
	poller := NewOutboxPoller(repo, pub, nil)

	n := poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, repo.Processed())

	// broker is back: the rest goes out in order
	pub.failOn = ""
	n = poller.processUnpublishedEvents(context.Background())
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2, 3}, repo.Processed())
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	repo := &MockRepository{fetchErr: errors.New("db locked")}
	poller := NewOutboxPoller(repo, &MockPublisher{}, nil)

	assert.Zero(t, poller.processUnpublishedEvents(context.Background()))
}

func TestProcessUnpublishedEvents_MarkError(t *testing.T) {
	repo := &MockRepository{events: outbox(), markErr: errors.New("disk full")}
	pub := &MockPublisher{}
	poller := NewOutboxPoller(repo, pub, nil)

	assert.Zero(t, poller.processUnpublishedEvents(context.Background()))
	assert.Len(t, pub.messages, 1)
}

func TestRun_PublishesUntilCancelled(t *testing.T) {
	repo := &MockRepository{events: outbox()}
	pub := &MockPublisher{}
	poller := NewOutboxPoller(repo, pub, nil)
	poller.tick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(repo.Processed()) == 3 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
