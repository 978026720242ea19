package cart

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultSessionTTL is how long an untouched session is kept.
	DefaultSessionTTL = 2 * time.Hour

	DefaultCleanupInterval = time.Minute
)

// Session is one browsing session and the cart it owns.
type Session struct {
	ID   string
	Cart *Store

	lastSeen atomic.Int64 // unix nanos
	busy     atomic.Bool
}

// TryBeginCheckout marks the session as having a checkout in flight. It
// returns false if one already is.
func (s *Session) TryBeginCheckout() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) EndCheckout() {
	s.busy.Store(false)
}

func (s *Session) CheckoutInProgress() bool {
	return s.busy.Load()
}

// Observer is told about session churn. Used for gauges and logs.
type Observer interface {
	SessionCreated(id string, active int)
	SessionsExpired(ids []string, active int)
}

type RegistryOption func(*Registry)

func WithTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithCleanupInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.cleanupInterval = d
		}
	}
}

func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) { r.observer = o }
}

// WithListener subscribes l to the cart of every session the registry creates.
func WithListener(l Listener) RegistryOption {
	return func(r *Registry) { r.listeners = append(r.listeners, l) }
}

func withClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// Registry owns the carts of all live sessions. Nothing is persisted: a
// restart or an idle timeout drops the cart.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl             time.Duration
	cleanupInterval time.Duration
	observer        Observer
	listeners       []Listener
	now             func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:        make(map[string]*Session),
		ttl:             DefaultSessionTTL,
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

// Session returns the session with id, creating it with an empty cart on
// first use, and marks it as seen.
func (r *Registry) Session(id string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id, Cart: NewStore()}
		for _, l := range r.listeners {
			s.Cart.Subscribe(l)
		}
		r.sessions[id] = s
	}
	s.lastSeen.Store(r.now().UnixNano())
	active := len(r.sessions)
	r.mu.Unlock()

	if !ok && r.observer != nil {
		r.observer.SessionCreated(id, active)
	}
	return s
}

// Lookup returns an existing session without creating or touching it.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.expireSessions()
		case <-r.stopCleanup:
			return
		}
	}
}

// expireSessions drops sessions idle for longer than the TTL. A session with
// a checkout in flight is kept until the next pass.
func (r *Registry) expireSessions() {
	cutoff := r.now().Add(-r.ttl).UnixNano()

	r.mu.Lock()
	var expired []string
	for id, s := range r.sessions {
		if s.lastSeen.Load() < cutoff && !s.CheckoutInProgress() {
			delete(r.sessions, id)
			expired = append(expired, id)
		}
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if len(expired) > 0 && r.observer != nil {
		r.observer.SessionsExpired(expired, active)
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopCleanup) })
	r.wg.Wait()
}
