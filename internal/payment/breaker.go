package payment

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/logging"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	opCreateSession = "create_session"
	opGetSession    = "get_session"
)

type BreakerSettings struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// Breaker wraps a Provider so that an unhealthy provider fails fast with
// ErrProviderUnavailable. Requests the provider rejected do not count as
// failures. Nothing is retried.
type Breaker struct {
	next    Provider
	cb      *gobreaker.CircuitBreaker[any]
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewBreaker(next Provider, settings BreakerSettings, log *zap.Logger, m *metrics.Metrics) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	if settings.Name == "" {
		settings.Name = "payment-provider"
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	b := &Breaker{next: next, log: log, metrics: m}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			var pe *ProviderError
			return err == nil || (errors.As(err, &pe) && pe.Rejected) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("payment_breaker_state_changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return b
}

func (b *Breaker) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error) {
	v, err := b.execute(ctx, opCreateSession, func() (any, error) {
		return b.next.CreateCheckoutSession(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (b *Breaker) GetCheckoutSession(ctx context.Context, sessionID string) (*SessionDetails, error) {
	v, err := b.execute(ctx, opGetSession, func() (any, error) {
		return b.next.GetCheckoutSession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SessionDetails), nil
}

func (b *Breaker) execute(ctx context.Context, op string, call func() (any, error)) (any, error) {
	start := time.Now()
	v, err := b.cb.Execute(call)

	status := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "open"
		err = ErrProviderUnavailable
	case err != nil:
		status = "error"
	}
	b.metrics.ProviderCall(op, status, time.Since(start))

	if err != nil {
		logging.FromContext(ctx).Warn("payment_provider_call_failed",
			zap.String("op", op),
			zap.String("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
	return v, err
}
