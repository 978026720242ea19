package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	d "github.com/fjod/go_storefront/internal/checkout/domain"
	r "github.com/fjod/go_storefront/internal/checkout/repository"
	"github.com/fjod/go_storefront/internal/logging"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/fjod/go_storefront/internal/payment"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName      = "github.com/fjod/go_storefront/internal/checkout"
	spanPrefix      = "UC."
	useCaseInitiate = "checkout.initiate"
	useCaseComplete = "checkout.complete"

	MetadataItemsCount   = "items_count"
	MetadataItemsSummary = "items_summary"

	SuccessPath = "/checkout/success"
	CancelPath  = "/checkout/cancel"
)

// Guard serialises checkouts of one session. cart.Session implements it.
type Guard interface {
	TryBeginCheckout() bool
	EndCheckout()
}

type Options struct {
	// VerifyPayment asks the provider whether a returning session was paid
	// before the cart is cleared. Off by default: the token is trusted.
	VerifyPayment bool
}

type CheckoutService struct {
	repo     r.RepoInterface
	provider payment.Provider
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	opts     Options
	now      func() time.Time
}

func NewCheckoutService(repo r.RepoInterface, provider payment.Provider, m *metrics.Metrics, opts Options) *CheckoutService {
	return &CheckoutService{
		repo:     repo,
		provider: provider,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
		opts:     opts,
		now:      time.Now,
	}
}

type InitiateInput struct {
	CartSessionID string
	Items         []cart.LineItem
	// Origin is the scheme and host the buyer is sent back to.
	Origin string
	Guard  Guard
}

type InitiateResult struct {
	SessionID string
	URL       string
}

// Initiate creates a hosted checkout session for the given cart lines. The
// cart itself is never modified here.
func (s *CheckoutService) Initiate(ctx context.Context, in InitiateInput) (_ *InitiateResult, err error) {
	ctx, span := s.tracer.Start(ctx, spanPrefix+"InitiateCheckout",
		trace.WithAttributes(
			attribute.String("use_case", useCaseInitiate),
			attribute.Int("checkout.lines", len(in.Items)),
		))
	logger := logging.FromContext(ctx).With(zap.String("use_case", useCaseInitiate))
	start := time.Now()
	outcome := "created"

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			logger.Warn("use_case_done",
				zap.String("outcome", outcome),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
		} else {
			span.SetStatus(codes.Ok, outcome)
			logger.Info("use_case_done",
				zap.String("outcome", outcome),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
		span.End()
		s.metrics.CheckoutOutcome(outcome)
	}()

	if len(in.Items) == 0 {
		outcome = "empty_cart"
		return nil, ErrEmptyCart
	}

	if in.Guard != nil {
		if !in.Guard.TryBeginCheckout() {
			outcome = "in_progress"
			return nil, ErrCheckoutInProgress
		}
		defer in.Guard.EndCheckout()
	}

	proj, err := Project(in.Items)
	if err != nil {
		outcome = "invalid_cart"
		return nil, err
	}

	origin := strings.TrimSuffix(in.Origin, "/")
	params := payment.CheckoutParams{
		Mode:               payment.ModePayment,
		PaymentMethodTypes: []string{payment.PaymentMethodCard},
		SuccessURL:         origin + SuccessPath + "?session_id=" + payment.SessionIDPlaceholder,
		CancelURL:          origin + CancelPath,
		Metadata: map[string]string{
			MetadataItemsCount:   strconv.Itoa(proj.ItemsCount),
			MetadataItemsSummary: proj.Summary,
		},
		LineItems: proj.LineItems,
	}
	if proj.SummaryEntries < proj.ItemsCount {
		logger.Info("checkout_summary_truncated",
			zap.Int("items_count", proj.ItemsCount),
			zap.Int("summary_entries", proj.SummaryEntries),
		)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		outcome = "provider_error"
		if errors.Is(err, payment.ErrProviderUnavailable) {
			outcome = "provider_unavailable"
		}
		return nil, err
	}
	if session == nil || session.URL == "" {
		outcome = "no_redirect"
		return nil, ErrNoRedirectURL
	}
	span.SetAttributes(attribute.String("checkout.session_id", session.ID))

	s.record(ctx, logger, in.CartSessionID, session.ID, proj)

	return &InitiateResult{SessionID: session.ID, URL: session.URL}, nil
}

// record writes the ledger entry and its outbox event. The buyer already has
// a live provider session, so a failure here is logged and not returned.
func (s *CheckoutService) record(ctx context.Context, logger *zap.Logger, cartSessionID, sessionID string, proj *Projection) {
	now := s.now().UTC()
	ledger := &d.CheckoutSession{
		ID:            sessionID,
		CartSessionID: cartSessionID,
		Status:        d.CheckoutStatusCreated,
		ItemsCount:    proj.ItemsCount,
		TotalQuantity: proj.TotalQuantity,
		AmountTotal:   proj.AmountTotal,
		Currency:      proj.Currency,
		Manifest:      proj.Manifest,
		CreatedAt:     now,
	}
	event, err := outboxEvent(sessionID, d.CheckoutSessionCreated{
		CheckoutID:    sessionID,
		CartSessionID: cartSessionID,
		Items:         proj.Manifest,
		TotalAmount:   proj.AmountTotal,
		Currency:      proj.Currency,
		CreatedAt:     now,
	})
	if err != nil {
		logger.Error("checkout_event_encode_failed", zap.Error(err))
	}

	if err := s.repo.CreateCheckoutSession(context.WithoutCancel(ctx), ledger, event); err != nil {
		logger.Error("checkout_ledger_write_failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	logger.Info("checkout_session_created",
		zap.String("session_id", sessionID),
		zap.Int("items_count", proj.ItemsCount),
		zap.Int64("amount_total", proj.AmountTotal),
		zap.String("currency", proj.Currency),
	)
}

type CompleteInput struct {
	CartSessionID string
	// Token is the session id the provider put on the success URL.
	Token string
	Cart  *cart.Store
}

type CompleteResult struct {
	SessionID string
	Verified  bool
}

// Complete handles the buyer's return from the provider: the cart is cleared
// and the ledger entry closed. Without VerifyPayment the token is taken at
// its word.
func (s *CheckoutService) Complete(ctx context.Context, in CompleteInput) (_ *CompleteResult, err error) {
	ctx, span := s.tracer.Start(ctx, spanPrefix+"CompleteCheckout",
		trace.WithAttributes(attribute.String("use_case", useCaseComplete)))
	logger := logging.FromContext(ctx).With(zap.String("use_case", useCaseComplete))
	outcome := "completed"

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			logger.Warn("use_case_done", zap.String("outcome", outcome), zap.Error(err))
		} else {
			span.SetStatus(codes.Ok, outcome)
			logger.Info("use_case_done", zap.String("outcome", outcome))
		}
		span.End()
		s.metrics.ReconcileOutcome(outcome)
	}()

	token := strings.TrimSpace(in.Token)
	if token == "" {
		outcome = "missing_token"
		return nil, ErrMissingToken
	}
	span.SetAttributes(attribute.String("checkout.session_id", token))

	verified := false
	if s.opts.VerifyPayment {
		details, err := s.provider.GetCheckoutSession(ctx, token)
		if err != nil {
			outcome = "verify_failed"
			return nil, err
		}
		if !details.Paid() {
			outcome = "unpaid"
			return nil, fmt.Errorf("%w: payment status %q", ErrPaymentNotConfirmed, details.PaymentStatus)
		}
		verified = true
	}

	if in.Cart != nil {
		in.Cart.Clear()
	}

	event, err := outboxEvent(token, d.CheckoutCompleted{
		CheckoutID:    token,
		CartSessionID: in.CartSessionID,
		Verified:      verified,
		CompletedAt:   s.now().UTC(),
	})
	if err != nil {
		logger.Error("checkout_event_encode_failed", zap.Error(err))
	}

	changed, err := s.repo.UpdateStatus(context.WithoutCancel(ctx), token, d.CheckoutStatusCompleted, event)
	switch {
	case errors.Is(err, r.ErrSessionNotFound):
		// the cart is gone already; an unknown token only means we have no ledger entry for it
		logger.Warn("checkout_session_unknown", zap.String("session_id", token))
	case err != nil:
		logger.Error("checkout_ledger_update_failed", zap.String("session_id", token), zap.Error(err))
	case !changed:
		outcome = "already_completed"
	default:
		logger.Info("checkout_completed", zap.String("session_id", token), zap.Bool("verified", verified))
	}

	return &CompleteResult{SessionID: token, Verified: verified}, nil
}

// Session returns the ledger entry for a provider session id.
func (s *CheckoutService) Session(ctx context.Context, id string) (*d.CheckoutSession, error) {
	return s.repo.GetCheckoutSession(ctx, id)
}

// SessionsFor lists the ledger entries started from a browsing session.
func (s *CheckoutService) SessionsFor(ctx context.Context, cartSessionID string) ([]*d.CheckoutSession, error) {
	return s.repo.ListByCartSession(ctx, cartSessionID)
}

type namedEvent interface {
	EventName() string
}

func outboxEvent(aggregateID string, e namedEvent) (*r.OutboxEvent, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", e.EventName(), err)
	}
	return &r.OutboxEvent{
		AggregateId: aggregateID,
		EventType:   e.EventName(),
		Payload:     payload,
	}, nil
}
