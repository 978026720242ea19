package publisher

import (
	"context"
	"time"

	r "github.com/fjod/go_storefront/internal/checkout/repository"
	"github.com/fjod/go_storefront/internal/events"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 100
	defaultTick      = time.Second
	publishTimeout   = 5 * time.Second
)

// OutboxPoller moves committed checkout events from the ledger to the bus.
// Delivery is at least once: an event is marked only after it was written.
type OutboxPoller struct {
	repo      r.RepoInterface
	publisher events.Publisher
	log       *zap.Logger
	tick      time.Duration
	batchSize int
}

func NewOutboxPoller(repo r.RepoInterface, p events.Publisher, log *zap.Logger) *OutboxPoller {
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxPoller{
		repo:      repo,
		publisher: p,
		log:       log,
		tick:      defaultTick,
		batchSize: defaultBatchSize,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			// last flush so a clean shutdown leaves nothing behind
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
			p.processUnpublishedEvents(flushCtx)
			cancel()
			return
		}
	}
}

// processUnpublishedEvents publishes one batch and returns how many events
// were marked processed.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	batch, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error("outbox_fetch_failed", zap.Error(err))
		return 0
	}

	processed := 0
	for _, event := range batch {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := p.publisher.Publish(pubCtx, events.Message{
			Key:   event.AggregateId, // checkout id for ordering
			Type:  event.EventType,
			Value: event.Payload,
		})
		cancel()
		if err != nil {
			p.log.Warn("outbox_publish_failed", zap.Int64("event_id", event.ID), zap.Error(err))
			// keep order per checkout: stop and retry the rest next tick
			return processed
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error("outbox_mark_failed", zap.Int64("event_id", event.ID), zap.Error(err))
			return processed
		}
		processed++
	}
	return processed
}
