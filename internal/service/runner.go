package service

import (
	"context"
	"time"

	"webhook-gateway/internal/dedup"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProcessedPublisher reports processing outcomes to the broker.
type ProcessedPublisher interface {
	PublishOrderProcessed(ctx context.Context, event *models.OrderProcessedEvent) error
}

// Runner executes processing for a claimed event and records the
// outcome. It is shared by the async worker, the reconciliation sweep,
// and the synchronous gateway mode.
type Runner struct {
	processor *Processor
	dedup     *dedup.Deduplicator
	publisher ProcessedPublisher
	logger    *zap.Logger
}

// NewRunner creates a runner. publisher may be nil, in which case
// outcomes are recorded but not published.
func NewRunner(processor *Processor, deduplicator *dedup.Deduplicator, publisher ProcessedPublisher) *Runner {
	return &Runner{
		processor: processor,
		dedup:     deduplicator,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Run processes the order, records the outcome against the claimed
// identity, and publishes the result. Partial success is recorded as
// success with the failed optional steps noted for manual follow-up;
// only a required-step failure leaves the record eligible for the
// reconciliation sweep.
func (r *Runner) Run(ctx context.Context, identity string, order *models.OrderSnapshot) string {
	ctx, span := util.StartSpan(ctx, "Runner.Run")
	defer span.End()

	results, outcome := r.processor.Process(ctx, order)
	errMsg := ErrorSummary(results)

	success := outcome != models.OutcomeFailure
	if err := r.dedup.RecordOutcome(ctx, identity, success, errMsg); err != nil {
		r.logger.Error("Failed to record processing outcome",
			zap.String("event_identity", identity),
			zap.String("order_id", order.OrderID),
			zap.Error(err))
	}

	util.ProcessingOutcomesTotal.WithLabelValues(outcome).Inc()

	if r.publisher != nil {
		event := &models.OrderProcessedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderProcessed,
				Timestamp: time.Now(),
			},
			EventIdentity: identity,
			OrderID:       order.OrderID,
			ShopID:        order.ShopID,
			Outcome:       outcome,
			ErrorMessage:  errMsg,
		}
		if err := r.publisher.PublishOrderProcessed(ctx, event); err != nil {
			r.logger.Error("Failed to publish OrderProcessed event",
				zap.String("order_id", order.OrderID),
				zap.Error(err))
		}
	}

	return outcome
}
