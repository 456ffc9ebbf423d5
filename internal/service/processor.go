package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"webhook-gateway/internal/models"
	"webhook-gateway/internal/resilience"
	"webhook-gateway/internal/util"

	"go.uber.org/zap"
)

// Integration targets. Each gets its own circuit breaker so a failing
// integration cannot starve unrelated ones.
const (
	TargetFulfillment   = "fulfillment"
	TargetInventory     = "inventory"
	TargetNotifications = "notifications"
)

// Submitter is the outbound fulfillment collaborator. Submissions are
// idempotent by order_id.
type Submitter interface {
	Submit(ctx context.Context, order *models.OrderSnapshot) error
}

// InventoryStore applies the inventory effect of an order exactly once.
type InventoryStore interface {
	ApplyInventoryAdjustment(ctx context.Context, orderID string, items json.RawMessage) (bool, error)
}

// Notifier publishes status-change notifications for consumers outside
// the ingestion path.
type Notifier interface {
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// Step is one side-effect of processing an order event. Required steps
// decide the overall outcome; optional steps only downgrade success to
// partial success.
type Step struct {
	Name     string
	Target   string
	Required bool
	Run      func(ctx context.Context, order *models.OrderSnapshot) error
}

// StepResult is the outcome of one step for one order.
type StepResult struct {
	Step     string
	Target   string
	Required bool
	Err      error
	Duration time.Duration
}

// Processor executes the ordered side-effect steps for one order event,
// wrapping each in the breaker for its target plus retry and a timeout.
type Processor struct {
	steps       []Step
	breakers    *resilience.BreakerRegistry
	retryPolicy resilience.RetryPolicy
	stepTimeout time.Duration
	logger      *zap.Logger
}

// NewProcessor creates a processor over the given steps. The breaker
// registry is shared with every other caller hitting the same targets.
func NewProcessor(steps []Step, breakers *resilience.BreakerRegistry, retryPolicy resilience.RetryPolicy, stepTimeout time.Duration) *Processor {
	return &Processor{
		steps:       steps,
		breakers:    breakers,
		retryPolicy: retryPolicy,
		stepTimeout: stepTimeout,
		logger:      util.GetLogger(),
	}
}

// DefaultSteps builds the production step list: submit to fulfillment
// and record the inventory effect (required), then notify (optional).
func DefaultSteps(submitter Submitter, inventory InventoryStore, notifier Notifier, newEventID func() string) []Step {
	return []Step{
		{
			Name:     "submit_fulfillment",
			Target:   TargetFulfillment,
			Required: true,
			Run: func(ctx context.Context, order *models.OrderSnapshot) error {
				return submitter.Submit(ctx, order)
			},
		},
		{
			Name:     "update_inventory",
			Target:   TargetInventory,
			Required: true,
			Run: func(ctx context.Context, order *models.OrderSnapshot) error {
				_, err := inventory.ApplyInventoryAdjustment(ctx, order.OrderID, order.Items)
				return err
			},
		},
		{
			Name:     "notify",
			Target:   TargetNotifications,
			Required: false,
			Run: func(ctx context.Context, order *models.OrderSnapshot) error {
				return notifier.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
					BaseEvent: models.BaseEvent{
						EventID:   newEventID(),
						EventType: models.EventTypeOrderStatusChanged,
						Timestamp: time.Now(),
					},
					OrderID:    order.OrderID,
					ShopID:     order.ShopID,
					Status:     order.Status,
					UpdateTime: order.UpdateTime,
				})
			},
		},
	}
}

// Process runs every step in order, never aborting the list on a
// failure, and reports the overall outcome: failure when any required
// step failed after exhausting retries, partial success when only
// optional steps failed.
func (p *Processor) Process(ctx context.Context, order *models.OrderSnapshot) ([]StepResult, string) {
	ctx, span := util.StartSpan(ctx, "Processor.Process")
	defer span.End()

	batch := resilience.NewBatchAggregator()
	results := make([]StepResult, 0, len(p.steps))
	requiredFailed := false
	optionalFailed := false

	for _, step := range p.steps {
		start := time.Now()
		err := p.runStep(ctx, step, order)
		elapsed := time.Since(start)

		util.ProcessingStepLatency.WithLabelValues(step.Name).Observe(elapsed.Seconds())
		batch.Record(step.Name, err)

		if err != nil {
			util.ProcessingStepFailures.WithLabelValues(step.Name, step.Target).Inc()
			if step.Required {
				requiredFailed = true
				p.logger.Error("Required processing step failed",
					zap.String("order_id", order.OrderID),
					zap.String("step", step.Name),
					zap.Error(err))
			} else {
				optionalFailed = true
				p.logger.Warn("Optional processing step failed, flagged for follow-up",
					zap.String("order_id", order.OrderID),
					zap.String("step", step.Name),
					zap.Error(err))
			}
		}

		results = append(results, StepResult{
			Step:     step.Name,
			Target:   step.Target,
			Required: step.Required,
			Err:      err,
			Duration: elapsed,
		})
	}

	summary := batch.Summary()
	p.logger.Info("Processing finished",
		zap.String("order_id", order.OrderID),
		zap.Int("steps", summary.Total),
		zap.Int("failed", summary.Failed),
		zap.Float64("success_rate", summary.SuccessRate))

	switch {
	case requiredFailed:
		return results, models.OutcomeFailure
	case optionalFailed:
		return results, models.OutcomePartialSuccess
	default:
		return results, models.OutcomeSuccess
	}
}

func (p *Processor) runStep(ctx context.Context, step Step, order *models.OrderSnapshot) error {
	cb := p.breakers.For(step.Target)

	err := resilience.Retry(ctx, p.retryPolicy, func(ctx context.Context) error {
		return cb.Execute(ctx, func(ctx context.Context) error {
			return resilience.WithTimeout(ctx, step.Name, p.stepTimeout, func(ctx context.Context) error {
				return step.Run(ctx, order)
			})
		})
	})

	var open *resilience.CircuitOpenError
	if errors.As(err, &open) {
		util.CircuitBreakerRejections.WithLabelValues(step.Target).Inc()
	}
	util.CircuitBreakerState.WithLabelValues(step.Target).Set(float64(cb.State()))
	return err
}

// ErrorSummary joins step failures into a single record-friendly string.
func ErrorSummary(results []StepResult) string {
	var parts []string
	for _, r := range results {
		if r.Err != nil {
			parts = append(parts, r.Step+": "+r.Err.Error())
		}
	}
	return strings.Join(parts, "; ")
}
