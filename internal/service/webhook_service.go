package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"webhook-gateway/internal/auth"
	"webhook-gateway/internal/dedup"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delivery rejection errors. The gateway maps these to 401 and 400;
// everything else acknowledges with 200.
var (
	ErrAuthentication = errors.New("webhook authentication failed")
	ErrValidation     = errors.New("webhook payload invalid")
)

// Repository is the persistence surface the gateway needs.
type Repository interface {
	UpsertOrder(ctx context.Context, o *models.OrderSnapshot) (bool, error)
	GetOrderByID(ctx context.Context, orderID string) (*models.OrderSnapshot, error)
	GetOrdersByShop(ctx context.Context, shopID string, limit, offset int) ([]models.OrderSnapshot, error)
}

// ReceivedPublisher hands claimed deliveries to the async worker.
type ReceivedPublisher interface {
	PublishOrderReceived(ctx context.Context, event *models.OrderReceivedEvent) error
}

// DeliveryResult describes how a delivery was disposed of. All variants
// are acknowledged with 200; the flags exist for the response message
// and for tests.
type DeliveryResult struct {
	OrderID   string
	Duplicate bool
	InFlight  bool
	Stale     bool
	Outcome   string
}

// WebhookService orchestrates the ingestion pipeline:
// verify -> dedupe -> persist -> hand off (or process) -> acknowledge.
type WebhookService struct {
	verifier       *auth.Verifier
	dedup          *dedup.Deduplicator
	repo           Repository
	publisher      ReceivedPublisher
	runner         *Runner
	syncProcessing bool
	logger         *zap.Logger
}

// NewWebhookService creates the webhook orchestration service. When
// syncProcessing is set, processing runs before acknowledgement instead
// of being handed to the worker.
func NewWebhookService(
	verifier *auth.Verifier,
	deduplicator *dedup.Deduplicator,
	repo Repository,
	publisher ReceivedPublisher,
	runner *Runner,
	syncProcessing bool,
) *WebhookService {
	return &WebhookService{
		verifier:       verifier,
		dedup:          deduplicator,
		repo:           repo,
		publisher:      publisher,
		runner:         runner,
		syncProcessing: syncProcessing,
		logger:         util.GetLogger(),
	}
}

// HandleDelivery runs one inbound delivery through the pipeline. It
// returns ErrAuthentication or ErrValidation for rejected deliveries;
// any other return acknowledges receipt regardless of processing
// outcome, which the reconciliation sweep resolves out of band.
func (s *WebhookService) HandleDelivery(ctx context.Context, body []byte, signature, timestamp, remoteAddr string) (*DeliveryResult, error) {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleDelivery")
	defer span.End()

	if !s.verifier.Verify(body, signature, timestamp) {
		// Never dropped silently: forged and replayed deliveries are
		// security events.
		s.logger.Warn("Webhook signature verification failed",
			zap.String("remote_addr", remoteAddr),
			zap.String("timestamp_header", timestamp))
		util.WebhooksRejectedTotal.WithLabelValues("auth").Inc()
		return nil, ErrAuthentication
	}

	event, err := parseEvent(body)
	if err != nil {
		util.WebhooksRejectedTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	util.WebhooksReceivedTotal.WithLabelValues(event.Type).Inc()

	identity := dedup.IdentityOf(event)
	result := &DeliveryResult{OrderID: event.Data.OrderID}

	succeeded, err := s.dedup.AlreadySucceeded(ctx, identity)
	if err != nil {
		return nil, err
	}
	if succeeded {
		util.EventsDeduplicatedTotal.WithLabelValues("duplicate").Inc()
		result.Duplicate = true
		return result, nil
	}

	claimed, err := s.dedup.TryClaim(ctx, event, identity, body)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another delivery owns this identity: either it is still in
		// flight or an earlier run failed, which the sweep will retry.
		util.EventsDeduplicatedTotal.WithLabelValues("in_flight").Inc()
		result.InFlight = true
		return result, nil
	}

	// Update ordering is arbitrated by update_time alone, but a status
	// that skips the platform's status graph points at a sender-side
	// problem worth surfacing.
	if prior, priorErr := s.repo.GetOrderByID(ctx, event.Data.OrderID); priorErr == nil && prior != nil {
		if !models.CanTransition(prior.Status, event.Data.Status) {
			util.OrderTransitionViolationsTotal.Inc()
			s.logger.Warn("Order status skips the status graph",
				zap.String("order_id", event.Data.OrderID),
				zap.String("from", prior.Status),
				zap.String("to", event.Data.Status))
		}
	}

	snapshot := snapshotFrom(event, body)
	applied, err := s.repo.UpsertOrder(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	if applied {
		util.OrdersUpsertedTotal.Inc()
	} else {
		util.OrdersStaleDroppedTotal.Inc()
		s.logger.Info("Stale order update ignored",
			zap.String("order_id", event.Data.OrderID),
			zap.Int64("update_time", event.Data.UpdateTime))
		result.Stale = true
	}

	if s.syncProcessing {
		result.Outcome = s.runner.Run(ctx, identity, snapshot)
		return result, nil
	}

	received := &models.OrderReceivedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderReceived,
			Timestamp: time.Now(),
		},
		EventIdentity: identity,
		OrderID:       event.Data.OrderID,
		ShopID:        event.ShopID,
	}
	if err := s.publisher.PublishOrderReceived(ctx, received); err != nil {
		// The claim is durable with processed=false, so the sweep picks
		// the event up even though the hand-off was lost.
		s.logger.Error("Failed to hand off delivery to worker",
			zap.String("order_id", event.Data.OrderID),
			zap.Error(err))
	}

	return result, nil
}

// GetOrder retrieves an order snapshot by ID.
func (s *WebhookService) GetOrder(ctx context.Context, orderID string) (*models.OrderSnapshot, error) {
	return s.repo.GetOrderByID(ctx, orderID)
}

// GetShopOrders retrieves order snapshots for a shop.
func (s *WebhookService) GetShopOrders(ctx context.Context, shopID string, limit, offset int) ([]models.OrderSnapshot, error) {
	return s.repo.GetOrdersByShop(ctx, shopID, limit, offset)
}

// SnapshotFromPayload rebuilds an order snapshot from a claimed
// delivery's stored body. The reconciliation sweep uses it when the
// order row was never written because the original delivery failed
// between claim and persist.
func SnapshotFromPayload(raw []byte) (*models.OrderSnapshot, error) {
	event, err := parseEvent(raw)
	if err != nil {
		return nil, err
	}
	return snapshotFrom(event, raw), nil
}

func parseEvent(body []byte) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("unparseable JSON: %w", err)
	}

	switch {
	case !models.ValidEventType(event.Type):
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	case event.ShopID == "":
		return nil, errors.New("missing shop_id")
	case event.Data.OrderID == "":
		return nil, errors.New("missing order_id")
	case !models.ValidStatus(event.Data.Status):
		return nil, fmt.Errorf("unknown order status %q", event.Data.Status)
	case event.Data.UpdateTime <= 0:
		return nil, errors.New("missing update_time")
	}
	return &event, nil
}

func snapshotFrom(event *models.WebhookEvent, rawBody []byte) *models.OrderSnapshot {
	items := event.Data.Items
	if items == nil {
		items = json.RawMessage("[]")
	}
	return &models.OrderSnapshot{
		OrderID:     event.Data.OrderID,
		ShopID:      event.ShopID,
		Status:      event.Data.Status,
		Items:       items,
		TotalAmount: event.Data.TotalAmount,
		RawPayload:  json.RawMessage(rawBody),
		UpdateTime:  event.Data.UpdateTime,
	}
}
