package worker

import (
	"context"
	"fmt"

	"webhook-gateway/internal/broker"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/service"
	"webhook-gateway/internal/util"

	"go.uber.org/zap"
)

// ProcessWorker consumes claimed deliveries from the broker and runs
// the order processor for each. Redeliveries from an uncommitted
// message are absorbed by the dedup layer's succeeded check.
type ProcessWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
}

// NewProcessWorker creates a worker processing OrderReceived events.
func NewProcessWorker(consumer *broker.Consumer, runner *service.Runner, repo service.Repository) *ProcessWorker {
	logger := util.GetLogger()
	handler := broker.NewEventHandler()

	handler.OnOrderReceived(func(ctx context.Context, event *models.OrderReceivedEvent) error {
		order, err := repo.GetOrderByID(ctx, event.OrderID)
		if err != nil {
			return fmt.Errorf("failed to load order %s: %w", event.OrderID, err)
		}

		outcome := runner.Run(ctx, event.EventIdentity, order)
		logger.Info("Order event processed",
			zap.String("order_id", event.OrderID),
			zap.String("shop_id", event.ShopID),
			zap.String("outcome", outcome))
		return nil
	})

	return &ProcessWorker{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
	}
}

// Start starts the worker
func (w *ProcessWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting process worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *ProcessWorker) Stop() error {
	w.logger.Info("Stopping process worker")
	return w.consumer.Close()
}
