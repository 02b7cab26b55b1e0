package worker

import (
	"context"

	"order-status-service/internal/broker"
	"order-status-service/internal/service"
	"order-status-service/internal/util"

	"go.uber.org/zap"
)

// OrderWorker applies status changes requested by order events
type OrderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(consumer *broker.Consumer, processor *service.OrderEventProcessor) *OrderWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnPaymentSuccess(processor.HandlePaymentSuccess)
	eventHandler.OnStatusChangeRequested(processor.HandleStatusChangeRequested)

	return &OrderWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes events until ctx is cancelled
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping order worker")
	return w.consumer.Close()
}
