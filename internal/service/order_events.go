package service

import (
	"context"
	"errors"
	"fmt"

	"order-status-service/internal/models"
	"order-status-service/internal/util"

	"go.uber.org/zap"
)

// EventStore is the persistence inbound event handling needs
type EventStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Transitioner moves orders between statuses
type Transitioner interface {
	Transition(ctx context.Context, order *models.Order, req TransitionRequest) (bool, error)
}

// OrderEventProcessor applies status changes requested by broker events
type OrderEventProcessor struct {
	store          EventStore
	statuses       StatusLookup
	workflow       Transitioner
	paidStatusCode string
	systemActorID  int64
	logger         *zap.Logger
}

// NewOrderEventProcessor creates a new order event processor
func NewOrderEventProcessor(
	store EventStore,
	statuses StatusLookup,
	workflow Transitioner,
	paidStatusCode string,
	systemActorID int64,
) *OrderEventProcessor {
	return &OrderEventProcessor{
		store:          store,
		statuses:       statuses,
		workflow:       workflow,
		paidStatusCode: paidStatusCode,
		systemActorID:  systemActorID,
		logger:         util.GetLogger(),
	}
}

// HandlePaymentSuccess moves the paid order to the paid status
func (p *OrderEventProcessor) HandlePaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error {
	ctx, span := util.StartSpan(ctx, "OrderEventProcessor.HandlePaymentSuccess", util.OrderAttr(event.OrderID))
	defer span.End()

	return p.process(ctx, event.BaseEvent, event.OrderID, p.paidStatusCode, TransitionRequest{
		Comment:           fmt.Sprintf("Payment %s received", event.TxID),
		SendNotifications: true,
		APIData: map[string]interface{}{
			"payment_id": event.PaymentID,
			"tx_id":      event.TxID,
			"amount":     event.Amount,
		},
	})
}

// HandleStatusChangeRequested moves the order to the status with the requested code
func (p *OrderEventProcessor) HandleStatusChangeRequested(ctx context.Context, event *models.OrderStatusChangeRequestedEvent) error {
	ctx, span := util.StartSpan(ctx, "OrderEventProcessor.HandleStatusChangeRequested", util.OrderAttr(event.OrderID))
	defer span.End()

	return p.process(ctx, event.BaseEvent, event.OrderID, event.StatusCode, TransitionRequest{
		Comment:           event.Comment,
		SendNotifications: event.SendNotifications,
		APIData:           event.APIData,
	})
}

func (p *OrderEventProcessor) process(ctx context.Context, base models.BaseEvent, orderID int64, statusCode string, req TransitionRequest) error {
	processed, err := p.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		p.logger.Info("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	changed, err := p.transition(ctx, orderID, statusCode, req)
	var reqErr *RequirementError
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrStatusNotFound):
		p.logger.Warn("Dropping status change for unknown order or status",
			zap.String("event_id", base.EventID),
			zap.Int64("order_id", orderID),
			zap.String("status", statusCode),
			zap.Error(err))
	case errors.As(err, &reqErr):
		p.logger.Warn("Requested status change rejected by requirement",
			zap.String("event_id", base.EventID),
			zap.Int64("order_id", orderID),
			zap.String("status", statusCode),
			zap.String("reason", reqErr.Message))
	case err != nil:
		return err
	case !changed:
		p.logger.Info("Requested status change not applied",
			zap.String("event_id", base.EventID),
			zap.Int64("order_id", orderID),
			zap.String("status", statusCode))
	}

	if err := p.store.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		p.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

func (p *OrderEventProcessor) transition(ctx context.Context, orderID int64, statusCode string, req TransitionRequest) (bool, error) {
	order, err := p.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to get order: %w", err)
	}

	status, err := p.statuses.GetStatusByCode(ctx, statusCode)
	if err != nil {
		return false, fmt.Errorf("failed to resolve status %q: %w", statusCode, err)
	}

	req.StatusID = status.ID
	req.ActorID = p.systemActorID
	return p.workflow.Transition(ctx, order, req)
}
