package service

import (
	"context"
	"time"

	"order-status-service/internal/models"
	"order-status-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher publishes workflow events to the broker
type EventPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderLockChanged(ctx context.Context, event *models.OrderLockChangedEvent) error
}

// PublishTransitionEvents returns a status-changed observer that publishes the
// committed change and its paid and lock side effects
func PublishTransitionEvents(publisher EventPublisher) StatusChangedFunc {
	logger := util.GetLogger()

	return func(ctx context.Context, event TransitionEvent) {
		order := event.Order
		now := time.Now()

		var previousStatusID int64
		if event.PreviousStatus != nil {
			previousStatusID = event.PreviousStatus.ID
		}

		changed := &models.OrderStatusChangedEvent{
			BaseEvent:        newBaseEvent(models.EventTypeOrderStatusChanged, now),
			OrderID:          order.ID,
			PreviousStatusID: previousStatusID,
			StatusID:         event.Status.ID,
			StatusCode:       event.Status.Code,
			Comment:          event.Comment,
			Locked:           order.Locked,
			StockUpdated:     order.StockUpdated,
		}
		if err := publisher.PublishOrderStatusChanged(ctx, changed); err != nil {
			logger.Error("Failed to publish OrderStatusChanged event",
				zap.Int64("order_id", order.ID), zap.Error(err))
		}

		if event.Paid {
			paid := &models.OrderPaidEvent{
				BaseEvent:   newBaseEvent(models.EventTypeOrderPaid, now),
				OrderID:     order.ID,
				TotalAmount: order.TotalAmount,
				ProcessedAt: order.PaymentProcessed.Time,
			}
			if err := publisher.PublishOrderPaid(ctx, paid); err != nil {
				logger.Error("Failed to publish OrderPaid event",
					zap.Int64("order_id", order.ID), zap.Error(err))
			}
		}

		if event.LockChanged {
			lock := &models.OrderLockChangedEvent{
				BaseEvent: newBaseEvent(models.EventTypeOrderLockChanged, now),
				OrderID:   order.ID,
				StatusID:  event.Status.ID,
				Locked:    order.Locked,
			}
			if err := publisher.PublishOrderLockChanged(ctx, lock); err != nil {
				logger.Error("Failed to publish OrderLockChanged event",
					zap.Int64("order_id", order.ID), zap.Error(err))
			}
		}
	}
}

func newBaseEvent(eventType string, at time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: at,
	}
}
