package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"order-status-service/internal/models"

	"github.com/stretchr/testify/mock"
)

func TestPublishTransitionEvents(t *testing.T) {
	publisher := &mockPublisher{}
	publisher.On("PublishOrderStatusChanged", mock.Anything, mock.MatchedBy(func(e *models.OrderStatusChangedEvent) bool {
		return e.OrderID == 1 && e.PreviousStatusID == statusNew && e.StatusCode == "paid" &&
			e.EventType == models.EventTypeOrderStatusChanged && e.EventID != ""
	})).Return(nil)
	publisher.On("PublishOrderPaid", mock.Anything, mock.MatchedBy(func(e *models.OrderPaidEvent) bool {
		return e.OrderID == 1 && e.TotalAmount == 900 && e.ProcessedAt.Equal(fixedNow)
	})).Return(nil)

	statuses := testStatuses()
	observer := PublishTransitionEvents(publisher)
	observer(context.Background(), TransitionEvent{
		Order: &models.Order{
			ID:               1,
			StatusID:         statusPaid,
			TotalAmount:      900,
			PaymentProcessed: sql.NullTime{Time: fixedNow, Valid: true},
		},
		Status:         statuses[statusPaid],
		PreviousStatus: statuses[statusNew],
		Paid:           true,
	})

	publisher.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishOrderLockChanged", mock.Anything, mock.Anything)
}

func TestPublishTransitionEventsKeepsGoingAfterFailure(t *testing.T) {
	publisher := &mockPublisher{}
	publisher.On("PublishOrderStatusChanged", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	publisher.On("PublishOrderLockChanged", mock.Anything, mock.MatchedBy(func(e *models.OrderLockChangedEvent) bool {
		return e.Locked && e.StatusID == statusShipped
	})).Return(nil)

	statuses := testStatuses()
	PublishTransitionEvents(publisher)(context.Background(), TransitionEvent{
		Order:       &models.Order{ID: 2, StatusID: statusShipped, Locked: true},
		Status:      statuses[statusShipped],
		LockChanged: true,
	})

	publisher.AssertExpectations(t)
}
