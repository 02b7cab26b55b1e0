package service

import (
	"context"
	"errors"
	"testing"

	"order-status-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockEventStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockEventStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	return m.Called(ctx, eventID, eventType).Error(0)
}

type mockTransitioner struct {
	mock.Mock
}

func (m *mockTransitioner) Transition(ctx context.Context, order *models.Order, req TransitionRequest) (bool, error) {
	args := m.Called(ctx, order, req)
	return args.Bool(0), args.Error(1)
}

func paymentEvent(id string) *models.PaymentSuccessEvent {
	return &models.PaymentSuccessEvent{
		BaseEvent: models.BaseEvent{EventID: id, EventType: models.EventTypePaymentSuccess},
		OrderID:   1,
		PaymentID: 55,
		Amount:    900,
		TxID:      "tx-1",
	}
}

func TestHandlePaymentSuccessMovesOrderToPaid(t *testing.T) {
	events := &mockEventStore{}
	workflow := &mockTransitioner{}
	processor := NewOrderEventProcessor(events, testStatuses(), workflow, "paid", 99)
	order := &models.Order{ID: 1, StatusID: statusNew}

	events.On("IsEventProcessed", mock.Anything, "evt-1").Return(false, nil)
	events.On("GetOrderByID", mock.Anything, int64(1)).Return(order, nil)
	events.On("MarkEventProcessed", mock.Anything, "evt-1", models.EventTypePaymentSuccess).Return(nil)
	workflow.On("Transition", mock.Anything, order, mock.MatchedBy(func(req TransitionRequest) bool {
		return req.StatusID == statusPaid && req.ActorID == 99 && req.SendNotifications &&
			req.APIData["tx_id"] == "tx-1"
	})).Return(true, nil)

	require.NoError(t, processor.HandlePaymentSuccess(context.Background(), paymentEvent("evt-1")))

	events.AssertExpectations(t)
	workflow.AssertExpectations(t)
}

func TestHandlePaymentSuccessSkipsProcessedEvent(t *testing.T) {
	events := &mockEventStore{}
	workflow := &mockTransitioner{}
	processor := NewOrderEventProcessor(events, testStatuses(), workflow, "paid", 0)

	events.On("IsEventProcessed", mock.Anything, "evt-1").Return(true, nil)

	require.NoError(t, processor.HandlePaymentSuccess(context.Background(), paymentEvent("evt-1")))

	workflow.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "MarkEventProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleStatusChangeRequestedAcknowledgesRequirementFailure(t *testing.T) {
	events := &mockEventStore{}
	workflow := &mockTransitioner{}
	processor := NewOrderEventProcessor(events, testStatuses(), workflow, "paid", 0)
	order := &models.Order{ID: 1, StatusID: statusNew}

	events.On("IsEventProcessed", mock.Anything, "evt-2").Return(false, nil)
	events.On("GetOrderByID", mock.Anything, int64(1)).Return(order, nil)
	events.On("MarkEventProcessed", mock.Anything, "evt-2", models.EventTypeOrderStatusChangeRequested).Return(nil)
	workflow.On("Transition", mock.Anything, order, mock.Anything).
		Return(false, &RequirementError{StatusCode: "shipped", Message: "not ready"})

	err := processor.HandleStatusChangeRequested(context.Background(), &models.OrderStatusChangeRequestedEvent{
		BaseEvent:  models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeOrderStatusChangeRequested},
		OrderID:    1,
		StatusCode: "shipped",
	})

	require.NoError(t, err)
	events.AssertExpectations(t)
}

func TestHandleStatusChangeRequestedUnknownStatus(t *testing.T) {
	events := &mockEventStore{}
	workflow := &mockTransitioner{}
	processor := NewOrderEventProcessor(events, testStatuses(), workflow, "paid", 0)

	events.On("IsEventProcessed", mock.Anything, "evt-3").Return(false, nil)
	events.On("GetOrderByID", mock.Anything, int64(1)).Return(&models.Order{ID: 1, StatusID: statusNew}, nil)
	events.On("MarkEventProcessed", mock.Anything, "evt-3", models.EventTypeOrderStatusChangeRequested).Return(nil)

	err := processor.HandleStatusChangeRequested(context.Background(), &models.OrderStatusChangeRequestedEvent{
		BaseEvent:  models.BaseEvent{EventID: "evt-3", EventType: models.EventTypeOrderStatusChangeRequested},
		OrderID:    1,
		StatusCode: "archived",
	})

	require.NoError(t, err)
	workflow.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	events.AssertExpectations(t)
}

func TestHandleStatusChangeRequestedReturnsStoreErrors(t *testing.T) {
	events := &mockEventStore{}
	workflow := &mockTransitioner{}
	processor := NewOrderEventProcessor(events, testStatuses(), workflow, "paid", 0)
	order := &models.Order{ID: 1, StatusID: statusNew}

	events.On("IsEventProcessed", mock.Anything, "evt-4").Return(false, nil)
	events.On("GetOrderByID", mock.Anything, int64(1)).Return(order, nil)
	workflow.On("Transition", mock.Anything, order, mock.Anything).Return(false, errors.New("deadlock detected"))

	err := processor.HandleStatusChangeRequested(context.Background(), &models.OrderStatusChangeRequestedEvent{
		BaseEvent:  models.BaseEvent{EventID: "evt-4", EventType: models.EventTypeOrderStatusChangeRequested},
		OrderID:    1,
		StatusCode: "delivered",
	})

	assert.ErrorContains(t, err, "deadlock detected")
	events.AssertNotCalled(t, "MarkEventProcessed", mock.Anything, mock.Anything, mock.Anything)
}
