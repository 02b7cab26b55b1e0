package notify

import (
	"context"
	"errors"
	"testing"

	"order-status-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

type staticRecipients []models.StatusRecipient

func (s staticRecipients) GetStatusRecipients(ctx context.Context, statusID int64) ([]models.StatusRecipient, error) {
	return s, nil
}

func TestDispatchCustomerTemplate(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendEmail", mock.Anything, "jane@example.com", "Order #12: Shipped",
		"Hi, order 12 left as Shipped (was New). Tracking 1Z").Return(nil)

	d := NewDispatcher(sender, staticRecipients{})
	err := d.Dispatch(context.Background(), Message{
		Order: &models.Order{ID: 12, CustomerEmail: "jane@example.com"},
		Status: &models.OrderStatus{
			ID:                      3,
			Name:                    "Shipped",
			NotifyCustomer:          true,
			CustomerMessageTemplate: "Hi, order {{.Order.ID}} left as {{.Status.Name}} (was {{.PreviousStatus.Name}}). {{.Comment}}",
		},
		PreviousStatus: &models.OrderStatus{ID: 1, Name: "New"},
		Comment:        "Tracking 1Z",
	})

	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestDispatchRecipientsUseDefaultTemplate(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendEmail", mock.Anything, mock.Anything, "Order #12: Paid", mock.MatchedBy(func(body string) bool {
		return body == "<p>Order #12 moved to <strong>Paid</strong>.</p>"
	})).Return(nil)

	d := NewDispatcher(sender, staticRecipients{
		{StatusID: 2, Email: "ops@example.com"},
		{StatusID: 2, Email: "finance@example.com"},
	})
	err := d.Dispatch(context.Background(), Message{
		Order:  &models.Order{ID: 12, CustomerEmail: "jane@example.com"},
		Status: &models.OrderStatus{ID: 2, Name: "Paid", NotifyRecipients: true},
	})

	require.NoError(t, err)
	sender.AssertNumberOfCalls(t, "SendEmail", 2)
	sender.AssertCalled(t, "SendEmail", mock.Anything, "ops@example.com", mock.Anything, mock.Anything)
	sender.AssertCalled(t, "SendEmail", mock.Anything, "finance@example.com", mock.Anything, mock.Anything)
}

func TestDispatchSkipsCustomerWithoutEmail(t *testing.T) {
	sender := &mockSender{}
	d := NewDispatcher(sender, staticRecipients{})

	err := d.Dispatch(context.Background(), Message{
		Order:  &models.Order{ID: 12},
		Status: &models.OrderStatus{ID: 2, Name: "Paid", NotifyCustomer: true},
	})

	require.NoError(t, err)
	sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchReturnsFirstErrorAfterTryingEveryone(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendEmail", mock.Anything, "jane@example.com", mock.Anything, mock.Anything).Return(errors.New("mailbox full"))
	sender.On("SendEmail", mock.Anything, "ops@example.com", mock.Anything, mock.Anything).Return(nil)

	d := NewDispatcher(sender, staticRecipients{{StatusID: 2, Email: "ops@example.com"}})
	err := d.Dispatch(context.Background(), Message{
		Order:  &models.Order{ID: 12, CustomerEmail: "jane@example.com"},
		Status: &models.OrderStatus{ID: 2, Name: "Paid", NotifyCustomer: true, NotifyRecipients: true},
	})

	assert.EqualError(t, err, "mailbox full")
	sender.AssertExpectations(t)
}

func TestDispatchRejectsInvalidTemplate(t *testing.T) {
	sender := &mockSender{}
	d := NewDispatcher(sender, staticRecipients{})

	err := d.Dispatch(context.Background(), Message{
		Order:  &models.Order{ID: 12, CustomerEmail: "jane@example.com"},
		Status: &models.OrderStatus{ID: 2, Name: "Paid", NotifyCustomer: true, CustomerMessageTemplate: "{{.Order.ID"},
	})

	assert.ErrorContains(t, err, "invalid notification template")
	sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
