package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"order-status-service/internal/models"
	"order-status-service/internal/util"

	"go.uber.org/zap"
)

const (
	defaultCustomerTemplate  = `<p>Your order #{{.Order.ID}} is now <strong>{{.Status.Name}}</strong>.</p>{{if .Comment}}<p>{{.Comment}}</p>{{end}}`
	defaultRecipientTemplate = `<p>Order #{{.Order.ID}} moved{{if .PreviousStatus}} from {{.PreviousStatus.Name}}{{end}} to <strong>{{.Status.Name}}</strong>.</p>{{if .Comment}}<p>Comment: {{.Comment}}</p>{{end}}`
)

// RecipientSource lists the team addresses attached to a status
type RecipientSource interface {
	GetStatusRecipients(ctx context.Context, statusID int64) ([]models.StatusRecipient, error)
}

// Message is the data a status notification template is rendered with
type Message struct {
	Order          *models.Order
	Status         *models.OrderStatus
	PreviousStatus *models.OrderStatus
	Comment        string
}

// Dispatcher sends the customer and team emails configured on a status
type Dispatcher struct {
	sender     EmailSender
	recipients RecipientSource
	logger     *zap.Logger
}

func NewDispatcher(sender EmailSender, recipients RecipientSource) *Dispatcher {
	return &Dispatcher{
		sender:     sender,
		recipients: recipients,
		logger:     util.GetLogger(),
	}
}

// Dispatch notifies the customer and the status recipients as the status asks.
// Every address is attempted; the first delivery error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	ctx, span := util.StartSpan(ctx, "Dispatcher.Dispatch", util.OrderAttr(msg.Order.ID))
	defer span.End()

	var firstErr error
	record := func(audience string, err error) {
		if err != nil {
			util.NotificationsTotal.WithLabelValues(audience, "failed").Inc()
			d.logger.Error("Failed to send status notification",
				zap.Int64("order_id", msg.Order.ID),
				zap.String("audience", audience),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		util.NotificationsTotal.WithLabelValues(audience, "sent").Inc()
	}

	subject := fmt.Sprintf("Order #%d: %s", msg.Order.ID, msg.Status.Name)

	if msg.Status.NotifyCustomer && msg.Order.CustomerEmail != "" {
		body, err := render(msg.Status.CustomerMessageTemplate, defaultCustomerTemplate, msg)
		if err == nil {
			err = d.sender.SendEmail(ctx, msg.Order.CustomerEmail, subject, body)
		}
		record("customer", err)
	}

	if msg.Status.NotifyRecipients {
		recipients, err := d.recipients.GetStatusRecipients(ctx, msg.Status.ID)
		if err != nil {
			record("team", fmt.Errorf("failed to load status recipients: %w", err))
			return firstErr
		}

		body, err := render(msg.Status.RecipientMessageTemplate, defaultRecipientTemplate, msg)
		if err != nil {
			record("team", err)
			return firstErr
		}

		for _, r := range recipients {
			record("team", d.sender.SendEmail(ctx, r.Email, subject, body))
		}
	}

	return firstErr
}

func render(text, fallback string, msg Message) (string, error) {
	if text == "" {
		text = fallback
	}

	tmpl, err := template.New("notification").Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid notification template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, msg); err != nil {
		return "", fmt.Errorf("failed to render notification: %w", err)
	}
	return buf.String(), nil
}
