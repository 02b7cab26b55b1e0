package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// EmailSender delivers a rendered message
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the log instead of delivering them
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.logger.Info("Email not delivered, no mail provider configured",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_length", len(body)))
	return nil
}

// SendGridSender delivers messages through the SendGrid v3 API
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridSender(apiKey, fromAddress, fromName string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (s *SendGridSender) SendEmail(ctx context.Context, to, subject, body string) error {
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), "", body)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email to %s: status=%d body=%s", to, resp.StatusCode, resp.Body)
	}
	return nil
}
