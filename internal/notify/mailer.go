package notify

import (
	"context"
	"fmt"

	"assetbook/internal/config"
	"assetbook/internal/domain"
	"assetbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *SendGridMailer) Send(ctx context.Context, msg models.Email) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

// LogMailer only logs outgoing mail. Used when no API key is configured.
type LogMailer struct {
	logger *zerolog.Logger
}

func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(_ context.Context, msg models.Email) error {
	l.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("category", msg.Category).
		Msg(msg.Text)
	return nil
}

// NewMailer picks SendGrid when an API key is configured.
func NewMailer(cfg config.EmailConfig, logger *zerolog.Logger) domain.Mailer {
	if cfg.SendGridAPIKey == "" {
		logger.Warn().Msg("SendGrid API key not set, outgoing mail is only logged")
		return NewLogMailer(logger)
	}
	return NewSendGridMailer(cfg.SendGridAPIKey, cfg.FromAddress, cfg.FromName)
}
