package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/vacationfavorites/apiserver/config"
)

// SendGridSender delivers through the SendGrid v3 mail API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridSender constructs a SendGridSender. The API key and sender address are required.
func NewSendGridSender(cfg config.MailConfig) (*SendGridSender, error) {
	if strings.TrimSpace(cfg.SendGridAPIKey) == "" {
		return nil, errors.New("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("missing EMAIL_FROM")
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:   mail.NewEmail("", cfg.From),
	}, nil
}

func (s *SendGridSender) Send(ctx context.Context, email Email) error {
	message := mail.NewSingleEmail(s.from, email.Subject, mail.NewEmail("", email.To), "", email.HTML)
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender constructs a LogSender that only logs outgoing mail.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, email Email) error {
	s.logger.Info().
		Str("to", email.To).
		Str("subject", email.Subject).
		Str("kind", email.Kind).
		Str("html", email.HTML).
		Msg("email")
	return nil
}

// NewSender picks the delivery provider named by cfg.Provider.
func NewSender(cfg config.MailConfig, logger zerolog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "log":
		return NewLogSender(logger), nil
	case "sendgrid", "":
		sender, err := NewSendGridSender(cfg)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unsupported EMAIL_PROVIDER %q", cfg.Provider)
	}
}
