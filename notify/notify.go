package notify

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/logger"
)

// Notifier delivers a share notification to the recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// CreateNotifier creates a notifier based on configuration
func CreateNotifier(cfg *config.NotifierConfig, log logger.Logger) (Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notifier configuration: %w", err)
	}

	switch cfg.NotifierType {
	case config.NotifierTypeSMTP:
		return NewSMTPNotifier(cfg.SMTP, log), nil
	case config.NotifierTypeNone, "":
		return NewNoOpNotifier(), nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", cfg.NotifierType)
	}
}

var _ Notifier = (*SMTPNotifier)(nil)

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
	logger logger.Logger
}

func NewSMTPNotifier(cfg *config.SMTPConfig, log logger.Logger) *SMTPNotifier {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SMTPNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: log,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// gomail has no context support, so run the send on the side and let a
	// cancelled context abandon the wait (the SMTP dial has its own timeout)
	done := make(chan error, 1)
	go func() {
		done <- n.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail to %s: %w", to, err)
		}
		n.logger.Debug("Notification mail sent to %s", to)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Notifier = (*NoOpNotifier)(nil)

// NoOpNotifier swallows every notification. Used when no mail relay is
// configured.
type NoOpNotifier struct{}

func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

func (n *NoOpNotifier) Send(ctx context.Context, to, subject, body string) error {
	return nil
}
