// Package mail sends transactional email through one configured driver.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/multifactors/internal/config"
	"go.uber.org/zap"
)

// Message is a single outbound email. HTML is required; Text is optional.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

func (m Message) validate() error {
	if m.From == "" {
		return errors.New("mail: missing sender")
	}
	if len(m.To) == 0 {
		return errors.New("mail: missing recipient")
	}
	if m.Subject == "" || m.HTML == "" {
		return errors.New("mail: missing subject or body")
	}
	return nil
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// New builds the sender selected by cfg.Driver.
func New(cfg config.MailConfig, log *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Driver) {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, errors.New("mail: RESEND_API_KEY is required for the resend driver")
		}
		return NewResendSender(cfg.ResendAPIKey, cfg.ResendURL, nil)
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, errors.New("mail: SMTP_HOST is required for the smtp driver")
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass), nil
	case "", "log":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("mail: unknown driver %q", cfg.Driver)
	}
}
