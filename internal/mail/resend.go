package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender sends messages through the Resend API.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender creates a sender; client defaults to a 10s timeout client.
// baseURL overrides the API endpoint and is mostly useful in tests.
func NewResendSender(apiKey, baseURL string, client *http.Client) (*ResendSender, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	c := resend.NewCustomClient(client, apiKey)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("mail: resend url: %w", err)
		}
		c.BaseURL = u
	}
	return &ResendSender{client: c}, nil
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	if sent == nil || sent.Id == "" {
		return "", errors.New("resend: response carried no email id")
	}
	return sent.Id, nil
}
