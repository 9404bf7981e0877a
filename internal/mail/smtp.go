package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SMTPSender delivers over implicit TLS (port 465) with PLAIN auth.
type SMTPSender struct {
	smtpHost string
	smtpPort string
	username string
	password string
	dialer   net.Dialer
}

func NewSMTPSender(host, port, user, pass string) *SMTPSender {
	return &SMTPSender{
		smtpHost: host,
		smtpPort: port,
		username: user,
		password: pass,
		dialer:   net.Dialer{Timeout: 10 * time.Second},
	}
}

// Send implements Sender. The returned id is the generated Message-ID.
func (e *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}
	from, err := netmail.ParseAddress(msg.From)
	if err != nil {
		return "", fmt.Errorf("smtp: sender: %w", err)
	}
	id := uuid.NewString() + "@" + e.smtpHost
	body := buildMessage(msg, id)

	raw, err := e.dialer.DialContext(ctx, "tcp", net.JoinHostPort(e.smtpHost, e.smtpPort))
	if err != nil {
		return "", err
	}
	conn := tls.Client(raw, &tls.Config{ServerName: e.smtpHost})
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.smtpHost)
	if err != nil {
		return "", err
	}
	defer client.Quit()

	if e.username != "" {
		if err := client.Auth(smtp.PlainAuth("", e.username, e.password, e.smtpHost)); err != nil {
			return "", err
		}
	}
	if err := client.Mail(from.Address); err != nil {
		return "", err
	}
	for _, to := range msg.To {
		addr, err := netmail.ParseAddress(to)
		if err != nil {
			return "", fmt.Errorf("smtp: recipient: %w", err)
		}
		if err := client.Rcpt(addr.Address); err != nil {
			return "", err
		}
	}

	w, err := client.Data()
	if err != nil {
		return "", err
	}
	if _, err := w.Write(body); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return id, nil
}

// buildMessage renders headers and the HTML body.
func buildMessage(msg Message, id string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Message-ID: <%s>\r\n", id)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}
