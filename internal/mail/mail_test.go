package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/multifactors/internal/config"
	"github.com/diewo77/multifactors/internal/models"
	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestResendSender_Send(t *testing.T) {
	var got resend.SendEmailRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	s, err := NewResendSender("re_key", srv.URL, srv.Client())
	require.NoError(t, err)
	id, err := s.Send(context.Background(), Message{From: "a@x.com", To: []string{"b@x.com"}, Subject: "hi", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "email_123", id)
	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, []string{"b@x.com"}, got.To)
	assert.Equal(t, "<p>hi</p>", got.Html)
}

func TestResendSender_ErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid from field"}`))
	}))
	defer srv.Close()

	s, err := NewResendSender("k", srv.URL, nil)
	require.NoError(t, err)
	_, err = s.Send(context.Background(), Message{From: "a", To: []string{"b"}, Subject: "s", HTML: "h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid from field")
}

func TestResendSender_UnreadableSuccessIsAnError(t *testing.T) {
	for _, body := range []string{`not json`, `{}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		}))

		s, err := NewResendSender("k", srv.URL, srv.Client())
		require.NoError(t, err)
		id, err := s.Send(context.Background(), Message{From: "a", To: []string{"b"}, Subject: "s", HTML: "h"})
		assert.Error(t, err, body)
		assert.Empty(t, id, body)
		srv.Close()
	}
}

func TestSend_ValidatesMessage(t *testing.T) {
	_, err := NewLogSender(nil).Send(context.Background(), Message{From: "a@x.com", Subject: "s", HTML: "h"})
	assert.Error(t, err)
}

func TestLogSender_Logs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))
	id, err := s.Send(context.Background(), Message{From: "a@x.com", To: []string{"b@x.com"}, Subject: "Hello", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Hello", logs.All()[0].ContextMap()["subject"])
}

func TestContactMessage_EscapesInput(t *testing.T) {
	msg, err := ContactMessage("Website Contact <onboarding@resend.dev>", "sales@x.com", ContactForm{
		Name:    "<script>alert(1)</script>",
		Email:   "v@x.com",
		Message: "Hi & bye",
	})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.Contains(t, msg.HTML, "Hi &amp; bye")
	assert.Equal(t, []string{"sales@x.com"}, msg.To)
	assert.Equal(t, "v@x.com", msg.ReplyTo)
}

type captureSender struct{ msgs []Message }

func (c *captureSender) Send(_ context.Context, m Message) (string, error) {
	c.msgs = append(c.msgs, m)
	return "id", nil
}

func TestStatusNotifier(t *testing.T) {
	c := &captureSender{}
	n := &StatusNotifier{Sender: c, From: "noreply@x.com", LoginURL: "https://app/login"}

	require.NoError(t, n.StatusChanged(context.Background(), &models.Profile{FirstName: "Jane", Email: "jane@x.com", Status: models.StatusApproved}))
	require.NoError(t, n.StatusChanged(context.Background(), &models.Profile{Email: "joe@x.com", Status: models.StatusRejected}))
	require.NoError(t, n.StatusChanged(context.Background(), &models.Profile{Status: models.StatusApproved}))

	require.Len(t, c.msgs, 2)
	assert.Contains(t, c.msgs[0].HTML, "approved")
	assert.Contains(t, c.msgs[0].HTML, "https://app/login")
	assert.Contains(t, c.msgs[1].HTML, "rejected")
	assert.Equal(t, []string{"joe@x.com"}, c.msgs[1].To)
}

func TestBuildMessage(t *testing.T) {
	raw := string(buildMessage(Message{From: "a@x.com", To: []string{"b@x.com", "c@x.com"}, ReplyTo: "r@x.com", Subject: "Hi", HTML: "<p>x</p>"}, "abc@host"))
	assert.True(t, strings.HasPrefix(raw, "From: a@x.com\r\n"))
	assert.Contains(t, raw, "To: b@x.com, c@x.com\r\n")
	assert.Contains(t, raw, "Reply-To: r@x.com\r\n")
	assert.Contains(t, raw, "Message-ID: <abc@host>\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>x</p>"))
}

func TestNew_Drivers(t *testing.T) {
	s, err := New(config.MailConfig{Driver: "log"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	_, err = New(config.MailConfig{Driver: "resend"}, nil)
	assert.Error(t, err)

	s, err = New(config.MailConfig{Driver: "smtp", SMTPHost: "mail.x.com", SMTPPort: "465"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	_, err = New(config.MailConfig{Driver: "pigeon"}, nil)
	assert.Error(t, err)
}
