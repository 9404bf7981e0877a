package mail

import (
	"bytes"
	"context"
	"html/template"

	"github.com/diewo77/multifactors/internal/models"
)

var (
	contactTmpl = template.Must(template.New("contact").Parse(`<h2>New Message from Website</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Message:</strong></p>
<p>{{.Message}}</p>
`))

	statusTmpl = template.Must(template.New("status").Parse(`<h2>Hello {{if .Name}}{{.Name}}{{else}}there{{end}},</h2>
{{if .Approved}}<p>Your Multifactors account has been <strong>approved</strong>. You can now sign in and use the dashboard.</p>
<p><a href="{{.LoginURL}}">Sign in</a></p>
{{else}}<p>Your Multifactors account request has been <strong>rejected</strong>.</p>
<p>If you believe this is a mistake, reply to this email.</p>
{{end}}`))
)

// ContactForm is a landing page enquiry.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ContactMessage renders the enquiry with user input escaped. Replies go to
// the visitor.
func ContactMessage(from, to string, f ContactForm) (Message, error) {
	var buf bytes.Buffer
	if err := contactTmpl.Execute(&buf, f); err != nil {
		return Message{}, err
	}
	return Message{
		From:    from,
		To:      []string{to},
		ReplyTo: f.Email,
		Subject: "📩 New Contact Form Submission",
		HTML:    buf.String(),
	}, nil
}

// StatusMessage renders the approved or rejected notice for p.
func StatusMessage(from, loginURL string, p *models.Profile) (Message, error) {
	var buf bytes.Buffer
	data := struct {
		Name     string
		Approved bool
		LoginURL string
	}{p.FirstName, p.Status == models.StatusApproved, loginURL}
	if err := statusTmpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	subject := "Your Multifactors account was approved"
	if !data.Approved {
		subject = "Your Multifactors account request"
	}
	return Message{From: from, To: []string{p.Email}, Subject: subject, HTML: buf.String()}, nil
}

// StatusNotifier emails users when an admin approves or rejects them.
type StatusNotifier struct {
	Sender   Sender
	From     string
	LoginURL string
}

// StatusChanged sends the notice for p's current status.
func (n *StatusNotifier) StatusChanged(ctx context.Context, p *models.Profile) error {
	if p.Email == "" {
		return nil
	}
	msg, err := StatusMessage(n.From, n.LoginURL, p)
	if err != nil {
		return err
	}
	_, err = n.Sender.Send(ctx, msg)
	return err
}
