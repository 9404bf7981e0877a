package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/httpx"
	"github.com/diewo77/multifactors/internal/mail"
	"github.com/diewo77/multifactors/internal/validation"
	"go.uber.org/zap"
)

// ContactHandler forwards landing page enquiries by email.
type ContactHandler struct {
	Sender mail.Sender
	From   string
	To     string
}

func NewContactHandler(sender mail.Sender, from, to string) *ContactHandler {
	return &ContactHandler{Sender: sender, From: from, To: to}
}

// Send validates the enquiry and sends exactly one email.
// Responses are always JSON: {success, data:{id}} or {success:false, error}.
func (h *ContactHandler) Send(w http.ResponseWriter, r *http.Request) {
	var form mail.ContactForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body"})
			return
		}
	} else {
		form = mail.ContactForm{Name: r.FormValue("name"), Email: r.FormValue("email"), Message: r.FormValue("message")}
	}
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Message = strings.TrimSpace(form.Message)

	v := validation.Violations{}
	validation.Required("name", form.Name, "Name is required", v)
	validation.Required("email", form.Email, "Email is required", v)
	validation.Email("email", form.Email, "Please enter a valid email address", v)
	validation.Required("message", form.Message, "Message is required", v)
	if !v.Empty() {
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Please fill in all fields correctly", "details": v})
		return
	}

	msg, err := mail.ContactMessage(h.From, h.To, form)
	if err != nil {
		logger(r.Context()).Error("render contact email", zap.Error(err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Could not send your message"})
		return
	}
	id, err := h.Sender.Send(r.Context(), msg)
	if err != nil {
		logger(r.Context()).Error("send contact email", zap.Error(err))
		httpx.JSON(w, apperr.Status(err), map[string]any{"success": false, "error": "Could not send your message. Please try again later."})
		return
	}

	logger(r.Context()).Info("contact email sent", zap.String("email_id", id))
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"id": id}})
}
