package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/auth"
	"github.com/diewo77/multifactors/internal/httpx"
	"github.com/diewo77/multifactors/internal/validation"
	"github.com/diewo77/multifactors/internal/view"
	"go.uber.org/zap"
)

const (
	msgCheckEmail = "Account created successfully! Please check your email to verify your account."
	msgLoggedIn   = "Account created successfully! You are now logged in."
)

// RegistrationHandler serves the sign-up form.
type RegistrationHandler struct {
	Auth     auth.Service
	Sessions *auth.Sessions
	view     *view.Renderer
}

func NewRegistrationHandler(svc auth.Service, sessions *auth.Sessions, v *view.Renderer) *RegistrationHandler {
	return &RegistrationHandler{Auth: svc, Sessions: sessions, view: v}
}

type registrationForm struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (f registrationForm) values() map[string]string {
	return map[string]string{"first_name": f.FirstName, "last_name": f.LastName, "email": f.Email}
}

// validate stops at the first failing rule and returns its message along
// with the offending field.
func (f registrationForm) validate() (validation.Violations, string) {
	v := validation.Violations{}
	validation.Required("first_name", f.FirstName, "Required", v)
	validation.Required("last_name", f.LastName, "Required", v)
	validation.Required("email", f.Email, "Required", v)
	validation.Required("password", f.Password, "Required", v)
	validation.Required("confirm_password", f.ConfirmPassword, "Required", v)
	if !v.Empty() {
		return v, "All fields are required"
	}

	checks := []struct {
		field string
		check func(validation.Violations)
	}{
		{"email", func(v validation.Violations) {
			validation.Email("email", f.Email, "Please enter a valid email address", v)
		}},
		{"confirm_password", func(v validation.Violations) {
			validation.Match("confirm_password", f.ConfirmPassword, f.Password, "Passwords don't match", v)
		}},
		{"password", func(v validation.Violations) {
			validation.MinLength("password", f.Password, 6, "Password must be at least 6 characters long", v)
		}},
		{"first_name", func(v validation.Violations) {
			validation.MaxLength("first_name", strings.TrimSpace(f.FirstName), 50, "First name must be 50 characters or fewer", v)
		}},
		{"last_name", func(v validation.Violations) {
			validation.MaxLength("last_name", strings.TrimSpace(f.LastName), 50, "Last name must be 50 characters or fewer", v)
		}},
		{"email", func(v validation.Violations) {
			validation.MaxLength("email", strings.TrimSpace(f.Email), 100, "Email must be 100 characters or fewer", v)
		}},
	}
	for _, c := range checks {
		c.check(v)
		if msg, failed := v[c.field]; failed {
			return v, msg
		}
	}
	return nil, ""
}

// Page renders the empty form.
func (h *RegistrationHandler) Page(w http.ResponseWriter, r *http.Request) {
	render(h.view, w, r, http.StatusOK, "register.html", map[string]any{"Title": "Create an account"})
}

// Register validates the form and signs the user up. Nothing is sent to the
// auth service unless every rule passes.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	wantsJSON := httpx.WantsJSON(r)
	var form registrationForm
	if wantsJSON {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.AppError(w, err)
			return
		}
	} else {
		form = registrationForm{
			FirstName:       r.FormValue("first_name"),
			LastName:        r.FormValue("last_name"),
			Email:           r.FormValue("email"),
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirm_password"),
		}
	}

	fail := func(status int, msg string, fields validation.Violations) {
		if wantsJSON {
			body := map[string]any{"success": false, "error": msg}
			if len(fields) > 0 {
				body["details"] = fields
			}
			httpx.JSON(w, status, body)
			return
		}
		data := map[string]any{"Title": "Create an account", "Error": msg, "Form": form.values()}
		if len(fields) > 0 {
			data["Errors"] = map[string]string(fields)
		}
		render(h.view, w, r, status, "register.html", data)
	}

	if fields, msg := form.validate(); msg != "" {
		fail(http.StatusBadRequest, msg, fields)
		return
	}

	res, err := h.Auth.SignUp(r.Context(), strings.TrimSpace(form.Email), form.Password, auth.SignUpMetadata{
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUpstream {
			logger(r.Context()).Error("sign up", zap.Error(err))
		}
		fail(apperr.Status(err), apperr.PublicMessage(err), nil)
		return
	}

	msg := msgCheckEmail
	if res.Session {
		if err := h.Sessions.Create(w, auth.Identity{UserID: res.User.ID, Email: res.User.Email}); err != nil {
			logger(r.Context()).Error("start session after sign up", zap.Error(err))
		} else {
			msg = msgLoggedIn
		}
	}
	logger(r.Context()).Info("user registered", zap.String("user_id", res.User.ID), zap.Bool("session", res.Session))

	if wantsJSON {
		httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "message": msg, "session": res.Session})
		return
	}
	render(h.view, w, r, http.StatusOK, "register.html", map[string]any{"Title": "Create an account", "Success": msg})
}
