package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/auth"
	"github.com/diewo77/multifactors/internal/httpx"
	"github.com/diewo77/multifactors/internal/models"
	"github.com/diewo77/multifactors/internal/storage"
	"github.com/diewo77/multifactors/internal/store"
	"github.com/diewo77/multifactors/internal/validation"
	"github.com/diewo77/multifactors/internal/view"
	"go.uber.org/zap"
)

// AccountSettingsHandler lets a signed-in user edit their own profile.
type AccountSettingsHandler struct {
	Auth     auth.Service
	Profiles store.ProfileStore
	Storage  storage.Storage
	Sessions *auth.Sessions
	cache    Invalidator
	view     *view.Renderer
}

func NewAccountSettingsHandler(svc auth.Service, profiles store.ProfileStore, st storage.Storage, sessions *auth.Sessions, cache Invalidator, v *view.Renderer) *AccountSettingsHandler {
	return &AccountSettingsHandler{Auth: svc, Profiles: profiles, Storage: st, Sessions: sessions, cache: orNoop(cache), view: v}
}

type settingsForm struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (f *settingsForm) trim() {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
}

func (f settingsForm) validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("first_name", f.FirstName, "First name is required", v)
	validation.Required("last_name", f.LastName, "Last name is required", v)
	validation.Required("email", f.Email, "Email is required", v)
	validation.Email("email", f.Email, "Invalid email format", v)
	if f.NewPassword != "" {
		validation.MinLength("new_password", f.NewPassword, 8, "Password must be at least 8 characters", v)
		validation.Match("confirm_password", f.ConfirmPassword, f.NewPassword, "Passwords do not match", v)
	}
	return v
}

func formOf(p *models.Profile) map[string]string {
	return map[string]string{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"email":      p.Email,
		"phone":      p.Phone,
		"address":    p.Address,
		"avatar_url": p.AvatarURL,
	}
}

// load returns the caller's profile. A missing row is not an error; the
// returned profile is then prefilled from the identity.
func (h *AccountSettingsHandler) load(r *http.Request, id auth.Identity) (*models.Profile, error) {
	p, err := h.Profiles.Get(r.Context(), id.UserID)
	if errors.Is(err, apperr.NotFound) {
		return &models.Profile{ID: id.UserID, Email: id.Email}, nil
	}
	return p, err
}

// Edit shows the settings form.
func (h *AccountSettingsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	p, err := h.load(r, id)
	if err != nil {
		logger(r.Context()).Error("load profile", zap.String("user_id", id.UserID), zap.Error(err))
		if httpx.WantsJSON(r) {
			httpx.AppError(w, err)
			return
		}
		render(h.view, w, r, http.StatusBadGateway, "account_settings.html", map[string]any{
			"Title": "Account settings",
			"Error": apperr.PublicMessage(err),
		})
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, p)
		return
	}
	data := map[string]any{"Title": "Account settings", "Form": formOf(p)}
	switch r.URL.Query().Get("saved") {
	case "profile":
		data["Success"] = "Profile updated successfully"
	case "avatar":
		data["Success"] = "Avatar updated successfully"
	}
	render(h.view, w, r, http.StatusOK, "account_settings.html", data)
}

// Update saves the owner-editable profile fields and, when changed, the
// sign-in email and password.
func (h *AccountSettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	wantsJSON := httpx.WantsJSON(r)

	var form settingsForm
	if wantsJSON {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.AppError(w, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		form = settingsForm{
			FirstName:       r.FormValue("first_name"),
			LastName:        r.FormValue("last_name"),
			Email:           r.FormValue("email"),
			Phone:           r.FormValue("phone"),
			Address:         r.FormValue("address"),
			NewPassword:     r.FormValue("new_password"),
			ConfirmPassword: r.FormValue("confirm_password"),
		}
	}
	form.trim()

	current, err := h.load(r, id)
	if err == nil {
		err = form.validate().Err()
	}
	if err == nil {
		err = h.save(w, r, id, current, form)
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUpstream {
			logger(r.Context()).Error("save account settings", zap.String("user_id", id.UserID), zap.Error(err))
		}
		if wantsJSON {
			httpx.AppError(w, err)
			return
		}
		data := map[string]any{"Title": "Account settings"}
		values := map[string]string{
			"first_name": form.FirstName,
			"last_name":  form.LastName,
			"email":      form.Email,
			"phone":      form.Phone,
			"address":    form.Address,
		}
		if current != nil {
			values["avatar_url"] = current.AvatarURL
		}
		data["Form"] = values
		var ae *apperr.Error
		if errors.As(err, &ae) && len(ae.Fields) > 0 {
			data["Errors"] = ae.Fields
		} else {
			data["Error"] = apperr.PublicMessage(err)
		}
		render(h.view, w, r, apperr.Status(err), "account_settings.html", data)
		return
	}

	if wantsJSON {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	http.Redirect(w, r, "/account-settings?saved=profile", http.StatusSeeOther)
}

func (h *AccountSettingsHandler) save(w http.ResponseWriter, r *http.Request, id auth.Identity, current *models.Profile, form settingsForm) error {
	ctx := r.Context()
	p := &models.Profile{
		ID:        id.UserID,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     strings.ToLower(form.Email),
		Phone:     form.Phone,
		Address:   form.Address,
		AvatarURL: current.AvatarURL,
	}

	// The identity is updated first so a rejected email never reaches the profile row.
	var upd auth.UserUpdate
	if !strings.EqualFold(p.Email, id.Email) {
		upd.Email = &p.Email
	}
	if form.NewPassword != "" {
		upd.Password = &form.NewPassword
	}
	var user *models.User
	if upd.Email != nil || upd.Password != nil {
		var err error
		if user, err = h.Auth.UpdateUser(ctx, id.UserID, upd); err != nil {
			return err
		}
	}

	if err := h.Profiles.Upsert(ctx, p); err != nil {
		return err
	}
	h.cache.Invalidate(id.UserID)

	if upd.Email != nil && h.Sessions != nil {
		// the session carries the email shown in the header
		return h.Sessions.Create(w, auth.Identity{UserID: user.ID, Email: user.Email})
	}
	return nil
}

// UploadAvatar stores a new profile picture and records its public URL.
func (h *AccountSettingsHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	wantsJSON := httpx.WantsJSON(r)

	fail := func(err error) {
		if apperr.KindOf(err) == apperr.KindUpstream {
			logger(r.Context()).Error("upload avatar", zap.String("user_id", id.UserID), zap.Error(err))
		}
		if wantsJSON {
			httpx.AppError(w, err)
			return
		}
		data := map[string]any{"Title": "Account settings"}
		if p, lerr := h.load(r, id); lerr == nil {
			data["Form"] = formOf(p)
		}
		var ae *apperr.Error
		if errors.As(err, &ae) && len(ae.Fields) > 0 {
			data["Errors"] = ae.Fields
		} else {
			data["Error"] = apperr.PublicMessage(err)
		}
		render(h.view, w, r, apperr.Status(err), "account_settings.html", data)
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxAvatarSize+1<<20)
	if err := r.ParseMultipartForm(storage.MaxAvatarSize); err != nil {
		fail(apperr.Invalid(map[string]string{"avatar": "Image must be 5 MB or smaller"}))
		return
	}
	file, _, err := r.FormFile("avatar")
	if err != nil {
		fail(apperr.Invalid(map[string]string{"avatar": "Please choose an image"}))
		return
	}
	defer file.Close()

	url, err := storage.SaveAvatar(r.Context(), h.Storage, id.UserID, file)
	if err != nil {
		fail(err)
		return
	}

	_, err = h.Profiles.Update(r.Context(), id.UserID, store.Patch{AvatarURL: &url})
	if errors.Is(err, apperr.NotFound) {
		err = h.Profiles.Upsert(r.Context(), &models.Profile{ID: id.UserID, Email: id.Email, AvatarURL: url})
	}
	if err != nil {
		fail(err)
		return
	}
	h.cache.Invalidate(id.UserID)

	if wantsJSON {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
		return
	}
	http.Redirect(w, r, "/account-settings?saved=avatar", http.StatusSeeOther)
}
