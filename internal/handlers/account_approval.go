package handlers

import (
	"net/http"
	"net/url"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/auth"
	"github.com/diewo77/multifactors/internal/directory"
	"github.com/diewo77/multifactors/internal/httpx"
	"github.com/diewo77/multifactors/internal/models"
	"github.com/diewo77/multifactors/internal/nav"
	"github.com/diewo77/multifactors/internal/view"
	"go.uber.org/zap"
)

// AccountApprovalHandler lets admins review registrations and change
// a user's status or role. Access is enforced by the gate in front of it.
type AccountApprovalHandler struct {
	Directory *directory.Directory
	view      *view.Renderer
}

// NewAccountApprovalHandler creates a new account approval handler.
func NewAccountApprovalHandler(dir *directory.Directory, v *view.Renderer) *AccountApprovalHandler {
	return &AccountApprovalHandler{Directory: dir, view: v}
}

func sortLinks(q directory.Query) map[string]string {
	links := make(map[string]string, len(directory.SortFields))
	for _, f := range directory.SortFields {
		links[string(f)] = nav.ApprovalPath + "?" + q.Toggle(f).Values().Encode()
	}
	return links
}

func (h *AccountApprovalHandler) page(r *http.Request, q directory.Query) map[string]any {
	data := nav.Page(r, nav.Multifactors, "Account Approval")
	data["Query"] = q
	data["Users"] = h.Directory.View(q)
	data["Stats"] = h.Directory.Stats()
	data["Roles"] = models.Roles
	data["Statuses"] = models.Statuses
	data["SortLinks"] = sortLinks(q)
	return data
}

// authorize requires an approved admin profile in the request context.
func (h *AccountApprovalHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if p, ok := auth.ProfileFromContext(r.Context()); ok && p.IsAdmin() && p.IsApproved() {
		return true
	}
	logger(r.Context()).Warn("account approval denied", zap.String("path", r.URL.Path))
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return false
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	return false
}

// List reloads the directory and shows the filtered, sorted table.
func (h *AccountApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	q := directory.ParseQuery(r.URL.Query())
	loadErr := h.Directory.Load(r.Context())

	if httpx.WantsJSON(r) {
		if loadErr != nil {
			httpx.AppError(w, loadErr)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"users": h.Directory.View(q),
			"stats": h.Directory.Stats(),
		})
		return
	}

	data := h.page(r, q)
	if loadErr != nil {
		data["Error"] = "Error loading users"
	}
	render(h.view, w, r, http.StatusOK, "account_approval.html", data)
}

// Detail shows one user's profile.
func (h *AccountApprovalHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	id := r.PathValue("id")
	p, ok := h.Directory.Get(id)
	if !ok {
		// direct links arrive before the list was ever loaded
		if err := h.Directory.Load(r.Context()); err == nil {
			p, ok = h.Directory.Get(id)
		}
	}
	if !ok {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		http.NotFound(w, r)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, p)
		return
	}
	data := nav.Page(r, nav.Multifactors, "User details")
	data["User"] = &p
	render(h.view, w, r, http.StatusOK, "account_detail.html", data)
}

type statusRequest struct {
	Status string `json:"status"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// UpdateStatus approves, rejects or resets a user.
func (h *AccountApprovalHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req, func() { req.Status = r.FormValue("status") }) {
		return
	}
	id := r.PathValue("id")
	p, err := h.Directory.SetStatus(r.Context(), id, models.Status(req.Status))
	h.respond(w, r, p, err, "Error updating user status", zap.String("status", req.Status))
}

// UpdateRole promotes or demotes a user.
func (h *AccountApprovalHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.decode(w, r, &req, func() { req.Role = r.FormValue("role") }) {
		return
	}
	id := r.PathValue("id")
	p, err := h.Directory.SetRole(r.Context(), id, models.Role(req.Role))
	h.respond(w, r, p, err, "Error updating user role", zap.String("role", req.Role))
}

func (h *AccountApprovalHandler) decode(w http.ResponseWriter, r *http.Request, dst any, fromForm func()) bool {
	if !h.authorize(w, r) {
		return false
	}
	if httpx.WantsJSON(r) {
		if err := httpx.DecodeJSON(r, dst); err != nil {
			httpx.AppError(w, err)
			return false
		}
		return true
	}
	fromForm()
	return true
}

func (h *AccountApprovalHandler) respond(w http.ResponseWriter, r *http.Request, p *models.Profile, err error, failMsg string, field zap.Field) {
	log := logger(r.Context())
	admin, _ := auth.IdentityFromContext(r.Context())
	if err != nil {
		if httpx.WantsJSON(r) {
			httpx.AppError(w, err)
			return
		}
		data := h.page(r, directory.ParseQuery(backQuery(r)))
		msg := failMsg
		if apperr.KindOf(err) == apperr.KindValidation {
			msg = apperr.PublicMessage(err)
		}
		data["Error"] = msg
		render(h.view, w, r, apperr.Status(err), "account_approval.html", data)
		return
	}

	log.Info("profile updated", zap.String("profile_id", p.ID), zap.String("by", admin.UserID), field)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, p)
		return
	}
	target := nav.ApprovalPath
	if q := backQuery(r); len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// backQuery recovers the list filters from the Referer so the admin lands
// on the same view after a change.
func backQuery(r *http.Request) url.Values {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path != nav.ApprovalPath {
		return nil
	}
	return ref.Query()
}
