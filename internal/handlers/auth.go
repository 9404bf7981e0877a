package handlers

import (
	"net/http"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/auth"
	"github.com/diewo77/multifactors/internal/httpx"
	"github.com/diewo77/multifactors/internal/view"
	"go.uber.org/zap"
)

// DashboardPath is where a signed-in user lands by default.
const DashboardPath = "/multifactors/dashboard"

type AuthHandler struct {
	Auth      auth.Service
	Sessions  *auth.Sessions
	Providers *auth.ProviderSignIn
	view      *view.Renderer
}

func NewAuthHandler(svc auth.Service, sessions *auth.Sessions, providers *auth.ProviderSignIn, v *view.Renderer) *AuthHandler {
	return &AuthHandler{Auth: svc, Sessions: sessions, Providers: providers, view: v}
}

func afterLogin(next string) string {
	if n := auth.SafeNext(next); n != "/" {
		return n
	}
	return DashboardPath
}

func (h *AuthHandler) googleEnabled() bool {
	return h.Providers != nil && h.Providers.Enabled("google")
}

// LoginPage renders the sign-in form. Signed-in users go straight to the dashboard.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect")
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, afterLogin(redirect), http.StatusSeeOther)
		return
	}
	render(h.view, w, r, http.StatusOK, "login.html", map[string]any{
		"Title":         "Sign in",
		"Redirect":      auth.SafeNext(redirect),
		"GoogleEnabled": h.googleEnabled(),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect"`
}

// Login checks email and password and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	wantsJSON := httpx.WantsJSON(r)
	var req loginRequest
	if wantsJSON {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.AppError(w, err)
			return
		}
	} else {
		req = loginRequest{Email: r.FormValue("email"), Password: r.FormValue("password"), Redirect: r.FormValue("redirect")}
	}

	user, err := h.Auth.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err == nil {
		err = h.Sessions.Create(w, auth.Identity{UserID: user.ID, Email: user.Email})
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUpstream {
			logger(r.Context()).Error("sign in", zap.Error(err))
		}
		if wantsJSON {
			httpx.JSON(w, apperr.Status(err), map[string]any{"success": false, "error": apperr.PublicMessage(err)})
			return
		}
		render(h.view, w, r, apperr.Status(err), "login.html", map[string]any{
			"Title":         "Sign in",
			"Error":         apperr.PublicMessage(err),
			"Email":         req.Email,
			"Redirect":      auth.SafeNext(req.Redirect),
			"GoogleEnabled": h.googleEnabled(),
		})
		return
	}

	target := afterLogin(req.Redirect)
	if wantsJSON {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "redirect": target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// OAuthStart redirects the browser to the provider's consent screen.
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.Providers == nil {
		http.NotFound(w, r)
		return
	}
	url, nonce, err := h.Providers.SignInWithProvider(r.PathValue("provider"), r.URL.Query().Get("redirect"))
	if err != nil {
		http.Error(w, apperr.PublicMessage(err), apperr.Status(err))
		return
	}
	auth.SetNonceCookie(w, nonce, h.Sessions != nil && h.Sessions.Secure)
	http.Redirect(w, r, url, http.StatusFound)
}

// OAuthCallback finishes provider sign-in and starts a session.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.Providers == nil {
		http.NotFound(w, r)
		return
	}
	provider := r.PathValue("provider")
	q := r.URL.Query()
	nonce := auth.TakeNonceCookie(w, r)

	fail := func(status int, msg string) {
		render(h.view, w, r, status, "login.html", map[string]any{
			"Title":         "Sign in",
			"Error":         msg,
			"Redirect":      "/",
			"GoogleEnabled": h.googleEnabled(),
		})
	}
	if e := q.Get("error"); e != "" {
		logger(r.Context()).Info("provider sign-in cancelled", zap.String("provider", provider), zap.String("error", e))
		fail(http.StatusUnauthorized, "Failed to sign in with Google. Please try again.")
		return
	}

	user, next, err := h.Providers.CompleteProvider(r.Context(), provider, q.Get("state"), nonce, q.Get("code"))
	if err == nil {
		err = h.Sessions.Create(w, auth.Identity{UserID: user.ID, Email: user.Email})
	}
	if err != nil {
		logger(r.Context()).Warn("provider sign-in failed", zap.String("provider", provider), zap.Error(err))
		fail(apperr.Status(err), apperr.PublicMessage(err))
		return
	}
	http.Redirect(w, r, afterLogin(next), http.StatusSeeOther)
}

// Logout clears the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.SignOut(w)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
