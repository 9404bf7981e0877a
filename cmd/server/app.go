package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/multifactors/internal/auth"
	"github.com/diewo77/multifactors/internal/logging"
	"github.com/diewo77/multifactors/internal/nav"
	"github.com/diewo77/multifactors/internal/policy"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

// AppOptions are the HTTP settings that do not belong to a handler.
type AppOptions struct {
	AllowOrigins     []string
	StorageDir       string
	StoragePublicURL string
	// Per-IP request budgets per minute
	ContactLimit int
	AuthLimit    int
}

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	handler   http.Handler
	routerCfg *policy.RouterConfig
	opts      AppOptions
}

// NewApp creates a new application with all routes configured.
func NewApp(routerCfg *policy.RouterConfig, log *zap.Logger, opts AppOptions) *App {
	if opts.ContactLimit <= 0 {
		opts.ContactLimit = 5
	}
	if opts.AuthLimit <= 0 {
		opts.AuthLimit = 10
	}
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
		opts:      opts,
	}
	app.setupRoutes()
	// Global middleware: request logging, then the session identity
	app.handler = logging.Middleware(log)(routerCfg.Sessions.Middleware(app.mux))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	ph := a.routerCfg.PagesHandler
	ah := a.routerCfg.AuthHandler
	rh := a.routerCfg.RegistrationHandler
	authLimit := httprate.LimitByIP(a.opts.AuthLimit, time.Minute)

	a.mux.HandleFunc("GET /{$}", ph.Landing)
	a.mux.HandleFunc("GET /login", ah.LoginPage)
	a.mux.Handle("POST /auth/login", authLimit(http.HandlerFunc(ah.Login)))
	a.mux.HandleFunc("GET /auth/oauth/{provider}", ah.OAuthStart)
	a.mux.HandleFunc("GET /auth/oauth/{provider}/callback", ah.OAuthCallback)
	a.mux.HandleFunc("POST /auth/logout", ah.Logout)
	a.mux.HandleFunc("GET /auth/registration", rh.Page)
	a.mux.Handle("POST /auth/registration", authLimit(http.HandlerFunc(rh.Register)))

	// ─────────────────────────────────────────────────────────────────────────
	// Public API (CORS + per-IP rate limit)
	// ─────────────────────────────────────────────────────────────────────────
	api := cors.Handler(cors.Options{
		AllowedOrigins: a.opts.AllowOrigins,
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", logging.RequestIDHeader},
		ExposedHeaders: []string{logging.RequestIDHeader},
		MaxAge:         300,
	})
	contact := api(httprate.LimitByIP(a.opts.ContactLimit, time.Minute)(http.HandlerFunc(a.routerCfg.ContactHandler.Send)))
	for _, path := range []string{"/api/send-email", "/api/sendEmail"} {
		a.mux.Handle("POST "+path, contact)
		a.mux.Handle("OPTIONS "+path, contact)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated routes (any signed-in user, approved or not)
	// ─────────────────────────────────────────────────────────────────────────
	sh := a.routerCfg.AccountSettingsHandler
	a.mux.Handle("GET /account-settings", auth.RequireAuth(http.HandlerFunc(sh.Edit)))
	a.mux.Handle("POST /account-settings", auth.RequireAuth(http.HandlerFunc(sh.Update)))
	a.mux.Handle("POST /account-settings/avatar", auth.RequireAuth(http.HandlerFunc(sh.UploadAvatar)))

	// ─────────────────────────────────────────────────────────────────────────
	// Dashboard sections (gated)
	// ─────────────────────────────────────────────────────────────────────────
	for _, section := range nav.Sections {
		page := a.gated(section, ph.Section(section))
		a.mux.Handle("GET "+section.Prefix(), page)
		a.mux.Handle("GET "+section.Prefix()+"/{$}", page)
		a.mux.Handle("GET "+section.Prefix()+"/{page}", page)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes (the gate's admin prefixes cover these)
	// ─────────────────────────────────────────────────────────────────────────
	aah := a.routerCfg.AccountApprovalHandler
	a.mux.Handle("GET "+nav.ApprovalPath, a.gated(nav.Multifactors, aah.List))
	a.mux.Handle("GET "+nav.ApprovalPath+"/{id}", a.gated(nav.Multifactors, aah.Detail))
	a.mux.Handle("POST "+nav.ApprovalPath+"/{id}/status", a.gated(nav.Multifactors, aah.UpdateStatus))
	a.mux.Handle("POST "+nav.ApprovalPath+"/{id}/role", a.gated(nav.Multifactors, aah.UpdateRole))

	// ─────────────────────────────────────────────────────────────────────────
	// Uploaded files
	// ─────────────────────────────────────────────────────────────────────────
	if prefix := a.opts.StoragePublicURL; strings.HasPrefix(prefix, "/") && a.opts.StorageDir != "" {
		prefix = strings.TrimRight(prefix, "/") + "/"
		a.mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(a.opts.StorageDir))))
	}
}

// gated wraps a handler with the access gate for section.
func (a *App) gated(section nav.Section, h http.HandlerFunc) http.Handler {
	return a.routerCfg.AccessGate.Require(section)(h)
}
