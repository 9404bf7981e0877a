package policy

import (
	"context"
	"errors"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/auth"
	"github.com/diewo77/multifactors/internal/config"
	"github.com/diewo77/multifactors/internal/directory"
	"github.com/diewo77/multifactors/internal/handlers"
	"github.com/diewo77/multifactors/internal/integrations"
	"github.com/diewo77/multifactors/internal/mail"
	"github.com/diewo77/multifactors/internal/storage"
	"github.com/diewo77/multifactors/internal/store"
	"github.com/diewo77/multifactors/internal/view"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RouterConfig holds configured handlers and middleware for the application.
type RouterConfig struct {
	// AccessGate guards every dashboard section
	AccessGate *AccessGate
	Sessions   *auth.Sessions
	Directory  *directory.Directory

	AuthHandler            *handlers.AuthHandler
	RegistrationHandler    *handlers.RegistrationHandler
	AccountSettingsHandler *handlers.AccountSettingsHandler
	AccountApprovalHandler *handlers.AccountApprovalHandler
	ContactHandler         *handlers.ContactHandler
	PagesHandler           *handlers.PagesHandler
}

// Deps are the external resources the router is built from.
type Deps struct {
	DB      *gorm.DB
	Config  *config.Config
	Mailer  mail.Sender
	Storage storage.Storage
	View    *view.Renderer
	Catalog *integrations.Catalog
	Log     *zap.Logger
}

// NewRouterConfig wires the auth service, the gate, the directory and the
// handlers together.
//
// Example usage in the router setup:
//
//	rc := policy.NewRouterConfig(deps)
//	mux.Handle("GET /multifactors/account-approval",
//		rc.AccessGate.Require(nav.Multifactors)(http.HandlerFunc(rc.AccountApprovalHandler.List)))
func NewRouterConfig(d Deps) *RouterConfig {
	cfg := d.Config
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	profiles := store.NewGormProfileStore(d.DB)
	authService := auth.NewLocalService(d.DB, cfg.Auth.RequireEmailVerify)

	sessions := auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	sessions.Secure = !cfg.App.Dev
	// Only a user that is really gone ends the session; a database hiccup does not.
	sessions.Verifier = func(ctx context.Context, userID string) bool {
		_, err := authService.CurrentUser(ctx, userID)
		return !errors.Is(err, apperr.Unauthorized)
	}

	providers := auth.NewProviderSignIn(d.DB, cfg.Auth.SessionSecret,
		auth.GoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.App.BaseURL+"/auth/oauth/google/callback"))

	accessGate := NewAccessGate(profiles, cfg.Gate, d.View, log)

	notifier := &mail.StatusNotifier{Sender: d.Mailer, From: cfg.Mail.From, LoginURL: cfg.App.BaseURL + "/login"}
	dir := directory.New(profiles, notifier, log)
	// Role and status changes must be visible to the gate on the next request
	dir.OnChange = accessGate.InvalidateUser

	return &RouterConfig{
		AccessGate:             accessGate,
		Sessions:               sessions,
		Directory:              dir,
		AuthHandler:            handlers.NewAuthHandler(authService, sessions, providers, d.View),
		RegistrationHandler:    handlers.NewRegistrationHandler(authService, sessions, d.View),
		AccountSettingsHandler: handlers.NewAccountSettingsHandler(authService, profiles, d.Storage, sessions, accessGate, d.View),
		AccountApprovalHandler: handlers.NewAccountApprovalHandler(dir, d.View),
		ContactHandler:         handlers.NewContactHandler(d.Mailer, cfg.Mail.From, cfg.Mail.ContactTo),
		PagesHandler:           handlers.NewPagesHandler(d.Catalog, d.View),
	}
}
