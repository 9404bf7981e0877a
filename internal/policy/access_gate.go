package policy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/multifactors/internal/auth"
	"github.com/diewo77/multifactors/internal/config"
	"github.com/diewo77/multifactors/internal/gate"
	"github.com/diewo77/multifactors/internal/httpx"
	"github.com/diewo77/multifactors/internal/logging"
	"github.com/diewo77/multifactors/internal/models"
	"github.com/diewo77/multifactors/internal/nav"
	"github.com/diewo77/multifactors/internal/store"
	"github.com/diewo77/multifactors/internal/view"
	"go.uber.org/zap"
)

// AccessGate holds the configured gate with caching and renders its
// decisions over HTTP. Use this as the single access checkpoint for every
// dashboard section.
type AccessGate struct {
	Gate          *gate.Gate[*models.Profile]
	CacheResolver *gate.CachedResolver[*models.Profile]
	Activity      *ActivityTracker

	view *view.Renderer
	log  *zap.Logger
}

// NewAccessGate creates a fully configured access gate.
//   - profiles: row store for profile lookups and last_active writes
//   - cfg: strict/lenient policy, extra admin prefixes, timeouts, cache TTL
func NewAccessGate(profiles store.ProfileStore, cfg config.GateConfig, v *view.Renderer, log *zap.Logger) *AccessGate {
	if log == nil {
		log = zap.NewNop()
	}
	// Wrap the store resolver with caching to avoid a query on every request
	cached := gate.NewCachedResolver[*models.Profile](NewStoreProfileResolver(profiles), cfg.ProfileCacheTTL)

	// The approval pages are always admin-only; configuration can only add prefixes.
	adminPrefixes := append([]string{nav.ApprovalPath}, cfg.AdminPrefixes...)

	g := gate.New[*models.Profile](cached, gate.Options{
		Strict:         cfg.Strict,
		AdminPaths:     gate.NewRules(adminPrefixes...),
		AdminRole:      string(models.RoleAdmin),
		ApprovedStatus: string(models.StatusApproved),
		RedirectTo:     "/",
		Timeout:        cfg.ResolveTimeout,
		OnLookupError: func(userID string, err error) {
			log.Error("profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		},
	})

	return &AccessGate{
		Gate:          g,
		CacheResolver: cached,
		Activity:      NewActivityTracker(profiles, time.Minute, log),
		view:          v,
		log:           log,
	}
}

// InvalidateUser clears the cached profile for a user.
// Call this when the user's role, status or profile row changes.
func (ag *AccessGate) InvalidateUser(userID string) {
	ag.CacheResolver.Invalidate(userID)
}

// Invalidate implements the handlers' cache invalidation hook.
func (ag *AccessGate) Invalidate(userID string) {
	ag.InvalidateUser(userID)
}

// Require returns middleware gating a dashboard section. Allowed requests
// carry the resolved profile in their context.
func (ag *AccessGate) Require(section nav.Section) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			if id, ok := auth.IdentityFromContext(r.Context()); ok {
				userID = id.UserID
			}
			d := ag.Gate.Evaluate(r.Context(), r.URL.Path, userID)
			log := logging.FromContext(r.Context())

			switch d.Outcome {
			case gate.Allow:
				ctx := r.Context()
				if d.Found {
					ctx = auth.WithProfile(ctx, d.Subject)
					ag.Activity.Touch(ctx, d.Subject.ID)
				}
				next.ServeHTTP(w, r.WithContext(ctx))

			case gate.Redirect:
				log.Debug("gate redirect", zap.String("path", r.URL.Path), zap.String("reason", d.Reason))
				if httpx.WantsJSON(r) {
					httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
					return
				}
				http.Redirect(w, r, d.Target, http.StatusSeeOther)

			case gate.AccessDenied:
				log.Info("gate denied", zap.String("path", r.URL.Path), zap.String("user_id", userID), zap.String("reason", d.Reason))
				if httpx.WantsJSON(r) {
					httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
					return
				}
				ctx := r.Context()
				if d.Found {
					ctx = auth.WithProfile(ctx, d.Subject)
				}
				r = r.WithContext(ctx)
				ag.render(w, r, http.StatusForbidden, "access_denied.html", nav.Page(r, section, "Access Denied"))

			default:
				log.Warn("gate loading", zap.String("path", r.URL.Path), zap.String("reason", d.Reason))
				w.Header().Set("Retry-After", "2")
				if httpx.WantsJSON(r) {
					httpx.JSONError(w, http.StatusServiceUnavailable, "checking_access", nil)
					return
				}
				w.Header().Set("Refresh", strconv.Itoa(2))
				ag.render(w, r, http.StatusServiceUnavailable, "checking_access.html", map[string]any{"Title": "Checking access"})
			}
		})
	}
}

func (ag *AccessGate) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if err := ag.view.RenderStatus(w, r, status, name, data); err != nil {
		ag.log.Error("render gate page", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(status), status)
	}
}
