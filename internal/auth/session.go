package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/multifactors/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const (
	sessionCookieName = "session"
	identityCtxKey    = ctxKey("identity")
)

// Identity is what a valid session proves about the caller.
type Identity struct {
	UserID string
	Email  string
}

// Verifier is an optional callback to validate that a session's user still exists.
// If nil, no extra verification is performed.
type Verifier func(ctx context.Context, userID string) bool

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies signed session cookies.
type Sessions struct {
	secret   []byte
	ttl      time.Duration
	Secure   bool
	Verifier Verifier
	now      func() time.Time
}

// NewSessions creates a session manager signing with secret.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Token signs a session token for id.
func (s *Sessions) Token(id Identity) (string, error) {
	now := s.now()
	claims := sessionClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses a session token.
func (s *Sessions) Verify(token string) (Identity, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Identity{}, fmt.Errorf("verify session: %w", err)
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("verify session: empty subject")
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Create sets the session cookie for id.
func (s *Sessions) Create(w http.ResponseWriter, id Identity) error {
	token, err := s.Token(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.now().Add(s.ttl),
	})
	return nil
}

// SignOut deletes the session cookie.
func (s *Sessions) SignOut(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// Parse validates the request cookie and returns the identity.
func (s *Sessions) Parse(r *http.Request) (Identity, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return Identity{}, false
	}
	id, err := s.Verify(c.Value)
	if err != nil {
		return Identity{}, false
	}
	return id, true
}

// WithIdentity stores the identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, id)
}

// IdentityFromContext extracts the identity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// Middleware attaches the identity to the request context if present.
// A session for a user the Verifier rejects is cleared and ignored.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := s.Parse(r); ok {
			if s.Verifier != nil && !s.Verifier(r.Context(), id.UserID) {
				s.SignOut(w)
			} else {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth redirects to /login if not authenticated (HTML) or returns 401 JSON.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			accept := r.Header.Get("Accept")
			if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":"unauthorized"}`)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type profileCtxKey struct{}

// WithProfile stores the gate-resolved profile in ctx.
func WithProfile(ctx context.Context, p *models.Profile) context.Context {
	return context.WithValue(ctx, profileCtxKey{}, p)
}

// ProfileFromContext returns the profile the gate allowed, if any.
func ProfileFromContext(ctx context.Context) (*models.Profile, bool) {
	p, ok := ctx.Value(profileCtxKey{}).(*models.Profile)
	return p, ok && p != nil
}
