package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// Provider is an OAuth2 sign-in provider.
type Provider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
}

// GoogleProvider returns the Google provider for the given client credentials.
func GoogleProvider(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
	}
}

// NonceCookie binds a provider sign-in to the browser that started it.
const NonceCookie = "mf_oauth_nonce"

const stateTTL = 10 * time.Minute

var (
	errSignInExpired      = apperr.New(apperr.KindUnauthorized, "Sign-in expired, please try again")
	errUnconfirmedAccount = apperr.New(apperr.KindConflict, "An account with this email exists but is not confirmed. Confirm it or sign in with your password.")
)

type stateClaims struct {
	Provider string `json:"prv"`
	Next     string `json:"next,omitempty"`
	Nonce    string `json:"nonce"`
	jwt.RegisteredClaims
}

// ProviderSignIn runs the authorization-code flow against registered providers.
// The state parameter is a short-lived signed token carrying a nonce that must
// match the NonceCookie set on the browser that started the flow.
type ProviderSignIn struct {
	DB        *gorm.DB
	providers map[string]*Provider
	secret    []byte
	now       func() time.Time
}

// NewProviderSignIn creates a flow signing state with secret.
func NewProviderSignIn(db *gorm.DB, secret string, providers ...*Provider) *ProviderSignIn {
	p := &ProviderSignIn{DB: db, providers: map[string]*Provider{}, secret: []byte(secret), now: time.Now}
	for _, prov := range providers {
		if prov != nil && prov.Config != nil && prov.Config.ClientID != "" {
			p.providers[prov.Name] = prov
		}
	}
	return p
}

// Enabled reports whether provider is configured.
func (p *ProviderSignIn) Enabled(provider string) bool {
	_, ok := p.providers[provider]
	return ok
}

// SignInWithProvider returns the URL to redirect the browser to and the nonce
// to store in its NonceCookie. next is where the callback sends the user
// afterwards; only local paths are kept.
func (p *ProviderSignIn) SignInWithProvider(provider, next string) (authURL, nonce string, err error) {
	prov, ok := p.providers[provider]
	if !ok {
		return "", "", ErrUnknownProvider
	}
	now := p.now()
	nonce = uuid.NewString()
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		Provider: provider,
		Next:     SafeNext(next),
		Nonce:    nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}).SignedString(p.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign oauth state: %w", err)
	}
	return prov.Config.AuthCodeURL(state, oauth2.AccessTypeOnline), nonce, nil
}

// SetNonceCookie stores nonce for the callback of the flow being started.
func SetNonceCookie(w http.ResponseWriter, nonce string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     NonceCookie,
		Value:    nonce,
		Path:     "/auth/oauth",
		MaxAge:   int(stateTTL / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TakeNonceCookie returns the request's nonce and deletes the cookie so a
// state can be completed only once per browser.
func TakeNonceCookie(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(NonceCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: NonceCookie, Value: "", Path: "/auth/oauth", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	return c.Value
}

// CompleteProvider checks state against the browser's nonce, exchanges code,
// resolves the provider email and finds or creates the matching user and
// profile. It returns the user and the post-login redirect target carried in
// state.
func (p *ProviderSignIn) CompleteProvider(ctx context.Context, provider, state, nonce, code string) (*models.User, string, error) {
	prov, ok := p.providers[provider]
	if !ok {
		return nil, "", ErrUnknownProvider
	}
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil || claims.Provider != provider {
		return nil, "", errSignInExpired
	}
	if nonce == "" || subtle.ConstantTimeCompare([]byte(nonce), []byte(claims.Nonce)) != 1 {
		return nil, "", errSignInExpired
	}
	if code == "" {
		return nil, "", apperr.New(apperr.KindValidation, "Missing authorization code")
	}

	tok, err := prov.Config.Exchange(ctx, code)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindUpstream, "Could not complete sign-in", err)
	}
	info, err := fetchUserInfo(ctx, prov.Config.Client(ctx, tok), prov.UserInfoURL)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindUpstream, "Could not complete sign-in", err)
	}
	if info.Email == "" {
		return nil, "", apperr.New(apperr.KindUnauthorized, "Provider did not share an email address")
	}
	if !info.EmailVerified {
		return nil, "", apperr.New(apperr.KindUnauthorized, "Your email address is not verified with this provider")
	}

	user, err := p.findOrCreate(ctx, provider, info)
	if err != nil {
		return nil, "", err
	}
	return user, claims.Next, nil
}

type userInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

func fetchUserInfo(ctx context.Context, client *http.Client, url string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo: status %d: %s", resp.StatusCode, body)
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	info.Email = normalizeEmail(info.Email)
	return &info, nil
}

func (p *ProviderSignIn) findOrCreate(ctx context.Context, provider string, info *userInfo) (*models.User, error) {
	var user models.User
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", info.Email).First(&user).Error
		if err == nil {
			// an unconfirmed password account may belong to someone else
			if user.Provider != provider && user.EmailConfirmedAt == nil {
				return errUnconfirmedAccount
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		now := p.now()
		user = models.User{Email: info.Email, Provider: provider, EmailConfirmedAt: &now}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Profile{
			ID:        user.ID,
			FirstName: strings.TrimSpace(info.GivenName),
			LastName:  strings.TrimSpace(info.FamilyName),
			Email:     info.Email,
			AvatarURL: info.Picture,
			Role:      models.RoleStaff,
			Status:    models.StatusPending,
		}).Error
	})
	if errors.Is(err, errUnconfirmedAccount) {
		return nil, errUnconfirmedAccount
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "Could not complete sign-in", err)
	}
	return &user, nil
}

// SafeNext keeps only local absolute paths so redirects cannot leave the site.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}
