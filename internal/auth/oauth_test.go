package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/db"
	"github.com/diewo77/multifactors/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProvider(t *testing.T) (*Provider, *httptest.Server) {
	t.Helper()
	return fakeProviderWith(t, map[string]any{"email": "Sam@Example.com", "email_verified": true, "given_name": "Sam", "family_name": "Lee"})
}

func fakeProviderWith(t *testing.T, info map[string]any) (*Provider, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(info)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := GoogleProvider("client", "secret", "http://app/auth/oauth/google/callback")
	p.Config.Endpoint.AuthURL = srv.URL + "/auth"
	p.Config.Endpoint.TokenURL = srv.URL + "/token"
	p.UserInfoURL = srv.URL + "/userinfo"
	return p, srv
}

func start(t *testing.T, flow *ProviderSignIn, next string) (state, nonce string) {
	t.Helper()
	redirect, nonce, err := flow.SignInWithProvider("google", next)
	require.NoError(t, err)
	require.NotEmpty(t, nonce)
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	state = u.Query().Get("state")
	require.NotEmpty(t, state)
	return state, nonce
}

func TestProviderSignIn_FullFlow(t *testing.T) {
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	prov, _ := fakeProvider(t)
	flow := NewProviderSignIn(conn, "state-secret", prov)

	state, nonce := start(t, flow, "/multifactors/dashboard")

	user, next, err := flow.CompleteProvider(context.Background(), "google", state, nonce, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "/multifactors/dashboard", next)
	assert.Equal(t, "sam@example.com", user.Email)

	var p models.Profile
	require.NoError(t, conn.First(&p, "id = ?", user.ID).Error)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Equal(t, "Sam", p.FirstName)

	// second sign-in reuses the identity
	again, _, err := flow.CompleteProvider(context.Background(), "google", state, nonce, "code-2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestProviderSignIn_RejectsForgedState(t *testing.T) {
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	prov, _ := fakeProvider(t)
	flow := NewProviderSignIn(conn, "state-secret", prov)

	_, _, err = flow.CompleteProvider(context.Background(), "google", "not-a-token", "n", "code")
	assert.Error(t, err)
}

func TestProviderSignIn_StateBoundToBrowserNonce(t *testing.T) {
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	prov, _ := fakeProvider(t)
	flow := NewProviderSignIn(conn, "state-secret", prov)
	state, _ := start(t, flow, "/")
	_, otherNonce := start(t, flow, "/")

	for _, nonce := range []string{"", otherNonce} {
		_, _, err := flow.CompleteProvider(context.Background(), "google", state, nonce, "code")
		assert.ErrorIs(t, err, apperr.Unauthorized, "nonce %q", nonce)
	}
	var count int64
	require.NoError(t, conn.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProviderSignIn_RejectsUnverifiedEmail(t *testing.T) {
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	victim, err := NewLocalService(conn, false).SignUp(context.Background(), "victim@x.com", "victim-pass", SignUpMetadata{FirstName: "Vic"})
	require.NoError(t, err)

	prov, _ := fakeProviderWith(t, map[string]any{"email": "victim@x.com", "email_verified": false})
	flow := NewProviderSignIn(conn, "state-secret", prov)
	state, nonce := start(t, flow, "/")

	user, _, err := flow.CompleteProvider(context.Background(), "google", state, nonce, "code")
	assert.ErrorIs(t, err, apperr.Unauthorized)
	assert.Nil(t, user)

	var stored models.User
	require.NoError(t, conn.First(&stored, "id = ?", victim.User.ID).Error)
	assert.Equal(t, "password", stored.Provider)
}

func TestProviderSignIn_LinksOnlyConfirmedPasswordAccounts(t *testing.T) {
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	ctx := context.Background()
	_, err = NewLocalService(conn, true).SignUp(ctx, "pending@x.com", "pending-pass", SignUpMetadata{})
	require.NoError(t, err)
	confirmed, err := NewLocalService(conn, false).SignUp(ctx, "confirmed@x.com", "confirmed-pass", SignUpMetadata{})
	require.NoError(t, err)

	prov, _ := fakeProviderWith(t, map[string]any{"email": "pending@x.com", "email_verified": true})
	flow := NewProviderSignIn(conn, "state-secret", prov)
	state, nonce := start(t, flow, "/")
	_, _, err = flow.CompleteProvider(ctx, "google", state, nonce, "code")
	assert.ErrorIs(t, err, apperr.Conflict)

	prov, _ = fakeProviderWith(t, map[string]any{"email": "confirmed@x.com", "email_verified": true})
	flow = NewProviderSignIn(conn, "state-secret", prov)
	state, nonce = start(t, flow, "/")
	user, _, err := flow.CompleteProvider(ctx, "google", state, nonce, "code")
	require.NoError(t, err)
	assert.Equal(t, confirmed.User.ID, user.ID)
}

func TestProviderSignIn_Unknown(t *testing.T) {
	flow := NewProviderSignIn(nil, "s", GoogleProvider("", "", ""))
	assert.False(t, flow.Enabled("google"))
	_, _, err := flow.SignInWithProvider("google", "/")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                "/",
		"/tuya/dashboard": "/tuya/dashboard",
		"//evil.com":      "/",
		"https://evil":    "/",
		"/\\evil":         "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeNext(in), "input %q", in)
	}
}
