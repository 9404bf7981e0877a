package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/diewo77/multifactors/internal/config"
	"github.com/diewo77/multifactors/internal/db"
	"github.com/diewo77/multifactors/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupApp(t *testing.T) (*App, *gorm.DB) {
	t.Helper()
	return setupAppWith(t, nil)
}

func setupAppWith(t *testing.T, configure func(*config.Config)) (*App, *gorm.DB) {
	t.Helper()
	conn, err := db.OpenInMemory()
	require.NoError(t, err)

	c := config.Load()
	c.App.Dev = true
	c.App.BaseURL = "http://localhost:8080"
	c.Auth.SessionSecret = "test-secret"
	c.Auth.RequireEmailVerify = false
	c.Auth.GoogleClientID = ""
	c.Mail.Driver = "log"
	c.Storage.Dir = t.TempDir()
	c.Storage.PublicBaseURL = "/storage"
	c.Server.AllowOrigins = []string{"*"}
	c.Gate.Strict = true
	if configure != nil {
		configure(c)
	}

	app, err := buildApp(conn, c, zap.NewNop())
	require.NoError(t, err)
	return app, conn
}

func do(app http.Handler, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)
	return rr
}

func form(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func login(t *testing.T, app http.Handler, email, password string) *http.Cookie {
	t.Helper()
	rr := do(app, form("/auth/login", url.Values{"email": {email}, "password": {password}}))
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestLandingPage(t *testing.T) {
	app, _ := setupApp(t)
	rr := do(app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/send-email")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestDashboardRequiresSession(t *testing.T) {
	app, _ := setupApp(t)
	for _, path := range []string{"/multifactors/dashboard", "/ruijie/devices", "/multifactors/account-approval"} {
		rr := do(app, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusSeeOther, rr.Code, path)
		assert.Equal(t, "/", rr.Header().Get("Location"), path)
	}
}

func TestAccountSettingsRequiresSession(t *testing.T) {
	app, _ := setupApp(t)
	rr := do(app, httptest.NewRequest(http.MethodGet, "/account-settings", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestRegistrationApprovalFlow(t *testing.T) {
	app, conn := setupApp(t)
	ctx := context.Background()
	_, err := db.SeedAdmin(ctx, conn, "admin@example.com", "admin-pass")
	require.NoError(t, err)
	adminCookie := login(t, app, "admin@example.com", "admin-pass")

	// register a staff member; without email confirmation a session starts at once
	rr := do(app, form("/auth/registration", url.Values{
		"first_name": {"Sam"}, "last_name": {"Staff"}, "email": {"sam@example.com"},
		"password": {"sam-pass"}, "confirm_password": {"sam-pass"},
	}))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, rr.Result().Cookies(), 1)
	staffCookie := rr.Result().Cookies()[0]

	var sam models.Profile
	require.NoError(t, conn.Where("email = ?", "sam@example.com").First(&sam).Error)
	assert.Equal(t, models.StatusPending, sam.Status)

	// pending users are turned away
	rr = do(app, httptest.NewRequest(http.MethodGet, "/multifactors/dashboard", nil), staffCookie)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	// the admin sees them in the approval list
	rr = do(app, httptest.NewRequest(http.MethodGet, "/multifactors/account-approval?status=pending", nil), adminCookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sam@example.com")

	rr = do(app, form("/multifactors/account-approval/"+sam.ID+"/status", url.Values{"status": {"approved"}}), adminCookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	// the change is visible to the gate on the next request
	rr = do(app, httptest.NewRequest(http.MethodGet, "/multifactors/dashboard", nil), staffCookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "Account Approval")

	rr = do(app, httptest.NewRequest(http.MethodGet, "/multifactors/account-approval", nil), staffCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(app, httptest.NewRequest(http.MethodGet, "/multifactors/dashboard", nil), adminCookie)
	assert.Contains(t, rr.Body.String(), "Account Approval")
}

func TestStaffCannotPromoteThemselves(t *testing.T) {
	app, conn := setupAppWith(t, func(c *config.Config) {
		c.Gate.AdminPrefixes = []string{"/ruijie/settings"}
	})
	ctx := context.Background()
	_, err := db.SeedAdmin(ctx, conn, "admin@example.com", "admin-pass")
	require.NoError(t, err)

	rr := do(app, form("/auth/registration", url.Values{
		"first_name": {"Sam"}, "last_name": {"Staff"}, "email": {"sam@example.com"},
		"password": {"sam-pass"}, "confirm_password": {"sam-pass"},
	}))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, conn.Model(&models.Profile{}).Where("email = ?", "sam@example.com").
		Update("status", models.StatusApproved).Error)
	staffCookie := login(t, app, "sam@example.com", "sam-pass")

	var sam models.Profile
	require.NoError(t, conn.Where("email = ?", "sam@example.com").First(&sam).Error)

	rr = do(app, form("/multifactors/account-approval/"+sam.ID+"/role", url.Values{"role": {"admin"}}), staffCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	require.NoError(t, conn.First(&sam, "id = ?", sam.ID).Error)
	assert.Equal(t, models.RoleStaff, sam.Role)
}

func TestContactEndpoint(t *testing.T) {
	app, _ := setupApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sendEmail", strings.NewReader(`{"name":"Ann","email":"ann@example.com","message":"Hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := do(app, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":true`)

	pre := httptest.NewRequest(http.MethodOptions, "/api/send-email", nil)
	pre.Header.Set("Origin", "https://example.org")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	rr = do(app, pre)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownSectionPage(t *testing.T) {
	app, conn := setupApp(t)
	_, err := db.SeedAdmin(context.Background(), conn, "admin@example.com", "admin-pass")
	require.NoError(t, err)
	cookie := login(t, app, "admin@example.com", "admin-pass")

	rr := do(app, httptest.NewRequest(http.MethodGet, "/tuya/nowhere", nil), cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(app, httptest.NewRequest(http.MethodGet, "/tuya", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/tuya/dashboard", rr.Header().Get("Location"))
}
