package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/db"
	"github.com/diewo77/multifactors/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T, verify bool) *LocalService {
	t.Helper()
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	svc := NewLocalService(conn, verify)
	svc.Cost = bcrypt.MinCost
	return svc
}

func TestSignUp_CreatesPendingStaffProfile(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()

	res, err := svc.SignUp(ctx, " Jane@Example.com ", "secret1", SignUpMetadata{FirstName: " Jane ", LastName: "Doe"})
	require.NoError(t, err)
	assert.True(t, res.Session)
	assert.Equal(t, "jane@example.com", res.User.Email)

	var p models.Profile
	require.NoError(t, svc.DB.First(&p, "id = ?", res.User.ID).Error)
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, models.RoleStaff, p.Role)
	assert.Equal(t, models.StatusPending, p.Status)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()
	_, err := svc.SignUp(ctx, "jane@example.com", "secret1", SignUpMetadata{})
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, "JANE@example.com", "secret2", SignUpMetadata{})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.True(t, errors.Is(err, apperr.Conflict))

	var count int64
	svc.DB.Model(&models.Profile{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestSignUp_EmailVerificationWithholdsSession(t *testing.T) {
	svc := newService(t, true)
	res, err := svc.SignUp(context.Background(), "jane@example.com", "secret1", SignUpMetadata{})
	require.NoError(t, err)
	assert.False(t, res.Session)
	assert.Nil(t, res.User.EmailConfirmedAt)

	_, err = svc.SignInWithPassword(context.Background(), "jane@example.com", "secret1")
	assert.True(t, errors.Is(err, apperr.Forbidden), "got %v", err)
}

func TestSignInWithPassword(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()
	res, err := svc.SignUp(ctx, "jane@example.com", "secret1", SignUpMetadata{})
	require.NoError(t, err)

	user, err := svc.SignInWithPassword(ctx, "Jane@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	_, err = svc.SignInWithPassword(ctx, "jane@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignInWithPassword(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateUser(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()
	a, err := svc.SignUp(ctx, "a@example.com", "secret1", SignUpMetadata{})
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, "b@example.com", "secret1", SignUpMetadata{})
	require.NoError(t, err)

	taken := "b@example.com"
	_, err = svc.UpdateUser(ctx, a.User.ID, UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	email, password := "new@example.com", "another-secret"
	updated, err := svc.UpdateUser(ctx, a.User.ID, UserUpdate{Email: &email, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)

	_, err = svc.SignInWithPassword(ctx, "new@example.com", "another-secret")
	assert.NoError(t, err)
}

func TestCurrentUser_Missing(t *testing.T) {
	svc := newService(t, false)
	_, err := svc.CurrentUser(context.Background(), "ghost")
	assert.True(t, errors.Is(err, apperr.Unauthorized), "got %v", err)
}
