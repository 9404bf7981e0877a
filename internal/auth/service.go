// Package auth owns authentication identities and sessions.
//
// Service is the contract the rest of the application consumes (current
// user, sign-up, sign-in, provider sign-in, update-user); LocalService is the
// gorm-backed implementation. Sign-up also creates the pending profile row so
// the profile always exists for identities created through this service.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Errors surfaced to handlers, matched with errors.Is.
var (
	ErrAlreadyRegistered  = apperr.New(apperr.KindConflict, "An account with this email already exists")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "Invalid email or password")
	ErrUnknownProvider    = apperr.New(apperr.KindNotFound, "Unknown sign-in provider")
)

// SignUpMetadata is copied into the profile created at sign-up.
type SignUpMetadata struct {
	FirstName string
	LastName  string
}

// SignUpResult reports the created user and whether a session was started.
// Session is false when email confirmation is required.
type SignUpResult struct {
	User    *models.User
	Session bool
}

// UserUpdate changes the email and/or password of an identity.
type UserUpdate struct {
	Email    *string
	Password *string
}

// Service is the auth capability used by handlers.
type Service interface {
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
	SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (*SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.User, error)
	UpdateUser(ctx context.Context, userID string, u UserUpdate) (*models.User, error)
}

// LocalService stores identities in the application database.
type LocalService struct {
	DB                 *gorm.DB
	RequireEmailVerify bool
	Cost               int
}

// NewLocalService creates a LocalService using bcrypt's default cost.
func NewLocalService(db *gorm.DB, requireEmailVerify bool) *LocalService {
	return &LocalService{DB: db, RequireEmailVerify: requireEmailVerify, Cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CurrentUser returns the identity for userID.
func (s *LocalService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindUnauthorized, "session user no longer exists")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "could not load user", err)
	}
	return &user, nil
}

// SignUp creates an identity and its pending staff profile in one transaction.
func (s *LocalService) SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (*SignUpResult, error) {
	email = normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Password could not be used", err)
	}

	user := &models.User{Email: email, PasswordHash: string(hash), Provider: "password"}
	if !s.RequireEmailVerify {
		now := time.Now()
		user.EmailConfirmedAt = &now
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyRegistered
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Profile{
			ID:        user.ID,
			FirstName: strings.TrimSpace(meta.FirstName),
			LastName:  strings.TrimSpace(meta.LastName),
			Email:     email,
			Role:      models.RoleStaff,
			Status:    models.StatusPending,
		}).Error
	})
	if errors.Is(err, ErrAlreadyRegistered) {
		return nil, ErrAlreadyRegistered
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "There was a problem creating your account. Please try again later.", err)
	}
	return &SignUpResult{User: user, Session: !s.RequireEmailVerify}, nil
}

// SignInWithPassword checks credentials. Unknown email and wrong password
// produce the same error.
func (s *LocalService) SignInWithPassword(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "could not sign in", err)
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.RequireEmailVerify && user.EmailConfirmedAt == nil {
		return nil, apperr.New(apperr.KindForbidden, "Please confirm your email before signing in")
	}
	return &user, nil
}

// UpdateUser changes email and/or password.
func (s *LocalService) UpdateUser(ctx context.Context, userID string, u UserUpdate) (*models.User, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if u.Email != nil {
		email := normalizeEmail(*u.Email)
		if email != user.Email {
			var count int64
			if err := s.DB.WithContext(ctx).Model(&models.User{}).
				Where("email = ? AND id <> ?", email, userID).Count(&count).Error; err != nil {
				return nil, apperr.Wrap(apperr.KindUpstream, "could not update user", err)
			}
			if count > 0 {
				return nil, ErrAlreadyRegistered
			}
			updates["email"] = email
		}
	}
	if u.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*u.Password), s.Cost)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "Password could not be used", err)
		}
		updates["password_hash"] = string(hash)
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.DB.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "could not update user", err)
	}
	return s.CurrentUser(ctx, userID)
}
