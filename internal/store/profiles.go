// Package store is the row-level data access layer over the profiles table.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter narrows a Select. Zero values mean "no constraint".
type Filter struct {
	IDs    []string
	Role   models.Role
	Status models.Status
}

// Patch is a partial update of a profile row. Nil fields are left untouched.
type Patch struct {
	Role       *models.Role
	Status     *models.Status
	LastActive *time.Time
	AvatarURL  *string
}

// ProfileStore is the row store used by the gate, the directory and the
// account pages.
type ProfileStore interface {
	Select(ctx context.Context, f Filter) ([]models.Profile, error)
	Get(ctx context.Context, id string) (*models.Profile, error)
	Update(ctx context.Context, id string, p Patch) (*models.Profile, error)
	Upsert(ctx context.Context, p *models.Profile) error
}

// GormProfileStore implements ProfileStore on a gorm connection.
type GormProfileStore struct {
	DB *gorm.DB
}

// NewGormProfileStore creates a store backed by db.
func NewGormProfileStore(db *gorm.DB) *GormProfileStore {
	return &GormProfileStore{DB: db}
}

// Select returns matching profiles, newest first.
func (s *GormProfileStore) Select(ctx context.Context, f Filter) ([]models.Profile, error) {
	q := s.DB.WithContext(ctx).Model(&models.Profile{})
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var profiles []models.Profile
	if err := q.Order("created_at DESC").Find(&profiles).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "could not load profiles", err)
	}
	return profiles, nil
}

// Get returns the profile with id or an apperr NotFound error.
func (s *GormProfileStore) Get(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := s.DB.WithContext(ctx).First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "profile not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "could not load profile", err)
	}
	return &profile, nil
}

// Update applies a point update to a single row and returns the stored result.
func (s *GormProfileStore) Update(ctx context.Context, id string, p Patch) (*models.Profile, error) {
	updates := map[string]any{}
	if p.Role != nil {
		updates["role"] = *p.Role
	}
	if p.Status != nil {
		updates["status"] = *p.Status
	}
	if p.LastActive != nil {
		updates["last_active"] = *p.LastActive
	}
	if p.AvatarURL != nil {
		updates["avatar_url"] = *p.AvatarURL
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}
	// last_active is bookkeeping and must not bump updated_at
	if p.Role != nil || p.Status != nil || p.AvatarURL != nil {
		updates["updated_at"] = time.Now()
	}

	res := s.DB.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "could not update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.New(apperr.KindNotFound, "profile not found")
	}
	return s.Get(ctx, id)
}

// Upsert inserts p or overwrites the owner-editable columns of an existing row.
// Role and status are never changed by an upsert.
func (s *GormProfileStore) Upsert(ctx context.Context, p *models.Profile) error {
	if p.ID == "" {
		return apperr.New(apperr.KindValidation, "profile id is required")
	}
	if p.Role == "" {
		p.Role = models.RoleStaff
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	p.UpdatedAt = time.Now()
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_name", "last_name", "email", "phone", "address", "avatar_url", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "could not save profile", err)
	}
	return nil
}
