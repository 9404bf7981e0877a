package policy

import (
	"context"
	"errors"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/diewo77/multifactors/internal/models"
	"github.com/diewo77/multifactors/internal/store"
)

// StoreProfileResolver fetches profiles from the row store.
// It implements gate.ProfileResolver for *models.Profile subjects.
type StoreProfileResolver struct {
	Profiles store.ProfileStore
}

// NewStoreProfileResolver creates a new store-backed profile resolver.
func NewStoreProfileResolver(profiles store.ProfileStore) *StoreProfileResolver {
	return &StoreProfileResolver{Profiles: profiles}
}

// Resolve looks up the user's profile. A missing row is reported as not
// found, not as an error.
func (r *StoreProfileResolver) Resolve(ctx context.Context, userID string) (*models.Profile, bool, error) {
	p, err := r.Profiles.Get(ctx, userID)
	if errors.Is(err, apperr.NotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}
