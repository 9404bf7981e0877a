// Package directory is the admin view over every profile: load, filter,
// sort and single-row role/status updates.
//
// Updates are optimistic. The in-memory record is patched first, the row
// store is updated outside the lock and the result is reconciled by id. A
// failed remote update restores the record's previous value unless the
// record changed again in the meantime.
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/diewo77/multifactors/internal/models"
	"github.com/diewo77/multifactors/internal/store"
	"github.com/diewo77/multifactors/internal/validation"
	"go.uber.org/zap"
)

// Notifier is told when an admin changes a user's status.
type Notifier interface {
	StatusChanged(ctx context.Context, p *models.Profile) error
}

// Stats are the header counters of the approval page.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Directory holds the loaded profile list.
type Directory struct {
	store    store.ProfileStore
	notifier Notifier
	log      *zap.Logger
	// OnChange runs after a successful update, e.g. to drop cached gate profiles.
	OnChange func(id string)

	mu       sync.RWMutex
	profiles []models.Profile
	now      func() time.Time
}

// New creates a Directory. notifier may be nil.
func New(s store.ProfileStore, notifier Notifier, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{store: s, notifier: notifier, log: log, now: time.Now}
}

// Load replaces the view with every profile, newest first. On failure the
// view is left empty and the error returned.
func (d *Directory) Load(ctx context.Context) error {
	profiles, err := d.store.Select(ctx, store.Filter{})
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.profiles = nil
		d.log.Error("load profiles", zap.Error(err))
		return err
	}
	d.profiles = profiles
	return nil
}

// View returns a filtered, sorted copy of the loaded profiles.
func (d *Directory) View(q Query) []models.Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Apply(d.profiles, q)
}

// Stats counts loaded profiles by status.
func (d *Directory) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Stats{Total: len(d.profiles)}
	for _, p := range d.profiles {
		switch p.Status {
		case models.StatusPending:
			s.Pending++
		case models.StatusApproved:
			s.Approved++
		case models.StatusRejected:
			s.Rejected++
		}
	}
	return s
}

// Get returns a copy of the loaded profile with id.
func (d *Directory) Get(id string) (models.Profile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.indexOf(id); i >= 0 {
		return d.profiles[i], true
	}
	return models.Profile{}, false
}

func (d *Directory) indexOf(id string) int {
	for i := range d.profiles {
		if d.profiles[i].ID == id {
			return i
		}
	}
	return -1
}

// SetStatus changes a user's approval status and notifies them.
// Notification failures are logged and never undo the update.
func (d *Directory) SetStatus(ctx context.Context, id string, status models.Status) (*models.Profile, error) {
	v := validation.Violations{}
	validation.OneOf("status", string(status), names(models.Statuses), "Unknown status", v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	var previous models.Status
	updated, err := d.update(ctx, id, store.Patch{Status: &status}, func(p *models.Profile) {
		previous = p.Status
		p.Status = status
	})
	if err != nil {
		return nil, err
	}
	if d.notifier != nil && previous != status && status != models.StatusPending {
		if err := d.notifier.StatusChanged(ctx, updated); err != nil {
			d.log.Warn("status notification failed", zap.String("profile_id", id), zap.String("status", string(status)), zap.Error(err))
		}
	}
	return updated, nil
}

// SetRole changes a user's role.
func (d *Directory) SetRole(ctx context.Context, id string, role models.Role) (*models.Profile, error) {
	v := validation.Violations{}
	validation.OneOf("role", string(role), names(models.Roles), "Unknown role", v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	return d.update(ctx, id, store.Patch{Role: &role}, func(p *models.Profile) {
		p.Role = role
	})
}

func (d *Directory) update(ctx context.Context, id string, patch store.Patch, apply func(*models.Profile)) (*models.Profile, error) {
	d.mu.Lock()
	var prior, optimistic *models.Profile
	if i := d.indexOf(id); i >= 0 {
		saved := d.profiles[i]
		prior = &saved
		apply(&d.profiles[i])
		d.profiles[i].UpdatedAt = d.now()
		patched := d.profiles[i]
		optimistic = &patched
	}
	d.mu.Unlock()

	stored, err := d.store.Update(ctx, id, patch)

	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(id)
	if err != nil {
		// a reload or another update may have replaced the record meanwhile
		if prior != nil && i >= 0 && d.profiles[i] == *optimistic {
			d.profiles[i] = *prior
		}
		d.log.Error("update profile", zap.String("profile_id", id), zap.Error(err))
		return nil, err
	}
	if i >= 0 {
		d.profiles[i] = *stored
	} else {
		d.profiles = append(d.profiles, *stored)
	}
	if d.OnChange != nil {
		d.OnChange(id)
	}
	return stored, nil
}

func names[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
