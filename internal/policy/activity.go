package policy

import (
	"context"
	"sync"
	"time"

	"github.com/diewo77/multifactors/internal/store"
	"go.uber.org/zap"
)

// ActivityTracker records last_active for profiles, writing at most once
// per interval per user.
type ActivityTracker struct {
	profiles store.ProfileStore
	interval time.Duration
	log      *zap.Logger

	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewActivityTracker creates a tracker writing through profiles.
func NewActivityTracker(profiles store.ProfileStore, interval time.Duration, log *zap.Logger) *ActivityTracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActivityTracker{
		profiles: profiles,
		interval: interval,
		log:      log,
		last:     map[string]time.Time{},
		now:      time.Now,
	}
}

// Touch updates last_active for id unless it was written recently.
// Failures are logged; they never block the request.
func (t *ActivityTracker) Touch(ctx context.Context, id string) {
	now := t.now()
	t.mu.Lock()
	if prev, ok := t.last[id]; ok && now.Sub(prev) < t.interval {
		t.mu.Unlock()
		return
	}
	t.last[id] = now
	t.mu.Unlock()

	if _, err := t.profiles.Update(ctx, id, store.Patch{LastActive: &now}); err != nil {
		t.log.Warn("touch last_active", zap.String("profile_id", id), zap.Error(err))
		t.mu.Lock()
		delete(t.last, id)
		t.mu.Unlock()
	}
}
