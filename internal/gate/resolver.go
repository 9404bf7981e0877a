package gate

import (
	"context"
	"sync"
	"time"
)

// ProfileResolver looks up the subject for a user id. found is false when
// the user has no profile; that is not an error.
type ProfileResolver[S Subject] interface {
	Resolve(ctx context.Context, userID string) (subject S, found bool, err error)
}

// ResolverFunc adapts a function to ProfileResolver.
type ResolverFunc[S Subject] func(ctx context.Context, userID string) (S, bool, error)

// Resolve calls f.
func (f ResolverFunc[S]) Resolve(ctx context.Context, userID string) (S, bool, error) {
	return f(ctx, userID)
}

// CachedResolver wraps a ProfileResolver with TTL-based caching.
// Only found subjects are cached; misses and errors always go to inner.
type CachedResolver[S Subject] struct {
	inner ProfileResolver[S]
	cache map[string]*cacheEntry[S]
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry[S Subject] struct {
	subject   S
	expiresAt time.Time
}

// NewCachedResolver wraps inner, keeping subjects for ttl.
func NewCachedResolver[S Subject](inner ProfileResolver[S], ttl time.Duration) *CachedResolver[S] {
	return &CachedResolver[S]{
		inner: inner,
		cache: make(map[string]*cacheEntry[S]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Resolve returns the cached subject or asks inner.
func (r *CachedResolver[S]) Resolve(ctx context.Context, userID string) (S, bool, error) {
	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && r.now().Before(entry.expiresAt) {
		return entry.subject, true, nil
	}

	subject, found, err := r.inner.Resolve(ctx, userID)
	if err != nil || !found {
		return subject, found, err
	}

	r.mu.Lock()
	r.cache[userID] = &cacheEntry[S]{subject: subject, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return subject, true, nil
}

// Invalidate drops userID from the cache. Call it whenever the user's role,
// status or profile row changes.
func (r *CachedResolver[S]) Invalidate(userID string) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

// StaticResolver is an in-memory resolver for tests and fixed setups.
type StaticResolver[S Subject] struct {
	mu       sync.RWMutex
	subjects map[string]S
}

// NewStaticResolver creates an empty StaticResolver.
func NewStaticResolver[S Subject]() *StaticResolver[S] {
	return &StaticResolver[S]{subjects: make(map[string]S)}
}

// Set assigns a subject to a user.
func (r *StaticResolver[S]) Set(userID string, subject S) {
	r.mu.Lock()
	r.subjects[userID] = subject
	r.mu.Unlock()
}

// Resolve returns the subject for userID.
func (r *StaticResolver[S]) Resolve(_ context.Context, userID string) (S, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subjects[userID]
	return s, ok, nil
}
