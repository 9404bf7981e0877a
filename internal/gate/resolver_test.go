package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/diewo77/multifactors/internal/gate"
)

func TestCachedResolver_CachesSubject(t *testing.T) {
	inner := gate.NewStaticResolver[subject]()
	inner.Set("u1", subject{"staff", "pending"})
	cached := gate.NewCachedResolver[subject](inner, 5*time.Minute)

	s, found, err := cached.Resolve(context.Background(), "u1")
	if err != nil || !found || s.status != "pending" {
		t.Fatalf("first resolve: %+v %v %v", s, found, err)
	}

	inner.Set("u1", subject{"staff", "approved"})
	s, _, _ = cached.Resolve(context.Background(), "u1")
	if s.status != "pending" {
		t.Errorf("expected cached 'pending', got %q", s.status)
	}

	cached.Invalidate("u1")
	s, _, _ = cached.Resolve(context.Background(), "u1")
	if s.status != "approved" {
		t.Errorf("expected 'approved' after invalidation, got %q", s.status)
	}
}

func TestCachedResolver_DoesNotCacheMisses(t *testing.T) {
	inner := gate.NewStaticResolver[subject]()
	cached := gate.NewCachedResolver[subject](inner, 5*time.Minute)

	if _, found, _ := cached.Resolve(context.Background(), "u1"); found {
		t.Fatal("unexpected hit")
	}
	inner.Set("u1", subject{"staff", "approved"})
	if _, found, _ := cached.Resolve(context.Background(), "u1"); !found {
		t.Error("profile created after a miss should be visible")
	}
}

func TestCachedResolver_Expires(t *testing.T) {
	inner := gate.NewStaticResolver[subject]()
	inner.Set("u1", subject{"staff", "pending"})
	cached := gate.NewCachedResolver[subject](inner, time.Millisecond)
	cached.Resolve(context.Background(), "u1")

	inner.Set("u1", subject{"staff", "approved"})
	time.Sleep(5 * time.Millisecond)
	s, _, _ := cached.Resolve(context.Background(), "u1")
	if s.status != "approved" {
		t.Errorf("expected expired entry to refresh, got %q", s.status)
	}
}
