package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("loading profile: %w", New(KindNotFound, "profile not found"))

	if !errors.Is(err, NotFound) {
		t.Error("expected errors.Is(err, NotFound)")
	}
	if errors.Is(err, Conflict) {
		t.Error("did not expect errors.Is(err, Conflict)")
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUpstream, "row store unavailable", cause)

	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable")
	}
	if !errors.Is(err, Upstream) {
		t.Error("expected Upstream kind")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Invalid(map[string]string{"email": "required"}), http.StatusBadRequest},
		{New(KindUnauthorized, "x"), http.StatusUnauthorized},
		{New(KindForbidden, "x"), http.StatusForbidden},
		{New(KindNotFound, "x"), http.StatusNotFound},
		{New(KindConflict, "x"), http.StatusConflict},
		{errors.New("plain"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(errors.New("pq: relation does not exist")); got == "pq: relation does not exist" {
		t.Error("foreign error text must not leak")
	}
	if got := PublicMessage(New(KindConflict, "An account with this email already exists")); got != "An account with this email already exists" {
		t.Errorf("PublicMessage = %q", got)
	}
}
