package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/multifactors/internal/apperr"
)

func TestJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusCreated, map[string]any{"success": true})

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"success":true}` {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestAppError_Validation(t *testing.T) {
	rr := httptest.NewRecorder()
	AppError(rr, apperr.Invalid(map[string]string{"email": "Invalid email format"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "validation_failed" || body.Details["email"] != "Invalid email format" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name        string
		accept      string
		contentType string
		want        bool
	}{
		{"json accept", "application/json", "", true},
		{"browser", "text/html,application/xhtml+xml,application/json;q=0.9", "", false},
		{"json body", "", "application/json; charset=utf-8", true},
		{"form", "", "application/x-www-form-urlencoded", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Accept", tt.accept)
			r.Header.Set("Content-Type", tt.contentType)
			if got := WantsJSON(r); got != tt.want {
				t.Errorf("WantsJSON() = %v, want %v", got, tt.want)
			}
		})
	}
}
