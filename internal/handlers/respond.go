// Package handlers holds the HTTP handlers of the site and the dashboard.
// Every handler answers HTML by default and JSON when the client asks for it.
package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/multifactors/internal/logging"
	"github.com/diewo77/multifactors/internal/view"
	"go.uber.org/zap"
)

// Invalidator drops cached gate state for a user after their profile changes.
type Invalidator interface {
	Invalidate(userID string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) {}

func orNoop(inv Invalidator) Invalidator {
	if inv == nil {
		return noopInvalidator{}
	}
	return inv
}

func render(v *view.Renderer, w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if err := v.RenderStatus(w, r, status, name, data); err != nil {
		logging.FromContext(r.Context()).Error("render", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func logger(ctx context.Context) *zap.Logger {
	return logging.FromContext(ctx)
}
