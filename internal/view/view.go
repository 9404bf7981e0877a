// Package view renders the embedded HTML templates.
//
// Every page template defines a "content" block and is executed inside
// layout.html together with the shared partials. Parsed templates are cached
// per page unless the renderer runs in dev mode.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/multifactors/internal/auth"
)

//go:embed templates
var embedded embed.FS

// Renderer parses and executes page templates.
type Renderer struct {
	fsys fs.FS
	dev  bool

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// New returns a renderer over the embedded templates.
func New(dev bool) *Renderer {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return NewFS(sub, dev)
}

// NewFS returns a renderer over fsys, which must hold layout.html,
// partials/*.html and the page templates.
func NewFS(fsys fs.FS, dev bool) *Renderer {
	return &Renderer{fsys: fsys, dev: dev, cache: map[string]*template.Template{}}
}

// Funcs is the helper set available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"year": func() int { return time.Now().Year() },
		"lower": strings.ToLower,
		"capitalize": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "N/A"
			}
			return t.Format("Jan 2, 2006")
		},
		"datetime": func(t *time.Time) string {
			if t == nil || t.IsZero() {
				return "Never"
			}
			return t.Format("Jan 2, 2006 15:04")
		},
		"statusClass": func(status string) string {
			switch strings.ToLower(status) {
			case "approved", "online", "on", "active", "locked":
				return "badge-green"
			case "rejected", "offline", "off":
				return "badge-red"
			case "pending", "warning", "paused", "auto":
				return "badge-yellow"
			}
			return "badge-gray"
		},
		// dict creates a map from key-value pairs for passing to sub-templates.
		// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

func (v *Renderer) lookup(name string) (*template.Template, error) {
	if !v.dev {
		v.mu.RLock()
		t, ok := v.cache[name]
		v.mu.RUnlock()
		if ok {
			return t, nil
		}
	}
	t, err := template.New(name).Funcs(Funcs()).ParseFS(v.fsys, "layout.html", "partials/*.html", name)
	if err != nil {
		return nil, fmt.Errorf("view: parse %s: %w", name, err)
	}
	if !v.dev {
		v.mu.Lock()
		v.cache[name] = t
		v.mu.Unlock()
	}
	return t, nil
}

// Render writes the page with status 200.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return v.RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus executes the page into a buffer first so a template error
// never leaves a half-written response.
func (v *Renderer) RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	t, err := v.lookup(name)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		_, loggedIn := auth.IdentityFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	if _, exists := data["Path"]; !exists {
		data["Path"] = r.URL.Path
	}
	// forms index these directly
	for _, key := range []string{"Form", "Errors"} {
		if _, exists := data[key]; !exists {
			data[key] = map[string]string{}
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("view: execute %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
