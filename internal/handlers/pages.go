package handlers

import (
	"net/http"

	"github.com/diewo77/multifactors/internal/integrations"
	"github.com/diewo77/multifactors/internal/nav"
	"github.com/diewo77/multifactors/internal/view"
)

// PagesHandler serves the landing page and the catalog-driven section pages.
type PagesHandler struct {
	Catalog *integrations.Catalog
	view    *view.Renderer
}

func NewPagesHandler(catalog *integrations.Catalog, v *view.Renderer) *PagesHandler {
	return &PagesHandler{Catalog: catalog, view: v}
}

func (h *PagesHandler) Landing(w http.ResponseWriter, r *http.Request) {
	render(h.view, w, r, http.StatusOK, "landing.html", map[string]any{"Title": "Multifactors"})
}

type sectionLink struct {
	Href     string
	Kind     string
	Title    string
	Subtitle string
}

// Section returns the handler for /{section}/{page}. Unknown pages are 404.
func (h *PagesHandler) Section(section nav.Section) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("page")
		if slug == "" {
			http.Redirect(w, r, section.Prefix()+"/dashboard", http.StatusSeeOther)
			return
		}
		sec, page, ok := h.Catalog.Page(string(section), slug)
		if !ok {
			http.NotFound(w, r)
			return
		}

		links := make([]sectionLink, 0, len(sec.Pages))
		for _, p := range sec.Pages {
			links = append(links, sectionLink{Href: section.Prefix() + "/" + p.Slug, Kind: p.Kind, Title: p.Title, Subtitle: p.Subtitle})
		}

		data := nav.Page(r, section, page.Title)
		data["Page"] = page
		data["SectionPages"] = links
		if page.Kind == integrations.KindDashboard {
			data["DeviceStatuses"] = sec.DeviceStatuses()
		}
		render(h.view, w, r, http.StatusOK, "section_page.html", data)
	}
}
