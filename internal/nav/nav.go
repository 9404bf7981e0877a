// Package nav builds the sidebar shell for the dashboard sections.
package nav

import (
	"net/http"
	"strings"

	"github.com/diewo77/multifactors/internal/auth"
	"github.com/diewo77/multifactors/internal/models"
)

// Section is a top-level area with its own sidebar.
type Section string

const (
	Multifactors Section = "multifactors"
	Ruijie       Section = "ruijie"
	Tuya         Section = "tuya"
)

// Sections lists every gated section.
var Sections = []Section{Multifactors, Ruijie, Tuya}

// Title is the sidebar heading.
func (s Section) Title() string {
	switch s {
	case Ruijie:
		return "Ruijie Reyee"
	case Tuya:
		return "Tuya"
	}
	return "Multifactors"
}

// Prefix is the URL prefix of the section.
func (s Section) Prefix() string { return "/" + string(s) }

// Item is one sidebar link.
type Item struct {
	Label  string
	Href   string
	Active bool
}

// ApprovalPath is the admin-only account approval page.
const ApprovalPath = "/multifactors/account-approval"

// Items returns the sidebar for section. The approval link is only shown to
// approved admins.
func Items(section Section, p *models.Profile, path string) []Item {
	var items []Item
	switch section {
	case Ruijie:
		items = []Item{
			{Label: "Dashboard", Href: "/ruijie/dashboard"},
			{Label: "Devices", Href: "/ruijie/devices"},
			{Label: "Network", Href: "/ruijie/network"},
			{Label: "Settings", Href: "/ruijie/settings"},
			{Label: "Back to Multifactors", Href: "/multifactors/dashboard"},
		}
	case Tuya:
		items = []Item{
			{Label: "Dashboard", Href: "/tuya/dashboard"},
			{Label: "Devices", Href: "/tuya/devices"},
			{Label: "Scenes", Href: "/tuya/scenes"},
			{Label: "Automation", Href: "/tuya/automation"},
			{Label: "Back to Multifactors", Href: "/multifactors/dashboard"},
		}
	default:
		items = []Item{
			{Label: "Dashboard", Href: "/multifactors/dashboard"},
			{Label: "Saved Projects", Href: "/multifactors/saved-projects"},
			{Label: "Suppliers & Customers", Href: "/multifactors/suppliers-customers"},
		}
		if p != nil && p.IsAdmin() && p.IsApproved() {
			items = append(items, Item{Label: "Account Approval", Href: ApprovalPath})
		}
		items = append(items,
			Item{Label: "Ruijie Reyee", Href: "/ruijie/dashboard"},
			Item{Label: "Tuya", Href: "/tuya/dashboard"},
		)
	}
	for i := range items {
		items[i].Active = path == items[i].Href || strings.HasPrefix(path, items[i].Href+"/")
	}
	return items
}

// Page returns the base template data for a page inside section: title,
// sidebar and the profile the gate resolved for this request.
func Page(r *http.Request, section Section, title string) map[string]any {
	p, _ := auth.ProfileFromContext(r.Context())
	data := map[string]any{
		"Title":        title,
		"Section":      section,
		"SectionTitle": section.Title(),
		"Nav":          Items(section, p, r.URL.Path),
	}
	if p != nil {
		data["Profile"] = p
	}
	return data
}
