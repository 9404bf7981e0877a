// Package integrations holds the fixture catalog behind the Multifactors,
// Ruijie and Tuya section pages.
package integrations

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Page kinds understood by the section templates.
const (
	KindDashboard   = "dashboard"
	KindDevices     = "devices"
	KindNetwork     = "network"
	KindSettings    = "settings"
	KindScenes      = "scenes"
	KindAutomations = "automations"
	KindProjects    = "projects"
	KindPartners    = "partners"
)

var kinds = map[string]bool{
	KindDashboard: true, KindDevices: true, KindNetwork: true, KindSettings: true,
	KindScenes: true, KindAutomations: true, KindProjects: true, KindPartners: true,
}

type Catalog struct {
	Sections []Section `yaml:"sections"`
}

type Section struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Pages []Page `yaml:"pages"`
}

type Page struct {
	Slug        string         `yaml:"slug"`
	Kind        string         `yaml:"kind"`
	Title       string         `yaml:"title"`
	Subtitle    string         `yaml:"subtitle"`
	Metrics     []Metric       `yaml:"metrics"`
	Devices     []Device       `yaml:"devices"`
	Scenes      []Scene        `yaml:"scenes"`
	Automations []Automation   `yaml:"automations"`
	Projects    []Project      `yaml:"projects"`
	Partners    []PartnerGroup `yaml:"partners"`
	Settings    []Setting      `yaml:"settings"`
}

type Metric struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

// Device covers both network gear (model, clients) and smart-home devices
// (type, room); unused fields stay empty.
type Device struct {
	Name    string `yaml:"name"`
	Model   string `yaml:"model"`
	Type    string `yaml:"type"`
	Room    string `yaml:"room"`
	Status  string `yaml:"status"`
	Clients int    `yaml:"clients"`
}

type Scene struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Devices     int    `yaml:"devices"`
}

type Automation struct {
	Name    string `yaml:"name"`
	Trigger string `yaml:"trigger"`
	Action  string `yaml:"action"`
	Status  string `yaml:"status"`
}

type Project struct {
	Name    string `yaml:"name"`
	SavedOn string `yaml:"saved_on"`
	Status  string `yaml:"status"`
}

type PartnerGroup struct {
	Group string   `yaml:"group"`
	Names []string `yaml:"names"`
}

type Setting struct {
	Group   string   `yaml:"group"`
	Label   string   `yaml:"label"`
	Value   string   `yaml:"value"`
	Options []string `yaml:"options"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := map[string]bool{}
	for _, s := range c.Sections {
		if s.Key == "" {
			return fmt.Errorf("catalog: section without key")
		}
		if seen[s.Key] {
			return fmt.Errorf("catalog: duplicate section %q", s.Key)
		}
		seen[s.Key] = true
		slugs := map[string]bool{}
		for _, p := range s.Pages {
			if !kinds[p.Kind] {
				return fmt.Errorf("catalog: %s/%s has unknown kind %q", s.Key, p.Slug, p.Kind)
			}
			if slugs[p.Slug] {
				return fmt.Errorf("catalog: duplicate page %s/%s", s.Key, p.Slug)
			}
			slugs[p.Slug] = true
		}
	}
	return nil
}

// Section returns the section with key.
func (c *Catalog) Section(key string) (*Section, bool) {
	for i := range c.Sections {
		if c.Sections[i].Key == key {
			return &c.Sections[i], true
		}
	}
	return nil, false
}

// Page returns the page slug inside section key.
func (c *Catalog) Page(key, slug string) (*Section, *Page, bool) {
	s, ok := c.Section(key)
	if !ok {
		return nil, nil, false
	}
	for i := range s.Pages {
		if s.Pages[i].Slug == slug {
			return s, &s.Pages[i], true
		}
	}
	return s, nil, false
}

// StatusCount is one entry of a device status breakdown.
type StatusCount struct {
	Status string
	Count  int
}

// DeviceStatuses counts devices by status across every page of the section,
// most common first.
func (s *Section) DeviceStatuses() []StatusCount {
	counts := map[string]int{}
	for _, p := range s.Pages {
		for _, d := range p.Devices {
			counts[d.Status]++
		}
	}
	out := make([]StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// SettingGroups returns settings grouped by Group in first-seen order.
func (p *Page) SettingGroups() []SettingGroup {
	var groups []SettingGroup
	index := map[string]int{}
	for _, s := range p.Settings {
		i, ok := index[s.Group]
		if !ok {
			i = len(groups)
			index[s.Group] = i
			groups = append(groups, SettingGroup{Name: s.Group})
		}
		groups[i].Settings = append(groups[i].Settings, s)
	}
	return groups
}

type SettingGroup struct {
	Name     string
	Settings []Setting
}
