package editor

import (
	"regexp"
	"strings"
)

// Project is the website document being edited: global settings plus an
// ordered list of pages. A Project always owns its pages exclusively.
type Project struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Settings WebsiteSettings `json:"settings"`
	Pages    []Page          `json:"pages"`
}

// WebsiteSettings holds the theme applied to every page of a Project.
type WebsiteSettings struct {
	Colors       Colors        `json:"colors"`
	Fonts        Fonts         `json:"fonts"`
	GlobalStyles *GlobalStyles `json:"globalStyles,omitempty"`
}

type Colors struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

type Fonts struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type GlobalStyles struct {
	BorderRadius string `json:"borderRadius,omitempty"`
	ButtonStyle  string `json:"buttonStyle,omitempty"`
}

// Page is one routable page of a Project.
type Page struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	IsHome   bool      `json:"isHome"`
	Elements []Element `json:"elements"`
}

// Element is one content block on a Page. Content's shape is decided by Type.
type Element struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Content  map[string]any `json:"content"`
	Settings map[string]any `json:"settings,omitempty"`
	Position int            `json:"position"`
}

// DefaultSettings returns the theme new projects start with.
func DefaultSettings() WebsiteSettings {
	return WebsiteSettings{
		Colors: Colors{
			Primary:    "#3B82F6",
			Secondary:  "#1E293B",
			Accent:     "#F59E0B",
			Background: "#FFFFFF",
			Text:       "#111827",
		},
		Fonts: Fonts{
			Heading: "Inter",
			Body:    "Inter",
		},
		GlobalStyles: &GlobalStyles{
			BorderRadius: "8px",
			ButtonStyle:  "rounded",
		},
	}
}

// NewProject builds a fresh project with a single home page.
func NewProject(id, name, homePageID string) *Project {
	return &Project{
		ID:       id,
		Name:     name,
		Settings: DefaultSettings(),
		Pages: []Page{{
			ID:       homePageID,
			Name:     "Home",
			Slug:     "home",
			IsHome:   true,
			Elements: []Element{},
		}},
	}
}

// Clone returns a deep copy; no slice or map is shared with p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := &Project{
		ID:       p.ID,
		Name:     p.Name,
		Settings: p.Settings,
		Pages:    make([]Page, len(p.Pages)),
	}
	if p.Settings.GlobalStyles != nil {
		gs := *p.Settings.GlobalStyles
		out.Settings.GlobalStyles = &gs
	}
	for i, page := range p.Pages {
		out.Pages[i] = page.clone()
	}
	return out
}

func (pg Page) clone() Page {
	out := pg
	out.Elements = make([]Element, len(pg.Elements))
	for i, el := range pg.Elements {
		out.Elements[i] = el.clone()
	}
	return out
}

func (el Element) clone() Element {
	out := el
	out.Content = cloneMap(el.Content)
	out.Settings = cloneMap(el.Settings)
	return out
}

// Page returns the page with the given id.
func (p *Project) Page(id string) (*Page, bool) {
	for i := range p.Pages {
		if p.Pages[i].ID == id {
			return &p.Pages[i], true
		}
	}
	return nil, false
}

// HomePage returns the page flagged as home.
func (p *Project) HomePage() (*Page, bool) {
	for i := range p.Pages {
		if p.Pages[i].IsHome {
			return &p.Pages[i], true
		}
	}
	return nil, false
}

func (pg *Page) element(id string) (*Element, int, bool) {
	for i := range pg.Elements {
		if pg.Elements[i].ID == id {
			return &pg.Elements[i], i, true
		}
	}
	return nil, -1, false
}

var (
	nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)
	validSlug  = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// ValidSlug reports whether slug is safe to use as a URL segment and a
// file name.
func ValidSlug(slug string) bool {
	return validSlug.MatchString(slug)
}

// Slugify lowercases name and replaces every run of non-alphanumeric
// characters with a single dash.
// Example: "About Us" -> "about-us"
func Slugify(name string) string {
	return nonSlugRun.ReplaceAllString(strings.ToLower(name), "-")
}
