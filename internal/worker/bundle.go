package worker

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sitesmithapp/sitesmith/internal/editor"
	"github.com/sitesmithapp/sitesmith/internal/models"
)

// richTextFields lists, per element type, the content keys that hold HTML.
var richTextFields = map[string][]string{
	editor.TypeText:   {"content"},
	editor.TypeCustom: {"html"},
}

// sanitizeProject returns a copy of p with every rich-text field passed
// through policy.
func sanitizeProject(p *editor.Project, policy *bluemonday.Policy) *editor.Project {
	out := p.Clone()
	for i := range out.Pages {
		for j := range out.Pages[i].Elements {
			el := &out.Pages[i].Elements[j]
			for _, key := range richTextFields[el.Type] {
				if html, ok := el.Content[key].(string); ok {
					el.Content[key] = policy.Sanitize(html)
				}
			}
		}
	}
	return out
}

type manifest struct {
	WebsiteID    string          `json:"websiteId"`
	DeploymentID string          `json:"deploymentId"`
	Version      int             `json:"version"`
	Name         string          `json:"name"`
	BuiltAt      time.Time       `json:"builtAt"`
	Pages        []manifestEntry `json:"pages"`
}

type manifestEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	IsHome bool   `json:"isHome"`
	Path   string `json:"path"`
}

// bundleSlug picks the file name of a page inside the bundle: its slug,
// else a cleaned-up slug or page id, else page-<n>. The result is always a
// valid slug not yet in used.
func bundleSlug(pg editor.Page, index int, used map[string]bool) string {
	for _, candidate := range []string{pg.Slug, pg.ID} {
		if !editor.ValidSlug(candidate) {
			candidate = strings.Trim(editor.Slugify(candidate), "-")
		}
		if candidate != "" && !used[candidate] {
			return candidate
		}
	}
	slug := fmt.Sprintf("page-%d", index+1)
	for n := 2; used[slug]; n++ {
		slug = fmt.Sprintf("page-%d-%d", index+1, n)
	}
	return slug
}

// packageSite writes the site bundle: manifest.json, project.json and one
// pages/<slug>.json per page with its elements in position order.
func packageSite(p *editor.Project, job models.BuildJob, builtAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	m := manifest{
		WebsiteID:    job.WebsiteID,
		DeploymentID: job.DeploymentID,
		Version:      job.Version,
		Name:         p.Name,
		BuiltAt:      builtAt,
	}

	used := make(map[string]bool, len(p.Pages))
	files := make(map[string]any, len(p.Pages)+2)
	for i, pg := range p.Pages {
		slug := bundleSlug(pg, i, used)
		used[slug] = true

		page := pg
		page.Elements = append([]editor.Element(nil), pg.Elements...)
		sort.SliceStable(page.Elements, func(a, b int) bool {
			return page.Elements[a].Position < page.Elements[b].Position
		})

		path := "pages/" + slug + ".json"
		files[path] = page
		m.Pages = append(m.Pages, manifestEntry{
			ID:     pg.ID,
			Name:   pg.Name,
			Slug:   pg.Slug,
			IsHome: pg.IsHome,
			Path:   path,
		})
	}
	files["project.json"] = p
	files["manifest.json"] = m

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := json.MarshalIndent(files[name], "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		header := &tar.Header{
			Name:    name,
			Mode:    0644,
			Size:    int64(len(data)),
			ModTime: builtAt,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, err
		}
		if _, err := tw.Write(data); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gzw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
