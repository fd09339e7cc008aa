package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sitesmithapp/sitesmith/internal/editor"
	"github.com/sitesmithapp/sitesmith/internal/models"
	"github.com/sitesmithapp/sitesmith/internal/store"
)

type WebsiteService struct {
	Store    store.Store
	Projects store.ProjectStore
	deps
}

func NewWebsiteService(st store.Store, projects store.ProjectStore, opts ...Option) *WebsiteService {
	return &WebsiteService{Store: st, Projects: projects, deps: newDeps(opts)}
}

// CreateWebsite creates the website row and its initial single-page project
func (s *WebsiteService) CreateWebsite(ctx context.Context, userID, email string, req models.CreateWebsiteRequest) (*models.Website, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, rejected("name is required")
	}

	now := s.clock.Now()
	website := &models.Website{
		ID:        s.ids.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.Store.InTx(ctx, func(r store.Repo) error {
		if err := r.EnsureUser(ctx, userID, email); err != nil {
			return err
		}
		return r.CreateWebsite(ctx, website)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create website: %w", err)
	}

	project := editor.NewProject(website.ID, website.Name, s.ids.New())
	if err := s.Projects.SaveProject(ctx, project); err != nil {
		// Without a project document the website cannot be edited; undo the row.
		if delErr := s.Store.DeleteWebsite(ctx, website.ID); delErr != nil {
			log.Printf("[Website] Failed to remove website %s after project save error: %v", website.ID, delErr)
		}
		return nil, &ExternalError{Op: "creating the website project", Err: err}
	}

	log.Printf("[Website] Created website %s for user %s", website.ID, userID)
	return website, nil
}

// GetWebsite returns the website only if userID owns it
func (s *WebsiteService) GetWebsite(ctx context.Context, websiteID, userID string) (*models.Website, error) {
	website, err := s.Store.GetWebsite(ctx, websiteID)
	if err != nil {
		return nil, err
	}
	if website.UserID != userID {
		return nil, fmt.Errorf("website %s: %w", websiteID, store.ErrNotFound)
	}
	return website, nil
}

func (s *WebsiteService) ListWebsites(ctx context.Context, userID string) ([]*models.Website, error) {
	websites, err := s.Store.ListWebsites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	return websites, nil
}

// UpdateWebsite applies a partial update. Only non-nil fields are written.
func (s *WebsiteService) UpdateWebsite(ctx context.Context, websiteID string, upd models.WebsiteUpdate) (*models.Website, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, rejected("name cannot be empty")
		}
		upd.Name = &name
	}
	return s.Store.UpdateWebsite(ctx, websiteID, upd, s.clock.Now())
}

// RenameWebsite renames an owned website and its project document.
func (s *WebsiteService) RenameWebsite(ctx context.Context, websiteID, userID, name string) (*models.Website, error) {
	if _, err := s.GetWebsite(ctx, websiteID, userID); err != nil {
		return nil, err
	}
	website, err := s.UpdateWebsite(ctx, websiteID, models.WebsiteUpdate{Name: &name})
	if err != nil {
		return nil, err
	}

	project, err := s.Projects.LoadProject(ctx, websiteID)
	if err == nil && project.Name != website.Name {
		project.Name = website.Name
		err = s.Projects.SaveProject(ctx, project)
	}
	if err != nil {
		log.Printf("[Website] Failed to rename project %s: %v", websiteID, err)
	}
	return website, nil
}

// DeleteWebsite removes the website, its deployments and domains, and the
// project document.
func (s *WebsiteService) DeleteWebsite(ctx context.Context, websiteID, userID string) error {
	if _, err := s.GetWebsite(ctx, websiteID, userID); err != nil {
		return err
	}
	if err := s.Store.DeleteWebsite(ctx, websiteID); err != nil {
		return fmt.Errorf("failed to delete website: %w", err)
	}
	if err := s.Projects.DeleteProject(ctx, websiteID); err != nil && !IsNotFound(err) {
		log.Printf("[Website] Failed to delete project document %s: %v", websiteID, err)
	}
	log.Printf("[Website] Deleted website %s", websiteID)
	return nil
}

// GetProject loads the project document of an owned website.
func (s *WebsiteService) GetProject(ctx context.Context, websiteID, userID string) (*editor.Project, error) {
	if _, err := s.GetWebsite(ctx, websiteID, userID); err != nil {
		return nil, err
	}
	return s.Projects.LoadProject(ctx, websiteID)
}

// SaveProject replaces the project document of an owned website wholesale.
func (s *WebsiteService) SaveProject(ctx context.Context, websiteID, userID string, project *editor.Project) error {
	if _, err := s.GetWebsite(ctx, websiteID, userID); err != nil {
		return err
	}
	if err := validateProject(project); err != nil {
		return err
	}
	project.ID = websiteID
	if err := s.Projects.SaveProject(ctx, project); err != nil {
		return &ExternalError{Op: "saving the project", Err: err}
	}
	return nil
}

func validateProject(p *editor.Project) error {
	if p == nil || len(p.Pages) == 0 {
		return editor.ErrEmptyProject
	}
	homes := 0
	ids := make(map[string]bool, len(p.Pages))
	for _, pg := range p.Pages {
		if pg.ID == "" {
			return rejected("every page needs an id")
		}
		if ids[pg.ID] {
			return rejected("duplicate page id %s", pg.ID)
		}
		ids[pg.ID] = true
		if pg.Slug != "" && !editor.ValidSlug(pg.Slug) {
			return rejected("page %s has invalid slug %q", pg.ID, pg.Slug)
		}
		if pg.IsHome {
			homes++
		}
	}
	if homes != 1 {
		return rejected("project must have exactly one home page, found %d", homes)
	}
	return nil
}
