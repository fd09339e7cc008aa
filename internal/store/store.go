// Package store persists websites, deployments and domains.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sitesmithapp/sitesmith/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Repo is the set of row operations available both outside and inside a
// transaction. Inside InTx, Get* calls lock the returned row until commit.
type Repo interface {
	EnsureUser(ctx context.Context, id, email string) error

	CreateWebsite(ctx context.Context, w *models.Website) error
	GetWebsite(ctx context.Context, id string) (*models.Website, error)
	ListWebsites(ctx context.Context, userID string) ([]*models.Website, error)
	UpdateWebsite(ctx context.Context, id string, upd models.WebsiteUpdate, now time.Time) (*models.Website, error)
	DeleteWebsite(ctx context.Context, id string) error

	NextDeploymentVersion(ctx context.Context, websiteID string) (int, error)
	CreateDeployment(ctx context.Context, d *models.Deployment) error
	GetDeployment(ctx context.Context, id string) (*models.Deployment, error)
	ListDeployments(ctx context.Context, websiteID string, limit, offset int) ([]*models.Deployment, int, error)
	UpdateDeployment(ctx context.Context, d *models.Deployment) error
	DeleteDeployment(ctx context.Context, id string) error

	CreateDomain(ctx context.Context, d *models.Domain) error
	GetDomain(ctx context.Context, id string) (*models.Domain, error)
	ListDomains(ctx context.Context, websiteID string) ([]*models.Domain, error)
	UpdateDomain(ctx context.Context, d *models.Domain) error
	DeleteDomain(ctx context.Context, id string) error
}

// Store is a Repo that can also run a group of operations atomically.
type Store interface {
	Repo
	// InTx runs fn in one transaction. A non-nil error from fn rolls back
	// every change fn made.
	InTx(ctx context.Context, fn func(Repo) error) error
}
