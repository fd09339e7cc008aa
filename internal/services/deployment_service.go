package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/sitesmithapp/sitesmith/internal/lifecycle"
	"github.com/sitesmithapp/sitesmith/internal/models"
	"github.com/sitesmithapp/sitesmith/internal/queue"
	"github.com/sitesmithapp/sitesmith/internal/storage"
	"github.com/sitesmithapp/sitesmith/internal/store"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// DeploymentService creates deployments, hands them to the build queue and
// drives them through their status machine.
type DeploymentService struct {
	Store     store.Store
	Jobs      queue.Jobs
	Artifacts storage.Artifacts
	deps
}

func NewDeploymentService(st store.Store, jobs queue.Jobs, artifacts storage.Artifacts, opts ...Option) *DeploymentService {
	return &DeploymentService{Store: st, Jobs: jobs, Artifacts: artifacts, deps: newDeps(opts)}
}

// Publish records a queued deployment with the next version number and
// enqueues the build. The website's lastPublishedAt is stamped only once the
// job is on the queue.
func (s *DeploymentService) Publish(ctx context.Context, websiteID, userID, commitMessage string) (*models.Deployment, error) {
	var deployment *models.Deployment
	err := s.Store.InTx(ctx, func(r store.Repo) error {
		website, err := r.GetWebsite(ctx, websiteID)
		if err != nil {
			return err
		}
		if website.UserID != userID {
			return fmt.Errorf("website %s: %w", websiteID, store.ErrNotFound)
		}

		version, err := r.NextDeploymentVersion(ctx, websiteID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		deployment = &models.Deployment{
			ID:        s.ids.New(),
			WebsiteID: websiteID,
			UserID:    userID,
			Status:    models.DeploymentQueued,
			Version:   version,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if msg := strings.TrimSpace(commitMessage); msg != "" {
			deployment.CommitMessage = &msg
		}
		return r.CreateDeployment(ctx, deployment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	log.Printf("[Publish] Created deployment %s (v%d) for website %s", deployment.ID, deployment.Version, websiteID)
	return s.enqueue(ctx, deployment)
}

// enqueue pushes the build job and stamps the website's lastPublishedAt. If
// the queue is unreachable the deployment is canceled so it does not sit in
// queued forever, and the website is left as it was.
func (s *DeploymentService) enqueue(ctx context.Context, d *models.Deployment) (*models.Deployment, error) {
	job := models.BuildJob{
		DeploymentID: d.ID,
		WebsiteID:    d.WebsiteID,
		UserID:       d.UserID,
		Version:      d.Version,
	}
	if err := s.Jobs.Enqueue(ctx, job); err != nil {
		log.Printf("[Publish] Failed to enqueue deployment %s: %v", d.ID, err)
		msg := fmt.Sprintf("could not queue build: %v", err)
		if _, cancelErr := s.finish(ctx, d.ID, models.DeploymentCanceled, func(d *models.Deployment) {
			d.ErrorMessage = &msg
		}); cancelErr != nil {
			log.Printf("[Publish] Failed to cancel deployment %s: %v", d.ID, cancelErr)
		}
		return nil, &ExternalError{Op: "queueing the build", Err: err}
	}
	log.Printf("[Publish] Queued build for deployment %s", d.ID)

	// The build is already queued, so a failed stamp is only logged.
	now := s.clock.Now()
	if err := s.Store.InTx(ctx, func(r store.Repo) error {
		_, err := r.UpdateWebsite(ctx, d.WebsiteID, models.WebsiteUpdate{LastPublishedAt: &now}, now)
		return err
	}); err != nil {
		log.Printf("[Publish] Failed to stamp lastPublishedAt on website %s: %v", d.WebsiteID, err)
	}
	return d, nil
}

// ListDeployments returns one page of a website's deployments, newest first.
func (s *DeploymentService) ListDeployments(ctx context.Context, websiteID string, page, limit int) (*models.DeploymentPage, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit == 0:
		limit = DefaultPageLimit
	case limit < 1:
		limit = 1
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}

	items, total, err := s.Store.ListDeployments(ctx, websiteID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	if items == nil {
		items = []*models.Deployment{}
	}

	return &models.DeploymentPage{
		Items: items,
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

func (s *DeploymentService) GetDeployment(ctx context.Context, deploymentID string) (*models.Deployment, error) {
	return s.Store.GetDeployment(ctx, deploymentID)
}

// GetWebsiteDeployment returns the deployment only if it belongs to
// websiteID and the website belongs to userID.
func (s *DeploymentService) GetWebsiteDeployment(ctx context.Context, websiteID, deploymentID, userID string) (*models.Deployment, error) {
	website, err := s.Store.GetWebsite(ctx, websiteID)
	if err != nil {
		return nil, err
	}
	d, err := s.Store.GetDeployment(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	if website.UserID != userID || d.WebsiteID != websiteID {
		return nil, fmt.Errorf("deployment %s: %w", deploymentID, store.ErrNotFound)
	}
	return d, nil
}

// MarkInProgress is called when a build worker picks the job up.
func (s *DeploymentService) MarkInProgress(ctx context.Context, deploymentID string) (*models.Deployment, error) {
	var out *models.Deployment
	err := s.Store.InTx(ctx, func(r store.Repo) error {
		d, err := r.GetDeployment(ctx, deploymentID)
		if err != nil {
			return err
		}
		if err := lifecycle.TransitionDeployment(d, models.DeploymentInProgress, s.clock.Now()); err != nil {
			return err
		}
		out = d
		return r.UpdateDeployment(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkSucceeded records a finished build and points the website at it. Both
// rows change in one transaction.
func (s *DeploymentService) MarkSucceeded(ctx context.Context, deploymentID string, result models.BuildResult) (*models.Deployment, error) {
	var out *models.Deployment
	err := s.Store.InTx(ctx, func(r store.Repo) error {
		d, err := r.GetDeployment(ctx, deploymentID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := lifecycle.TransitionDeployment(d, models.DeploymentSuccess, now); err != nil {
			return err
		}
		url := result.DeploymentURL
		buildMs := result.BuildTime.Milliseconds()
		d.DeploymentURL = &url
		d.BuildTime = &buildMs
		if result.BuildLogs != "" {
			logs := result.BuildLogs
			d.BuildLogs = &logs
		}
		if err := r.UpdateDeployment(ctx, d); err != nil {
			return err
		}

		_, err = r.UpdateWebsite(ctx, d.WebsiteID, models.WebsiteUpdate{
			LastDeployedAt:             d.CompletedAt,
			LastSuccessfulDeploymentID: &d.ID,
		}, now)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Publish] Deployment %s succeeded: %s", deploymentID, result.DeploymentURL)
	return out, nil
}

// MarkFailed records a failed build. The website keeps pointing at its last
// successful deployment.
func (s *DeploymentService) MarkFailed(ctx context.Context, deploymentID, message, buildLogs string) (*models.Deployment, error) {
	d, err := s.finish(ctx, deploymentID, models.DeploymentFailed, func(d *models.Deployment) {
		d.ErrorMessage = &message
		if buildLogs != "" {
			d.BuildLogs = &buildLogs
		}
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Publish] Deployment %s failed: %s", deploymentID, message)
	return d, nil
}

// Cancel stops a queued or running deployment.
func (s *DeploymentService) Cancel(ctx context.Context, deploymentID string) (*models.Deployment, error) {
	d, err := s.finish(ctx, deploymentID, models.DeploymentCanceled, nil)
	if err != nil {
		return nil, err
	}
	log.Printf("[Publish] Deployment %s canceled", deploymentID)
	return d, nil
}

func (s *DeploymentService) finish(ctx context.Context, deploymentID string, to models.DeploymentStatus, fill func(*models.Deployment)) (*models.Deployment, error) {
	var out *models.Deployment
	err := s.Store.InTx(ctx, func(r store.Repo) error {
		d, err := r.GetDeployment(ctx, deploymentID)
		if err != nil {
			return err
		}
		if err := lifecycle.TransitionDeployment(d, to, s.clock.Now()); err != nil {
			return err
		}
		if fill != nil {
			fill(d)
		}
		out = d
		return r.UpdateDeployment(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Retry queues a new deployment for the same version and commit message.
// The failed or canceled original is never modified.
func (s *DeploymentService) Retry(ctx context.Context, deploymentID string) (*models.Deployment, error) {
	var retry *models.Deployment
	err := s.Store.InTx(ctx, func(r store.Repo) error {
		original, err := r.GetDeployment(ctx, deploymentID)
		if err != nil {
			return err
		}
		if !lifecycle.CanRetry(original.Status) {
			return rejected("deployment %s is %s, only failed or canceled deployments can be retried", original.ID, original.Status)
		}

		now := s.clock.Now()
		retry = &models.Deployment{
			ID:            s.ids.New(),
			WebsiteID:     original.WebsiteID,
			UserID:        original.UserID,
			Status:        models.DeploymentQueued,
			Version:       original.Version,
			CommitMessage: original.CommitMessage,
			RetryOf:       &original.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return r.CreateDeployment(ctx, retry)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Publish] Retrying deployment %s as %s", deploymentID, retry.ID)
	return s.enqueue(ctx, retry)
}

// DeleteDeployment removes a finished deployment and its bundle. Running
// deployments must be canceled first.
func (s *DeploymentService) DeleteDeployment(ctx context.Context, deploymentID string) error {
	var deleted *models.Deployment
	err := s.Store.InTx(ctx, func(r store.Repo) error {
		d, err := r.GetDeployment(ctx, deploymentID)
		if err != nil {
			return err
		}
		if !lifecycle.IsTerminal(d.Status) {
			return rejected("deployment %s is still %s, cancel it first", d.ID, d.Status)
		}
		deleted = d
		return r.DeleteDeployment(ctx, d.ID)
	})
	if err != nil {
		return err
	}

	if deleted.Status == models.DeploymentSuccess && s.Artifacts != nil {
		key := storage.BundleKey(deleted.WebsiteID, deleted.ID)
		if err := s.Artifacts.Delete(ctx, key); err != nil {
			log.Printf("[Publish] Failed to delete bundle %s: %v", key, err)
		}
	}
	return nil
}

// IsCanceled reports whether the deployment was canceled. Builders check it
// between steps.
func (s *DeploymentService) IsCanceled(ctx context.Context, deploymentID string) (bool, error) {
	d, err := s.Store.GetDeployment(ctx, deploymentID)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return d.Status == models.DeploymentCanceled, nil
}
