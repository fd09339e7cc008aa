package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sitesmithapp/sitesmith/config"
	"github.com/sitesmithapp/sitesmith/internal/editor"
	"github.com/sitesmithapp/sitesmith/internal/models"
	"github.com/sitesmithapp/sitesmith/internal/queue"
	"github.com/sitesmithapp/sitesmith/internal/services"
	"github.com/sitesmithapp/sitesmith/internal/storage"
)

const dequeueTimeout = 5 * time.Second

// errCanceled stops a build whose deployment was canceled mid-way.
var errCanceled = errors.New("deployment canceled")

type Builder struct {
	Config            *config.Config
	DeploymentService *services.DeploymentService
	Projects          editor.Persister
	Jobs              queue.Jobs
	Progress          queue.Progress
	Artifacts         storage.Artifacts
	policy            *bluemonday.Policy
}

func NewBuilder(cfg *config.Config, deploymentService *services.DeploymentService, projects editor.Persister, jobs queue.Jobs, progress queue.Progress, artifacts storage.Artifacts) *Builder {
	return &Builder{
		Config:            cfg,
		DeploymentService: deploymentService,
		Projects:          projects,
		Jobs:              jobs,
		Progress:          progress,
		Artifacts:         artifacts,
		policy:            bluemonday.UGCPolicy(),
	}
}

// Run pops build jobs until ctx is done. A build that is running when ctx
// is canceled is allowed to finish recording its result.
func (b *Builder) Run(ctx context.Context) error {
	log.Printf("[Builder] Waiting for build jobs")
	for {
		if ctx.Err() != nil {
			log.Printf("[Builder] Stopping")
			return nil
		}

		job, err := b.Jobs.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("[Builder] Failed to read build queue: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		if err := b.BuildSite(context.WithoutCancel(ctx), *job); err != nil {
			log.Printf("[Builder] Build for deployment %s ended with error: %v", job.DeploymentID, err)
		}
	}
}

// BuildSite builds and publishes one deployment.
func (b *Builder) BuildSite(ctx context.Context, job models.BuildJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = b.handleError(ctx, job.DeploymentID, "Build panic", fmt.Errorf("%v", r), "")
		}
	}()

	log.Printf("[Builder] Starting build for deployment %s, website %s (v%d)", job.DeploymentID, job.WebsiteID, job.Version)

	if _, err := b.DeploymentService.MarkInProgress(ctx, job.DeploymentID); err != nil {
		if services.IsRejected(err) || services.IsNotFound(err) {
			log.Printf("[Builder] Skipping deployment %s: %v", job.DeploymentID, err)
			return nil
		}
		return fmt.Errorf("failed to start deployment %s: %w", job.DeploymentID, err)
	}
	start := time.Now()

	timeout := b.Config.BuildTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	buildCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var buildLog strings.Builder
	step := func(message string) error {
		fmt.Fprintf(&buildLog, "%s %s\n", time.Now().UTC().Format(time.RFC3339), message)
		b.sendProgress(job.DeploymentID, models.DeploymentInProgress, message)
		if buildCtx.Err() != nil {
			return fmt.Errorf("build timed out after %s", timeout)
		}
		canceled, err := b.DeploymentService.IsCanceled(ctx, job.DeploymentID)
		if err != nil {
			log.Printf("[Builder] Warning: could not check cancellation for %s: %v", job.DeploymentID, err)
			return nil
		}
		if canceled {
			return errCanceled
		}
		return nil
	}
	fail := func(message string, err error) error {
		if errors.Is(err, errCanceled) {
			log.Printf("[Builder] Deployment %s was canceled, abandoning build", job.DeploymentID)
			b.sendProgress(job.DeploymentID, models.DeploymentCanceled, "Build canceled")
			return nil
		}
		return b.handleError(ctx, job.DeploymentID, message, err, buildLog.String())
	}

	if err := step("Loading project..."); err != nil {
		return fail("Build stopped", err)
	}
	project, err := b.Projects.LoadProject(buildCtx, job.WebsiteID)
	if err != nil {
		return fail("Failed to load project", err)
	}

	if err := step(fmt.Sprintf("Sanitizing %d pages...", len(project.Pages))); err != nil {
		return fail("Build stopped", err)
	}
	clean := sanitizeProject(project, b.policy)

	if err := step("Packaging site..."); err != nil {
		return fail("Build stopped", err)
	}
	bundle, err := packageSite(clean, job, time.Now().UTC())
	if err != nil {
		return fail("Failed to package site", err)
	}

	if err := step("Uploading bundle..."); err != nil {
		return fail("Build stopped", err)
	}
	key := storage.BundleKey(job.WebsiteID, job.DeploymentID)
	if err := b.Artifacts.Put(buildCtx, key, bundle, "application/gzip"); err != nil {
		return fail("Failed to upload bundle", err)
	}
	fmt.Fprintf(&buildLog, "Uploaded %d bytes to %s\n", len(bundle), key)

	url := fmt.Sprintf("%s/%s/v%d", strings.TrimRight(b.Config.SitesBaseURL, "/"), job.WebsiteID, job.Version)
	_, err = b.DeploymentService.MarkSucceeded(ctx, job.DeploymentID, models.BuildResult{
		DeploymentURL: url,
		BuildTime:     time.Since(start),
		BuildLogs:     buildLog.String(),
	})
	if err != nil {
		if services.IsRejected(err) {
			// Canceled between the last check and now; the bundle is orphaned.
			log.Printf("[Builder] Deployment %s finished after cancellation: %v", job.DeploymentID, err)
			if delErr := b.Artifacts.Delete(ctx, key); delErr != nil {
				log.Printf("[Builder] Failed to delete orphaned bundle %s: %v", key, delErr)
			}
			return nil
		}
		return fail("Failed to record success", err)
	}

	b.sendProgress(job.DeploymentID, models.DeploymentSuccess, "Site published at "+url)
	log.Printf("[Builder] Build completed for deployment %s: %s", job.DeploymentID, url)
	return nil
}

func (b *Builder) sendProgress(deploymentID string, status models.DeploymentStatus, message string) {
	if b.Progress == nil {
		return
	}
	progress := models.BuildProgress{
		DeploymentID: deploymentID,
		Status:       status,
		Message:      message,
		Timestamp:    time.Now(),
	}
	if err := b.Progress.PublishProgress(context.Background(), progress); err != nil {
		log.Printf("[Builder] Failed to publish progress: %v", err)
	}
}

func (b *Builder) handleError(ctx context.Context, deploymentID, message string, err error, buildLog string) error {
	fullMsg := fmt.Sprintf("%s: %v", message, err)
	log.Printf("[Builder] ERROR for deployment %s: %s", deploymentID, fullMsg)
	b.sendProgress(deploymentID, models.DeploymentFailed, fullMsg)

	if _, markErr := b.DeploymentService.MarkFailed(ctx, deploymentID, fullMsg, buildLog); markErr != nil {
		log.Printf("[Builder] Failed to mark deployment %s as failed: %v", deploymentID, markErr)
	}
	return errors.New(fullMsg)
}
