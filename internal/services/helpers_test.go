package services_test

import (
	"context"
	"testing"

	"github.com/sitesmithapp/sitesmith/internal/lifecycle"
	"github.com/sitesmithapp/sitesmith/internal/models"
	"github.com/sitesmithapp/sitesmith/internal/queue"
	"github.com/sitesmithapp/sitesmith/internal/services"
	"github.com/sitesmithapp/sitesmith/internal/store"
	"github.com/sitesmithapp/sitesmith/internal/testutil"
)

const (
	owner    = "user-1"
	stranger = "user-2"
)

type fixture struct {
	store     *store.Memory
	projects  *store.MemoryProjects
	jobs      *queue.Memory
	artifacts *testutil.RecordingArtifacts
	checker   *testutil.StubChecker
	clock     *testutil.StubClock

	websites    *services.WebsiteService
	deployments *services.DeploymentService
	domains     *services.DomainService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.NewMemory(),
		projects:  store.NewMemoryProjects(),
		jobs:      queue.NewMemory(16),
		artifacts: testutil.NewRecordingArtifacts(),
		checker:   testutil.NewStubChecker(lifecycle.VerificationOutcome{Verified: true}),
		clock:     testutil.FixedClock(),
	}
	opts := []services.Option{
		services.WithClock(f.clock),
		services.WithIDGenerator(testutil.NewStubIDGenerator()),
	}
	f.websites = services.NewWebsiteService(f.store, f.projects, opts...)
	f.deployments = services.NewDeploymentService(f.store, f.jobs, f.artifacts, opts...)
	f.domains = services.NewDomainService(f.store, f.checker, "cname.sitesmith.app", "_sitesmith-verify", opts...)
	return f
}

func (f *fixture) website(t *testing.T) *models.Website {
	t.Helper()
	w, err := f.websites.CreateWebsite(context.Background(), owner, "owner@example.com", models.CreateWebsiteRequest{Name: "My Site"})
	if err != nil {
		t.Fatalf("CreateWebsite: %v", err)
	}
	return w
}

// runningDeployment publishes and marks the deployment in_progress.
func (f *fixture) runningDeployment(t *testing.T, websiteID string) *models.Deployment {
	t.Helper()
	ctx := context.Background()
	d, err := f.deployments.Publish(ctx, websiteID, owner, "")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	d, err = f.deployments.MarkInProgress(ctx, d.ID)
	if err != nil {
		t.Fatalf("MarkInProgress: %v", err)
	}
	return d
}
