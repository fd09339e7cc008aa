package worker

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sitesmithapp/sitesmith/config"
	"github.com/sitesmithapp/sitesmith/internal/editor"
	"github.com/sitesmithapp/sitesmith/internal/models"
	"github.com/sitesmithapp/sitesmith/internal/queue"
	"github.com/sitesmithapp/sitesmith/internal/services"
	"github.com/sitesmithapp/sitesmith/internal/storage"
	"github.com/sitesmithapp/sitesmith/internal/store"
	"github.com/sitesmithapp/sitesmith/internal/testutil"
)

type harness struct {
	builder     *Builder
	websites    *services.WebsiteService
	deployments *services.DeploymentService
	projects    *store.MemoryProjects
	queue       *queue.Memory
	artifacts   *testutil.RecordingArtifacts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := store.NewMemory()
	h := &harness{
		projects:  store.NewMemoryProjects(),
		queue:     queue.NewMemory(8),
		artifacts: testutil.NewRecordingArtifacts(),
	}
	ids := services.WithIDGenerator(testutil.NewStubIDGenerator())
	h.websites = services.NewWebsiteService(st, h.projects, ids)
	h.deployments = services.NewDeploymentService(st, h.queue, h.artifacts, ids)
	cfg := &config.Config{SitesBaseURL: "https://sites.example/", BuildTimeout: time.Minute}
	h.builder = NewBuilder(cfg, h.deployments, h.projects, h.queue, h.queue, h.artifacts)
	return h
}

// publish creates a website whose home page holds a text element and
// returns the queued job.
func (h *harness) publish(t *testing.T, html string) models.BuildJob {
	t.Helper()
	ctx := context.Background()
	w, err := h.websites.CreateWebsite(ctx, "user-1", "", models.CreateWebsiteRequest{Name: "Bakery"})
	if err != nil {
		t.Fatalf("CreateWebsite: %v", err)
	}

	ed := editor.New(editor.WithPersister(h.projects))
	if err := ed.LoadProject(ctx, w.ID); err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	home := ed.Project().Pages[0].ID
	textID, _ := ed.AddElementAt(home, editor.TypeText, 5)
	ed.UpdateElement(home, textID, editor.ElementPatch{Content: map[string]any{"content": html}})
	ed.AddElementAt(home, editor.TypeHero, 1)
	if _, err := ed.AddPage("About Us"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if err := ed.SaveProject(ctx); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}

	if _, err := h.deployments.Publish(ctx, w.ID, "user-1", "first"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	job, err := h.queue.Dequeue(ctx, time.Millisecond)
	if err != nil || job == nil {
		t.Fatalf("Dequeue: %v %v", job, err)
	}
	return *job
}

func readBundle(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	tr := tar.NewReader(gzr)
	files := map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		body, _ := io.ReadAll(tr)
		files[hdr.Name] = body
	}
	return files
}

func TestBuildSite_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.publish(t, `<p>Fresh bread<script>alert(1)</script></p>`)

	if err := h.builder.BuildSite(ctx, job); err != nil {
		t.Fatalf("BuildSite: %v", err)
	}

	d, _ := h.deployments.GetDeployment(ctx, job.DeploymentID)
	if d.Status != models.DeploymentSuccess {
		t.Fatalf("status = %s, error = %v", d.Status, d.ErrorMessage)
	}
	wantURL := "https://sites.example/" + job.WebsiteID + "/v1"
	if d.DeploymentURL == nil || *d.DeploymentURL != wantURL {
		t.Errorf("DeploymentURL = %v, want %s", d.DeploymentURL, wantURL)
	}
	if d.BuildTime == nil || *d.BuildTime < 0 {
		t.Errorf("BuildTime = %v", d.BuildTime)
	}
	if d.BuildLogs == nil || !strings.Contains(*d.BuildLogs, "Packaging site") {
		t.Errorf("BuildLogs = %v", d.BuildLogs)
	}

	website, _ := h.websites.GetWebsite(ctx, job.WebsiteID, "user-1")
	if website.LastSuccessfulDeploymentID == nil || *website.LastSuccessfulDeploymentID != d.ID {
		t.Errorf("LastSuccessfulDeploymentID = %v", website.LastSuccessfulDeploymentID)
	}

	data, ok := h.artifacts.Object(storage.BundleKey(job.WebsiteID, job.DeploymentID))
	if !ok {
		t.Fatalf("bundle not uploaded, keys = %v", h.artifacts.Keys())
	}
	files := readBundle(t, data)
	for _, name := range []string{"manifest.json", "project.json", "pages/home.json", "pages/about-us.json"} {
		if _, ok := files[name]; !ok {
			t.Errorf("bundle missing %s (have %d files)", name, len(files))
		}
	}

	var home editor.Page
	if err := json.Unmarshal(files["pages/home.json"], &home); err != nil {
		t.Fatalf("decode home page: %v", err)
	}
	if len(home.Elements) != 2 || home.Elements[0].Type != editor.TypeHero {
		t.Fatalf("home elements = %+v", home.Elements)
	}
	text := home.Elements[1].Content["content"].(string)
	if strings.Contains(text, "<script>") || !strings.Contains(text, "Fresh bread") {
		t.Errorf("text content not sanitized: %q", text)
	}

	var m manifest
	if err := json.Unmarshal(files["manifest.json"], &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.DeploymentID != job.DeploymentID || m.Version != 1 || len(m.Pages) != 2 {
		t.Errorf("manifest = %+v", m)
	}

	last := h.queue.Published()[len(h.queue.Published())-1]
	if last.Status != models.DeploymentSuccess {
		t.Errorf("last progress = %+v", last)
	}
}

func TestBuildSite_UploadFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.publish(t, "<p>hi</p>")
	h.artifacts.PutErr = errors.New("access denied")

	if err := h.builder.BuildSite(ctx, job); err == nil {
		t.Fatal("BuildSite succeeded with a failing upload")
	}
	d, _ := h.deployments.GetDeployment(ctx, job.DeploymentID)
	if d.Status != models.DeploymentFailed || d.ErrorMessage == nil || !strings.Contains(*d.ErrorMessage, "access denied") {
		t.Errorf("deployment = %s %v", d.Status, d.ErrorMessage)
	}
	website, _ := h.websites.GetWebsite(ctx, job.WebsiteID, "user-1")
	if website.LastSuccessfulDeploymentID != nil {
		t.Error("failed build moved the website pointer")
	}
}

func TestBuildSite_MissingProject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.publish(t, "<p>hi</p>")
	h.projects.DeleteProject(ctx, job.WebsiteID)

	if err := h.builder.BuildSite(ctx, job); err == nil {
		t.Fatal("BuildSite succeeded without a project")
	}
	d, _ := h.deployments.GetDeployment(ctx, job.DeploymentID)
	if d.Status != models.DeploymentFailed {
		t.Errorf("status = %s", d.Status)
	}
}

func TestBuildSite_CanceledBeforePickup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.publish(t, "<p>hi</p>")
	h.deployments.Cancel(ctx, job.DeploymentID)

	if err := h.builder.BuildSite(ctx, job); err != nil {
		t.Fatalf("BuildSite: %v", err)
	}
	d, _ := h.deployments.GetDeployment(ctx, job.DeploymentID)
	if d.Status != models.DeploymentCanceled {
		t.Errorf("status = %s", d.Status)
	}
	if len(h.artifacts.Keys()) != 0 {
		t.Errorf("bundle uploaded for a canceled deployment: %v", h.artifacts.Keys())
	}
}

// cancelingProjects cancels the deployment while the project is loading.
type cancelingProjects struct {
	editor.Persister
	cancel func()
}

func (p *cancelingProjects) LoadProject(ctx context.Context, id string) (*editor.Project, error) {
	p.cancel()
	return p.Persister.LoadProject(ctx, id)
}

func TestBuildSite_CanceledMidBuild(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.publish(t, "<p>hi</p>")
	h.builder.Projects = &cancelingProjects{
		Persister: h.projects,
		cancel:    func() { h.deployments.Cancel(ctx, job.DeploymentID) },
	}

	if err := h.builder.BuildSite(ctx, job); err != nil {
		t.Fatalf("BuildSite: %v", err)
	}
	d, _ := h.deployments.GetDeployment(ctx, job.DeploymentID)
	if d.Status != models.DeploymentCanceled {
		t.Errorf("status = %s", d.Status)
	}
	if len(h.artifacts.Keys()) != 0 {
		t.Errorf("bundle uploaded after cancellation: %v", h.artifacts.Keys())
	}
}

type panickingProjects struct{ editor.Persister }

func (panickingProjects) LoadProject(context.Context, string) (*editor.Project, error) {
	panic("corrupt document")
}

func TestBuildSite_Panic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.publish(t, "<p>hi</p>")
	h.builder.Projects = panickingProjects{h.projects}

	err := h.builder.BuildSite(ctx, job)
	if err == nil || !strings.Contains(err.Error(), "corrupt document") {
		t.Fatalf("err = %v", err)
	}
	d, _ := h.deployments.GetDeployment(ctx, job.DeploymentID)
	if d.Status != models.DeploymentFailed {
		t.Errorf("status = %s", d.Status)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	job := h.publish(t, "<p>hi</p>")
	h.queue.Enqueue(context.Background(), job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.builder.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		d, _ := h.deployments.GetDeployment(context.Background(), job.DeploymentID)
		if d.Status == models.DeploymentSuccess {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("build did not finish, status = %s", d.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestPackageSite_DuplicateSlugs(t *testing.T) {
	p := editor.NewProject("w1", "Site", "home")
	p.Pages = append(p.Pages, editor.Page{ID: "p2", Name: "Home copy", Slug: "home"})

	data, err := packageSite(p, models.BuildJob{WebsiteID: "w1", DeploymentID: "d1", Version: 2}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("packageSite: %v", err)
	}
	files := readBundle(t, data)
	if _, ok := files["pages/home.json"]; !ok {
		t.Error("missing pages/home.json")
	}
	if _, ok := files["pages/p2.json"]; !ok {
		t.Error("duplicate slug not disambiguated by page id")
	}
}

func TestPackageSite_UnsafeSlugs(t *testing.T) {
	p := editor.NewProject("w1", "Site", "home")
	p.Pages = append(p.Pages,
		editor.Page{ID: "p2", Name: "Cron", Slug: "../../../etc/cron.d/x"},
		editor.Page{ID: "../p3", Name: "Dots", Slug: ".."},
		editor.Page{ID: "/", Name: "Slash", Slug: "/"},
	)

	data, err := packageSite(p, models.BuildJob{WebsiteID: "w1", DeploymentID: "d1", Version: 1}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("packageSite: %v", err)
	}
	files := readBundle(t, data)

	for name := range files {
		if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.Count(name, "/") > 1 {
			t.Errorf("unsafe bundle entry %q", name)
		}
	}
	for _, want := range []string{"pages/home.json", "pages/etc-cron-d-x.json", "pages/p3.json", "pages/page-4.json"} {
		if _, ok := files[want]; !ok {
			t.Errorf("missing %s", want)
		}
	}
}
