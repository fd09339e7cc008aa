package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitesmithapp/sitesmith/internal/models"
)

var now = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func seedWebsite(t *testing.T, m *Memory, id string) *models.Website {
	t.Helper()
	ctx := context.Background()
	if err := m.EnsureUser(ctx, "user-1", "owner@example.com"); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	w := &models.Website{ID: id, UserID: "user-1", Name: "Site " + id, CreatedAt: now, UpdatedAt: now}
	if err := m.CreateWebsite(ctx, w); err != nil {
		t.Fatalf("CreateWebsite() error = %v", err)
	}
	return w
}

func addDeployment(t *testing.T, m *Memory, id, websiteID string, version int) {
	t.Helper()
	d := &models.Deployment{
		ID: id, WebsiteID: websiteID, UserID: "user-1",
		Status: models.DeploymentQueued, Version: version, CreatedAt: now, UpdatedAt: now,
	}
	if err := m.CreateDeployment(context.Background(), d); err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
}

func TestMemory_WebsiteRequiresUser(t *testing.T) {
	m := NewMemory()
	err := m.CreateWebsite(context.Background(), &models.Website{ID: "w1", UserID: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateWebsite() error = %v, want ErrNotFound", err)
	}
}

func TestMemory_UpdateWebsite(t *testing.T) {
	m := NewMemory()
	seedWebsite(t, m, "w1")
	ctx := context.Background()

	depID := "dep-1"
	later := now.Add(time.Hour)
	w, err := m.UpdateWebsite(ctx, "w1", models.WebsiteUpdate{LastDeployedAt: &later, LastSuccessfulDeploymentID: &depID}, later)
	if err != nil {
		t.Fatalf("UpdateWebsite() error = %v", err)
	}
	if w.LastSuccessfulDeploymentID == nil || *w.LastSuccessfulDeploymentID != depID || !w.LastDeployedAt.Equal(later) {
		t.Errorf("website = %+v", w)
	}

	w, _ = m.UpdateWebsite(ctx, "w1", models.WebsiteUpdate{ClearLastSuccessfulDeployment: true}, later)
	if w.LastSuccessfulDeploymentID != nil {
		t.Errorf("pointer not cleared")
	}

	if _, err := m.UpdateWebsite(ctx, "nope", models.WebsiteUpdate{}, later); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateWebsite(missing) error = %v", err)
	}
}

func TestMemory_DeleteDeploymentNullsPointer(t *testing.T) {
	m := NewMemory()
	seedWebsite(t, m, "w1")
	addDeployment(t, m, "dep-1", "w1", 1)
	ctx := context.Background()

	depID := "dep-1"
	if _, err := m.UpdateWebsite(ctx, "w1", models.WebsiteUpdate{LastSuccessfulDeploymentID: &depID}, now); err != nil {
		t.Fatalf("UpdateWebsite() error = %v", err)
	}
	if err := m.DeleteDeployment(ctx, "dep-1"); err != nil {
		t.Fatalf("DeleteDeployment() error = %v", err)
	}
	w, _ := m.GetWebsite(ctx, "w1")
	if w.LastSuccessfulDeploymentID != nil {
		t.Errorf("LastSuccessfulDeploymentID = %v, want nil", *w.LastSuccessfulDeploymentID)
	}
}

func TestMemory_DeleteWebsiteCascades(t *testing.T) {
	m := NewMemory()
	seedWebsite(t, m, "w1")
	seedWebsite(t, m, "w2")
	addDeployment(t, m, "dep-1", "w1", 1)
	addDeployment(t, m, "dep-2", "w2", 1)
	ctx := context.Background()
	_ = m.CreateDomain(ctx, &models.Domain{ID: "dom-1", WebsiteID: "w1", Name: "a.example.com"})

	if err := m.DeleteWebsite(ctx, "w1"); err != nil {
		t.Fatalf("DeleteWebsite() error = %v", err)
	}
	if _, err := m.GetDeployment(ctx, "dep-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deployment survived website deletion")
	}
	if _, err := m.GetDomain(ctx, "dom-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("domain survived website deletion")
	}
	if _, err := m.GetDeployment(ctx, "dep-2"); err != nil {
		t.Errorf("other website's deployment deleted: %v", err)
	}
}

func TestMemory_ListDeployments(t *testing.T) {
	m := NewMemory()
	seedWebsite(t, m, "w1")
	for i, id := range []string{"d1", "d2", "d3", "d4", "d5"} {
		addDeployment(t, m, id, "w1", i+1)
	}
	ctx := context.Background()

	tests := []struct {
		limit, offset int
		want          []string
	}{
		{2, 0, []string{"d5", "d4"}},
		{2, 2, []string{"d3", "d2"}},
		{2, 4, []string{"d1"}},
		{2, 6, []string{}},
	}
	for _, tt := range tests {
		items, total, err := m.ListDeployments(ctx, "w1", tt.limit, tt.offset)
		if err != nil {
			t.Fatalf("ListDeployments() error = %v", err)
		}
		if total != 5 {
			t.Errorf("total = %d, want 5", total)
		}
		if len(items) != len(tt.want) {
			t.Fatalf("limit=%d offset=%d: got %d items, want %d", tt.limit, tt.offset, len(items), len(tt.want))
		}
		for i, d := range items {
			if d.ID != tt.want[i] {
				t.Errorf("limit=%d offset=%d: item %d = %s, want %s", tt.limit, tt.offset, i, d.ID, tt.want[i])
			}
		}
	}

	next, _ := m.NextDeploymentVersion(ctx, "w1")
	if next != 6 {
		t.Errorf("NextDeploymentVersion() = %d, want 6", next)
	}
}

func TestMemory_DomainConstraints(t *testing.T) {
	m := NewMemory()
	seedWebsite(t, m, "w1")
	ctx := context.Background()

	a := &models.Domain{ID: "a", WebsiteID: "w1", Name: "a.example.com", IsPrimary: true}
	b := &models.Domain{ID: "b", WebsiteID: "w1", Name: "b.example.com"}
	if err := m.CreateDomain(ctx, a); err != nil {
		t.Fatalf("CreateDomain(a) error = %v", err)
	}
	if err := m.CreateDomain(ctx, b); err != nil {
		t.Fatalf("CreateDomain(b) error = %v", err)
	}

	dup := &models.Domain{ID: "c", WebsiteID: "w1", Name: "a.example.com"}
	if err := m.CreateDomain(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate name error = %v, want ErrConflict", err)
	}

	b.IsPrimary = true
	if err := m.UpdateDomain(ctx, b); !errors.Is(err, ErrConflict) {
		t.Errorf("second primary error = %v, want ErrConflict", err)
	}
}

func TestMemory_InTxRollsBack(t *testing.T) {
	m := NewMemory()
	seedWebsite(t, m, "w1")
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.InTx(ctx, func(r Repo) error {
		name := "Renamed"
		if _, err := r.UpdateWebsite(ctx, "w1", models.WebsiteUpdate{Name: &name}, now); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}
	w, _ := m.GetWebsite(ctx, "w1")
	if w.Name != "Site w1" {
		t.Errorf("name = %q, rollback did not happen", w.Name)
	}

	err = m.InTx(ctx, func(r Repo) error {
		name := "Committed"
		_, err := r.UpdateWebsite(ctx, "w1", models.WebsiteUpdate{Name: &name}, now)
		return err
	})
	if err != nil {
		t.Fatalf("InTx() error = %v", err)
	}
	w, _ = m.GetWebsite(ctx, "w1")
	if w.Name != "Committed" {
		t.Errorf("name = %q, commit lost", w.Name)
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	seedWebsite(t, m, "w1")
	addDeployment(t, m, "dep-1", "w1", 1)
	ctx := context.Background()

	d, _ := m.GetDeployment(ctx, "dep-1")
	d.Status = models.DeploymentSuccess

	again, _ := m.GetDeployment(ctx, "dep-1")
	if again.Status != models.DeploymentQueued {
		t.Errorf("stored deployment aliased by Get result")
	}
}
