package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sitesmithapp/sitesmith/internal/editor"
)

func TestMemoryProjects_RoundTrip(t *testing.T) {
	s := NewMemoryProjects()
	ctx := context.Background()

	p := editor.NewProject("site-1", "Bakery", "home")
	p.Pages[0].Elements = append(p.Pages[0].Elements, editor.Element{
		ID:       "el-1",
		Type:     editor.TypeFeatures,
		Content:  editor.DefaultContent(editor.TypeFeatures),
		Settings: map[string]any{"padding": map[string]any{"top": "8px"}},
		Position: 0,
	})

	if err := s.SaveProject(ctx, p); err != nil {
		t.Fatalf("SaveProject() error = %v", err)
	}
	got, err := s.LoadProject(ctx, "site-1")
	if err != nil {
		t.Fatalf("LoadProject() error = %v", err)
	}

	want, _ := json.Marshal(p)
	have, _ := json.Marshal(got)
	if string(want) != string(have) {
		t.Errorf("round trip changed the document:\nwant %s\ngot  %s", want, have)
	}
}

func TestMemoryProjects_Errors(t *testing.T) {
	s := NewMemoryProjects()
	ctx := context.Background()

	if _, err := s.LoadProject(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadProject(missing) error = %v", err)
	}

	s.SaveErr = errors.New("disk full")
	if err := s.SaveProject(ctx, editor.NewProject("p", "P", "h")); err == nil {
		t.Errorf("SaveProject() ignored SaveErr")
	}

	s.SaveErr = nil
	_ = s.SaveProject(ctx, editor.NewProject("p", "P", "h"))
	if err := s.DeleteProject(ctx, "p"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if _, err := s.LoadProject(ctx, "p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("project survived deletion")
	}
}
