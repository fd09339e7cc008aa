package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestLatestVersion(t *testing.T) {
	v, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if v != 1 {
		t.Errorf("LatestVersion() = %d, want 1", v)
	}
}

func TestEveryUpHasDown(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "files")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	for name := range names {
		if strings.HasSuffix(name, ".up.sql") {
			down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
			if !names[down] {
				t.Errorf("%s has no matching %s", name, down)
			}
		}
	}
}

func TestSchemaEnforcesOnePrimaryDomain(t *testing.T) {
	b, err := fs.ReadFile(migrationFiles, "files/000001_init.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	schema := string(b)
	for _, want := range []string{
		"ON domains(website_id) WHERE is_primary",
		"REFERENCES deployments(id) ON DELETE SET NULL",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
