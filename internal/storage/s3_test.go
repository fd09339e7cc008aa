package storage

import (
	"context"
	"testing"

	"github.com/sitesmithapp/sitesmith/config"
)

func TestBundleKey(t *testing.T) {
	got := BundleKey("site-1", "dep-9")
	want := "sites/site-1/deployments/dep-9/site.tar.gz"
	if got != want {
		t.Errorf("BundleKey() = %q, want %q", got, want)
	}
}

func TestNewS3Client_StaticCredentials(t *testing.T) {
	cfg := &config.Config{AWSRegion: "eu-west-1", AWSAccessKey: "AKIDEXAMPLE", AWSSecretKey: "secret"}
	client, err := NewS3Client(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewS3Client() error = %v", err)
	}
	if got := client.Options().Region; got != "eu-west-1" {
		t.Errorf("region = %q, want eu-west-1", got)
	}
}
