package blobstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DoctaneDMS/dms-service-sql/internal/config"
)

func TestNewBlobStoreFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		got, err := NewBlobStoreFromConfig(ctx, config.BlobStoreConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewBlobStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*MemoryStore); !ok {
			t.Errorf("NewBlobStoreFromConfig() = %T, want *MemoryStore", got)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "blobs")
		got, err := NewBlobStoreFromConfig(ctx, config.BlobStoreConfig{Type: "filesystem", FSRoot: root})
		if err != nil {
			t.Fatalf("NewBlobStoreFromConfig() error = %v", err)
		}
		fs, ok := got.(*FileSystemStore)
		if !ok {
			t.Fatalf("NewBlobStoreFromConfig() = %T, want *FileSystemStore", got)
		}
		if fs.Root() != root {
			t.Errorf("Root() = %q, want %q", fs.Root(), root)
		}
	})

	t.Run("filesystem without root", func(t *testing.T) {
		if _, err := NewBlobStoreFromConfig(ctx, config.BlobStoreConfig{Type: "filesystem"}); err == nil {
			t.Error("NewBlobStoreFromConfig() expected error for missing fs_root")
		}
	})

	t.Run("s3", func(t *testing.T) {
		t.Setenv("AWS_REGION", "us-east-1")
		t.Setenv("DMS_S3_ACCESS_KEY", "key")
		t.Setenv("DMS_S3_SECRET_KEY", "secret")
		got, err := NewBlobStoreFromConfig(ctx, config.BlobStoreConfig{Type: "s3", S3Bucket: "docs", S3Endpoint: "http://localhost:9000"})
		if err != nil {
			t.Fatalf("NewBlobStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*S3Store); !ok {
			t.Errorf("NewBlobStoreFromConfig() = %T, want *S3Store", got)
		}
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		if _, err := NewBlobStoreFromConfig(ctx, config.BlobStoreConfig{Type: "s3"}); err == nil {
			t.Error("NewBlobStoreFromConfig() expected error for missing bucket")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewBlobStoreFromConfig(ctx, config.BlobStoreConfig{Type: "ftp"}); err == nil {
			t.Error("NewBlobStoreFromConfig() expected error for unknown type")
		}
	})
}
