package blobstore

import (
	"context"
	"fmt"
	"os"

	"github.com/DoctaneDMS/dms-service-sql/internal/config"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
)

// NewBlobStoreFromConfig creates the blob store selected by cfg. S3
// credentials come from the default AWS chain, or from DMS_S3_ACCESS_KEY
// and DMS_S3_SECRET_KEY when both are set.
func NewBlobStoreFromConfig(ctx context.Context, cfg config.BlobStoreConfig) (dms.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem blob store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 blob store requires s3_bucket to be set")
		}
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: os.Getenv("DMS_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("DMS_S3_SECRET_KEY"),
		})
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}
