//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastash/mediastash/internal/batch"
	"github.com/mediastash/mediastash/internal/config"
	"github.com/mediastash/mediastash/internal/media"
	storages3 "github.com/mediastash/mediastash/internal/storage/s3"
	"github.com/mediastash/mediastash/pkg/backoff"
	"github.com/mediastash/mediastash/pkg/types"
)

// TestMinIOBatchLifecycle runs the full upload/head/delete/cleanup flow
// against a MinIO (or any S3-compatible) endpoint. Set MINIO_ENDPOINT,
// and optionally MINIO_BUCKET, to run it.
func TestMinIOBatchLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MinIO endpoint not configured. Set MINIO_ENDPOINT to run MinIO integration tests.")
	}

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "mediastash-integration"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := storages3.DefaultConfig()
	cfg.Endpoint = endpoint
	cfg.Region = "us-east-1"
	cfg.ForcePathStyle = true
	cfg.AccessKeyID = envOr("MINIO_ACCESS_KEY", "minioadmin")
	cfg.SecretAccessKey = envOr("MINIO_SECRET_KEY", "minioadmin")

	store, err := storages3.NewStore(ctx, bucket, cfg)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.HealthCheck(ctx), "bucket %s must exist", bucket)

	service := media.NewService(store, media.Config{
		KeyPrefix:    "integration",
		AllowedTypes: []string{"image/png", "text/plain"},
	}, nil)

	opts := batch.Options{
		Concurrency:   4,
		RetryAttempts: 3,
		Backoff:       backoff.NewExponential(100 * time.Millisecond),
	}

	const count = 25
	uploads := make([]types.UploadRequest, 0, count)
	for i := 0; i < count; i++ {
		uploads = append(uploads, types.UploadRequest{
			Content:     []byte(fmt.Sprintf("integration payload %d", i)),
			TargetName:  fmt.Sprintf("object-%03d.txt", i),
			Category:    "lifecycle",
			ContentType: "text/plain",
			Metadata:    media.Flags{Official: true}.ApplyTo(nil),
		})
	}

	t.Run("batch_upload", func(t *testing.T) {
		result, err := service.UploadBatch(ctx, uploads, opts)
		require.NoError(t, err)

		assert.Equal(t, count, result.TotalProcessed)
		assert.Equal(t, count, result.SuccessCount)
		assert.Zero(t, result.FailureCount)
	})

	t.Run("head_uploaded_object", func(t *testing.T) {
		info, err := store.Head(ctx, service.ObjectKey("lifecycle", "object-000.txt"))
		require.NoError(t, err)

		assert.Equal(t, int64(len("integration payload 0")), info.Size)
		assert.True(t, media.FlagsFromMetadata(info.Metadata).Official)
	})

	t.Run("list_prefix", func(t *testing.T) {
		infos, err := store.List(ctx, "integration/lifecycle/")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(infos), count)
	})

	t.Run("batch_delete", func(t *testing.T) {
		refs := make([]types.ObjectRef, 0, count)
		for i := 0; i < count; i++ {
			refs = append(refs, types.ObjectRef{
				Key: service.ObjectKey("lifecycle", fmt.Sprintf("object-%03d.txt", i)),
			})
		}

		result, err := service.DeleteBatch(ctx, refs, opts)
		require.NoError(t, err)
		assert.Equal(t, count, result.SuccessCount)
	})

	t.Run("delete_is_idempotent", func(t *testing.T) {
		err := store.Delete(ctx, types.ObjectRef{
			Key: service.ObjectKey("lifecycle", "object-000.txt"),
		})
		assert.NoError(t, err)
	})

	t.Run("cleanup_finds_nothing_fresh", func(t *testing.T) {
		report, err := service.CleanupOrphans(ctx, 24*time.Hour, nil, opts)
		require.NoError(t, err)
		assert.Zero(t, report.Deleted)
	})
}

// TestConfigurationLoading exercises file and environment configuration
// the way a deployment would assemble it.
func TestConfigurationLoading(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	content := `
storage:
  bucket: integration-bucket
  s3:
    region: us-east-1
    force_path_style: true
batch:
  concurrency: 8
  backoff_mode: exponential
`
	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("MEDIASTASH_BATCH_RETRY_ATTEMPTS", "4")

	cfg := config.NewDefault()
	require.NoError(t, cfg.LoadFromFile(path))
	require.NoError(t, cfg.LoadFromEnv())
	require.NoError(t, cfg.Validate())

	opts, err := cfg.BatchOptions()
	require.NoError(t, err)
	assert.Equal(t, 8, opts.Concurrency)
	assert.Equal(t, 4, opts.RetryAttempts)
	assert.IsType(t, backoff.Exponential{}, opts.Backoff)
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
