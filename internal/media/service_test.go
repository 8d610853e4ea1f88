package media

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastash/mediastash/internal/batch"
	"github.com/mediastash/mediastash/pkg/backoff"
	"github.com/mediastash/mediastash/pkg/errors"
	"github.com/mediastash/mediastash/pkg/types"
)

// codedError simulates a raw transport failure with a stable identifier.
type codedError struct {
	code string
}

func (e *codedError) Error() string     { return "raw: " + e.code }
func (e *codedError) ErrorCode() string { return e.code }

// fakeStore is an in-memory ObjectStore with injectable failures.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]types.ObjectInfo
	uploadErr func(key string) error
	deleteErr func(key string) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]types.ObjectInfo)}
}

func (f *fakeStore) Upload(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) (types.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		if err := f.uploadErr(key); err != nil {
			return types.ObjectInfo{}, err
		}
	}
	info := types.ObjectInfo{
		Key:          key,
		Size:         int64(len(content)),
		LastModified: time.Now(),
		ContentType:  contentType,
		Metadata:     metadata,
	}
	f.objects[key] = info
	return info, nil
}

func (f *fakeStore) Delete(ctx context.Context, ref types.ObjectRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		if err := f.deleteErr(ref.Key); err != nil {
			return err
		}
	}
	delete(f.objects, ref.Key)
	return nil
}

func (f *fakeStore) Head(ctx context.Context, key string) (types.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.objects[key]
	if !ok {
		return types.ObjectInfo{}, &codedError{code: "NoSuchKey"}
	}
	return info, nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]types.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := make([]types.ObjectInfo, 0, len(f.objects))
	for _, info := range f.objects {
		infos = append(infos, info)
	}
	return infos, nil
}

func fastOpts() batch.Options {
	return batch.Options{
		Concurrency:   2,
		RetryAttempts: 3,
		Backoff:       backoff.Linear{Base: time.Millisecond, Max: 10 * time.Millisecond},
	}
}

func pngUpload(name string) types.UploadRequest {
	return types.UploadRequest{
		Content:     []byte{0x89, 0x50, 0x4e, 0x47},
		TargetName:  name,
		Category:    "avatars",
		ContentType: "image/png",
	}
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	service := NewService(newFakeStore(), Config{KeyPrefix: "media/"}, nil)
	assert.Equal(t, "media/avatars/u1.png", service.ObjectKey("avatars", "u1.png"))
	assert.Equal(t, "media/u1.png", service.ObjectKey("", "u1.png"))

	bare := NewService(newFakeStore(), Config{}, nil)
	assert.Equal(t, "avatars/u1.png", bare.ObjectKey("/avatars/", "/u1.png"))
}

func TestValidateUpload(t *testing.T) {
	t.Parallel()

	service := NewService(newFakeStore(), Config{
		MaxUploadSize: 10,
		AllowedTypes:  []string{"image/png", "image/jpeg"},
	}, nil)

	tests := []struct {
		name string
		req  types.UploadRequest
		kind errors.ErrorKind
	}{
		{
			name: "empty target name",
			req:  types.UploadRequest{Content: []byte("x")},
			kind: errors.KindValidation,
		},
		{
			name: "empty content",
			req:  types.UploadRequest{TargetName: "a.png"},
			kind: errors.KindValidation,
		},
		{
			name: "oversize content",
			req:  types.UploadRequest{TargetName: "a.png", Content: make([]byte, 11), ContentType: "image/png"},
			kind: errors.KindTooLarge,
		},
		{
			name: "disallowed type",
			req:  types.UploadRequest{TargetName: "a.exe", Content: []byte("x"), ContentType: "application/x-msdownload"},
			kind: errors.KindUnsupportedType,
		},
		{
			name: "disallowed type detected from name",
			req:  types.UploadRequest{TargetName: "a.mp4", Content: []byte("x")},
			kind: errors.KindUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.validateUpload(tt.req)
			require.Error(t, err)
			var stashErr *errors.StashError
			require.ErrorAs(t, err, &stashErr)
			assert.Equal(t, tt.kind, stashErr.Kind)
		})
	}

	t.Run("valid request passes", func(t *testing.T) {
		assert.NoError(t, service.validateUpload(
			types.UploadRequest{TargetName: "a.png", Content: []byte("ok"), ContentType: "image/png"}))
	})
}

func TestUploadBatch(t *testing.T) {
	t.Parallel()

	t.Run("all succeed", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store, Config{KeyPrefix: "media"}, nil)

		uploads := []types.UploadRequest{pngUpload("a.png"), pngUpload("b.png"), pngUpload("c.png")}
		result, err := service.UploadBatch(context.Background(), uploads, fastOpts())
		require.NoError(t, err)

		assert.Equal(t, 3, result.SuccessCount)
		assert.Zero(t, result.FailureCount)
		assert.Len(t, store.objects, 3)
		assert.Contains(t, store.objects, "media/avatars/a.png")
	})

	t.Run("one missing-key failure and one success", func(t *testing.T) {
		store := newFakeStore()
		store.uploadErr = func(key string) error {
			if key == "media/avatars/x.png" {
				return &codedError{code: "NoSuchKey"}
			}
			return nil
		}
		service := NewService(store, Config{KeyPrefix: "media"}, nil)

		result, err := service.UploadBatch(context.Background(),
			[]types.UploadRequest{pngUpload("x.png"), pngUpload("y.png")}, fastOpts())
		require.NoError(t, err)

		require.Len(t, result.Failed, 1)
		assert.Equal(t, errors.KindNotFound, result.Failed[0].Kind)
		assert.Equal(t, "x.png", result.Failed[0].Item.TargetName)
		require.Len(t, result.Successful, 1)
		assert.Equal(t, "media/avatars/y.png", result.Successful[0].Value.Key)
	})

	t.Run("transient failure retries to success", func(t *testing.T) {
		store := newFakeStore()
		var mu sync.Mutex
		failures := 2
		store.uploadErr = func(key string) error {
			mu.Lock()
			defer mu.Unlock()
			if failures > 0 {
				failures--
				return &codedError{code: "RequestTimeout"}
			}
			return nil
		}
		service := NewService(store, Config{}, nil)

		result, err := service.UploadBatch(context.Background(),
			[]types.UploadRequest{pngUpload("flaky.png")}, fastOpts())
		require.NoError(t, err)

		assert.Equal(t, 1, result.SuccessCount)
		assert.Zero(t, result.FailureCount)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		service := NewService(newFakeStore(), Config{}, nil)
		_, err := service.UploadBatch(context.Background(), nil, fastOpts())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch cannot be empty")
	})

	t.Run("invalid items fail without retry", func(t *testing.T) {
		attempts := 0
		store := newFakeStore()
		store.uploadErr = func(key string) error {
			attempts++
			return nil
		}
		service := NewService(store, Config{MaxUploadSize: 2}, nil)

		result, err := service.UploadBatch(context.Background(), []types.UploadRequest{
			{TargetName: "big.png", Content: []byte("way too large"), ContentType: "image/png"},
		}, fastOpts())
		require.NoError(t, err)

		assert.Zero(t, attempts, "validation failures never reach the store")
		require.Len(t, result.Failed, 1)
		assert.Equal(t, errors.KindTooLarge, result.Failed[0].Kind)
	})
}

func TestDeleteBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := NewService(store, Config{}, nil)

	_, err := service.UploadBatch(context.Background(),
		[]types.UploadRequest{pngUpload("a.png"), pngUpload("b.png")}, fastOpts())
	require.NoError(t, err)

	store.deleteErr = func(key string) error {
		if key == "avatars/b.png" {
			return &codedError{code: "AccessDenied"}
		}
		return nil
	}

	result, err := service.DeleteBatch(context.Background(), []types.ObjectRef{
		{Key: "avatars/a.png"},
		{Key: "avatars/b.png"},
	}, fastOpts())
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, errors.KindSecurity, result.Failed[0].Kind)
	assert.Equal(t, "avatars/b.png", result.Failed[0].Item.Key)
}

func TestCleanupOrphans(t *testing.T) {
	t.Parallel()

	t.Run("deletes old unreferenced objects", func(t *testing.T) {
		store := newFakeStore()
		old := time.Now().Add(-48 * time.Hour)
		store.objects["media/a.png"] = types.ObjectInfo{Key: "media/a.png", LastModified: old}
		store.objects["media/b.png"] = types.ObjectInfo{Key: "media/b.png", LastModified: old}
		store.objects["media/fresh.png"] = types.ObjectInfo{Key: "media/fresh.png", LastModified: time.Now()}

		service := NewService(store, Config{KeyPrefix: "media"}, nil)
		referenced := map[string]bool{"media/b.png": true}

		report, err := service.CleanupOrphans(context.Background(), 24*time.Hour,
			func(key string) bool { return referenced[key] }, fastOpts())
		require.NoError(t, err)

		assert.Equal(t, 3, report.Scanned)
		assert.Equal(t, 1, report.Orphaned)
		assert.Equal(t, 1, report.Deleted)
		assert.Zero(t, report.Failed)
		assert.NotContains(t, store.objects, "media/a.png")
		assert.Contains(t, store.objects, "media/b.png")
		assert.Contains(t, store.objects, "media/fresh.png")
	})

	t.Run("nothing to clean", func(t *testing.T) {
		store := newFakeStore()
		store.objects["media/fresh.png"] = types.ObjectInfo{Key: "media/fresh.png", LastModified: time.Now()}

		service := NewService(store, Config{KeyPrefix: "media"}, nil)
		report, err := service.CleanupOrphans(context.Background(), time.Hour, nil, fastOpts())
		require.NoError(t, err)

		assert.Equal(t, 1, report.Scanned)
		assert.Zero(t, report.Orphaned)
		assert.Zero(t, report.Deleted)
	})

	t.Run("failed deletions are reported", func(t *testing.T) {
		store := newFakeStore()
		old := time.Now().Add(-48 * time.Hour)
		store.objects["media/a.png"] = types.ObjectInfo{Key: "media/a.png", LastModified: old}
		store.deleteErr = func(key string) error {
			return &codedError{code: "AccessDenied"}
		}

		service := NewService(store, Config{KeyPrefix: "media"}, nil)
		report, err := service.CleanupOrphans(context.Background(), time.Hour, nil, fastOpts())
		require.NoError(t, err)

		assert.Equal(t, 1, report.Orphaned)
		assert.Zero(t, report.Deleted)
		assert.Equal(t, 1, report.Failed)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, errors.KindSecurity, report.Failures[0].Kind)
	})
}
