// Package media coordinates bulk media storage operations: validated
// batch uploads, batch deletes, and orphan cleanup over an object store.
package media

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediastash/mediastash/internal/batch"
	"github.com/mediastash/mediastash/internal/metrics"
	storages3 "github.com/mediastash/mediastash/internal/storage/s3"
	"github.com/mediastash/mediastash/pkg/errors"
	"github.com/mediastash/mediastash/pkg/types"
)

// DefaultMaxUploadSize caps single uploads at 50 MiB unless configured
// otherwise.
const DefaultMaxUploadSize = 50 * 1024 * 1024

// Config tunes media validation and key layout.
type Config struct {
	// KeyPrefix roots every object key written by the service.
	KeyPrefix string `yaml:"key_prefix"`

	// MaxUploadSize bounds a single upload's content size in bytes.
	MaxUploadSize int64 `yaml:"max_upload_size"`

	// AllowedTypes whitelists upload content types. Empty allows any.
	AllowedTypes []string `yaml:"allowed_types"`
}

// Service runs bulk media operations against an object store.
type Service struct {
	store     types.ObjectStore
	config    Config
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewService creates a media service. collector may be nil.
func NewService(store types.ObjectStore, config Config, collector *metrics.Collector) *Service {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Service{
		store:     store,
		config:    config,
		logger:    slog.Default().With("component", "media-service"),
		collector: collector,
	}
}

// UploadBatch uploads every request with bounded concurrency and
// per-item retry. Item failures are reported in the result; only
// configuration violations return an error.
func (s *Service) UploadBatch(ctx context.Context, uploads []types.UploadRequest, opts batch.Options) (*batch.Result[types.UploadRequest, types.ObjectInfo], error) {
	batchID := uuid.NewString()
	logger := s.logger.With("batch_id", batchID, "operation", "upload")
	start := time.Now()

	result, err := batch.Run(ctx, uploads, s.uploadOne, opts)
	if err != nil {
		logger.Error("batch rejected", "error", err)
		return nil, err
	}

	s.collector.RecordBatch("upload", result.TotalProcessed, result.SuccessCount, result.FailureCount, time.Since(start))
	logger.Info("batch upload complete",
		"total", result.TotalProcessed,
		"succeeded", result.SuccessCount,
		"failed", result.FailureCount,
		"duration", time.Since(start))
	return result, nil
}

func (s *Service) uploadOne(ctx context.Context, req types.UploadRequest) (types.ObjectInfo, error) {
	s.collector.ItemStarted()
	defer s.collector.ItemFinished()

	if err := s.validateUpload(req); err != nil {
		return types.ObjectInfo{}, err
	}

	key := s.ObjectKey(req.Category, req.TargetName)
	return s.store.Upload(ctx, key, req.Content, req.ContentType, req.Metadata)
}

// DeleteBatch deletes every referenced object with bounded concurrency
// and per-item retry.
func (s *Service) DeleteBatch(ctx context.Context, refs []types.ObjectRef, opts batch.Options) (*batch.Result[types.ObjectRef, types.ObjectRef], error) {
	batchID := uuid.NewString()
	logger := s.logger.With("batch_id", batchID, "operation", "delete")
	start := time.Now()

	result, err := batch.Run(ctx, refs, func(ctx context.Context, ref types.ObjectRef) (types.ObjectRef, error) {
		s.collector.ItemStarted()
		defer s.collector.ItemFinished()
		return ref, s.store.Delete(ctx, ref)
	}, opts)
	if err != nil {
		logger.Error("batch rejected", "error", err)
		return nil, err
	}

	s.collector.RecordBatch("delete", result.TotalProcessed, result.SuccessCount, result.FailureCount, time.Since(start))
	logger.Info("batch delete complete",
		"total", result.TotalProcessed,
		"succeeded", result.SuccessCount,
		"failed", result.FailureCount,
		"duration", time.Since(start))
	return result, nil
}

// validateUpload rejects requests before any network work. Failures are
// already classified, so the retry layer treats them as terminal.
func (s *Service) validateUpload(req types.UploadRequest) error {
	if strings.TrimSpace(req.TargetName) == "" {
		return errors.New(errors.KindValidation, "target name cannot be empty")
	}
	if len(req.Content) == 0 {
		return errors.New(errors.KindValidation, "content cannot be empty").WithKey(req.TargetName)
	}
	if int64(len(req.Content)) > s.config.MaxUploadSize {
		return errors.Newf(errors.KindTooLarge,
			"content size %d exceeds maximum %d", len(req.Content), s.config.MaxUploadSize).WithKey(req.TargetName)
	}

	if len(s.config.AllowedTypes) > 0 {
		contentType := req.ContentType
		if contentType == "" {
			contentType = storages3.DetectContentType(req.TargetName)
		}
		if !s.typeAllowed(contentType) {
			return errors.Newf(errors.KindUnsupportedType,
				"content type %s is not allowed", contentType).WithKey(req.TargetName)
		}
	}
	return nil
}

func (s *Service) typeAllowed(contentType string) bool {
	for _, allowed := range s.config.AllowedTypes {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

// ObjectKey builds the storage key for a media object.
func (s *Service) ObjectKey(category, name string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{s.config.KeyPrefix, category, name} {
		part = strings.Trim(part, "/")
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "/")
}
