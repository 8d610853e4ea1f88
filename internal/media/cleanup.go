package media

import (
	"context"
	"time"

	"github.com/mediastash/mediastash/internal/batch"
	"github.com/mediastash/mediastash/pkg/types"
)

// CleanupReport summarizes one orphan-cleanup pass.
type CleanupReport struct {
	Scanned  int `json:"scanned"`
	Orphaned int `json:"orphaned"`
	Deleted  int `json:"deleted"`
	Failed   int `json:"failed"`

	// Failures carries per-object detail for follow-up action.
	Failures []batch.Failure[types.ObjectRef] `json:"failures,omitempty"`
}

// CleanupOrphans deletes objects under the service prefix that are older
// than minAge and not referenced. isReferenced may be nil, in which case
// every old object counts as orphaned. Deletions run as batch operations;
// oversized orphan sets are processed in ceiling-sized slices.
func (s *Service) CleanupOrphans(ctx context.Context, minAge time.Duration, isReferenced func(key string) bool, opts batch.Options) (*CleanupReport, error) {
	logger := s.logger.With("operation", "cleanup")

	objects, err := s.store.List(ctx, s.config.KeyPrefix)
	if err != nil {
		logger.Error("listing objects failed", "error", err)
		return nil, err
	}

	cutoff := time.Now().Add(-minAge)
	var orphans []types.ObjectRef
	for _, object := range objects {
		if object.LastModified.After(cutoff) {
			continue
		}
		if isReferenced != nil && isReferenced(object.Key) {
			continue
		}
		orphans = append(orphans, types.ObjectRef{Key: object.Key})
	}

	report := &CleanupReport{Scanned: len(objects), Orphaned: len(orphans)}
	if len(orphans) == 0 {
		logger.Info("no orphans to clean", "scanned", report.Scanned)
		return report, nil
	}

	for start := 0; start < len(orphans); start += batch.MaxBatchSize {
		end := start + batch.MaxBatchSize
		if end > len(orphans) {
			end = len(orphans)
		}

		result, err := s.DeleteBatch(ctx, orphans[start:end], opts)
		if err != nil {
			return report, err
		}
		report.Deleted += result.SuccessCount
		report.Failed += result.FailureCount
		report.Failures = append(report.Failures, result.Failed...)
	}

	logger.Info("cleanup complete",
		"scanned", report.Scanned,
		"orphaned", report.Orphaned,
		"deleted", report.Deleted,
		"failed", report.Failed)
	return report, nil
}
