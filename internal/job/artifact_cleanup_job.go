package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docrag/internal/filestore"
	"github.com/xxxsen/docrag/internal/model"
)

const artifactCleanupBatch = 200

type ArtifactLister interface {
	ListBefore(ctx context.Context, cutoff int64, limit uint) ([]model.Artifact, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// ArtifactCleanupJob removes generated audio older than maxAgeDays from the
// file store and forgets its records.
type ArtifactCleanupJob struct {
	artifacts  ArtifactLister
	files      filestore.Store
	maxAgeDays int
}

func NewArtifactCleanupJob(artifacts ArtifactLister, files filestore.Store, maxAgeDays int) *ArtifactCleanupJob {
	return &ArtifactCleanupJob{artifacts: artifacts, files: files, maxAgeDays: maxAgeDays}
}

func (j *ArtifactCleanupJob) Name() string {
	return "artifact_cleanup"
}

func (j *ArtifactCleanupJob) Run(ctx context.Context) error {
	if j.artifacts == nil || j.files == nil {
		return nil
	}
	logger := logutil.GetLogger(ctx)
	cutoff := time.Now().Add(-maxAge(j.maxAgeDays, 7)).Unix()
	var total int64
	for {
		items, err := j.artifacts.ListBefore(ctx, cutoff, artifactCleanupBatch)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			break
		}
		ids := make([]string, 0, len(items))
		for _, item := range items {
			if err := j.files.Delete(ctx, item.FileKey); err != nil {
				logger.Warn("delete artifact file failed", zap.String("file_key", item.FileKey), zap.Error(err))
				continue
			}
			ids = append(ids, item.ID)
		}
		if len(ids) == 0 {
			break
		}
		removed, err := j.artifacts.DeleteByIDs(ctx, ids)
		if err != nil {
			return err
		}
		total += removed
		if len(items) < artifactCleanupBatch {
			break
		}
	}
	logger.Info("artifacts pruned", zap.Int64("removed", total))
	return nil
}
