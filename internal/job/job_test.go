package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/filestore"
	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

type fakeArtifacts struct {
	items   []model.Artifact
	deleted []string
}

func (f *fakeArtifacts) ListBefore(ctx context.Context, cutoff int64, limit uint) ([]model.Artifact, error) {
	var out []model.Artifact
	for _, item := range f.items {
		if item.Ctime < cutoff && uint(len(out)) < limit {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeArtifacts) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	drop := map[string]struct{}{}
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := f.items[:0]
	for _, item := range f.items {
		if _, ok := drop[item.ID]; ok {
			f.deleted = append(f.deleted, item.ID)
			continue
		}
		kept = append(kept, item)
	}
	f.items = kept
	return int64(len(ids)), nil
}

func TestArtifactCleanupJob(t *testing.T) {
	ctx := context.Background()
	files := filestore.NewLocalStore(t.TempDir(), "")
	old := time.Now().Add(-10 * 24 * time.Hour).Unix()
	fresh := time.Now().Unix()

	artifacts := &fakeArtifacts{}
	for i, ctime := range []int64{old, old, fresh} {
		key := fmt.Sprintf("audio_%d.wav", i)
		require.NoError(t, files.Save(ctx, key, bytes.NewReader([]byte("x")), 1, "audio/wav"))
		artifacts.items = append(artifacts.items, model.Artifact{ID: fmt.Sprint(i), FileKey: key, Ctime: ctime})
	}

	job := NewArtifactCleanupJob(artifacts, files, 7)
	require.NoError(t, job.Run(ctx))

	assert.ElementsMatch(t, []string{"0", "1"}, artifacts.deleted)
	require.Len(t, artifacts.items, 1)
	_, err := files.Open(ctx, "audio_0.wav")
	assert.ErrorIs(t, err, appErr.ErrNotFound)
	rc, err := files.Open(ctx, "audio_2.wav")
	require.NoError(t, err)
	_ = rc.Close()
}

func TestArtifactCleanupJob_Disabled(t *testing.T) {
	assert.NoError(t, NewArtifactCleanupJob(nil, nil, 7).Run(context.Background()))
}

type fakePruner struct {
	cutoff int64
	err    error
}

func (f *fakePruner) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	pruner := &fakePruner{}
	require.NoError(t, NewEmbeddingCacheCleanupJob(pruner, 0).Run(context.Background()))
	want := time.Now().Add(-30 * 24 * time.Hour).Unix()
	assert.InDelta(t, want, pruner.cutoff, 5)

	pruner.err = errors.New("db down")
	assert.Error(t, NewEmbeddingCacheCleanupJob(pruner, 1).Run(context.Background()))
}
