package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

func axisVector(weights ...float32) []float32 {
	vec := make([]float32, model.EmbeddingDimension)
	copy(vec, weights)
	return vec
}

func uniqueScope() model.Scope {
	return model.Scope{UserID: "user_" + uuid.NewString()[:8], ProjectID: "project_" + uuid.NewString()[:8]}
}

func insertAll(t *testing.T, store Store, scope model.Scope, rows map[string][]float32, order ...string) {
	t.Helper()
	ctx := context.Background()
	batch, err := store.Begin(ctx)
	require.NoError(t, err)
	for _, content := range order {
		id, err := batch.Insert(ctx, &model.Chunk{
			Content:   content,
			Metadata:  map[string]interface{}{"source": "test.txt"},
			Embedding: rows[content],
			UserID:    scope.UserID,
			ProjectID: scope.ProjectID,
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	}
	require.NoError(t, batch.Commit(ctx))
}

func contents(items []model.ScoredChunk) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Chunk.Content)
	}
	return out
}

// runStoreContract checks the behaviour every backend has to share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("scope isolation", func(t *testing.T) {
		a, b := uniqueScope(), uniqueScope()
		insertAll(t, store, a, map[string][]float32{"alpha": axisVector(1)}, "alpha")
		insertAll(t, store, b, map[string][]float32{"beta": axisVector(1)}, "beta")

		hits, err := store.QueryNearest(ctx, axisVector(1), a, 5, 0.3)
		require.NoError(t, err)
		require.Equal(t, []string{"alpha"}, contents(hits))

		hits, err = store.QueryNearest(ctx, axisVector(1), b, 5, 0.3)
		require.NoError(t, err)
		require.Equal(t, []string{"beta"}, contents(hits))
	})

	t.Run("ordering and ties", func(t *testing.T) {
		scope := uniqueScope()
		rows := map[string][]float32{
			"first":  axisVector(1),
			"mixed":  axisVector(1, 1),
			"second": axisVector(2),
			"other":  axisVector(0, 1),
		}
		insertAll(t, store, scope, rows, "first", "mixed", "second", "other")

		hits, err := store.QueryNearest(ctx, axisVector(1), scope, 5, 0.3)
		require.NoError(t, err)
		require.Equal(t, []string{"first", "second", "mixed"}, contents(hits))
		require.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
		require.InDelta(t, 0.7071, hits[2].Similarity, 1e-3)
		require.Nil(t, hits[0].Chunk.Embedding)
		require.Equal(t, "test.txt", hits[0].Chunk.Metadata["source"])

		hits, err = store.QueryNearest(ctx, axisVector(1), scope, 2, 0.3)
		require.NoError(t, err)
		require.Equal(t, []string{"first", "second"}, contents(hits))
	})

	t.Run("threshold is strict", func(t *testing.T) {
		scope := uniqueScope()
		insertAll(t, store, scope, map[string][]float32{
			"same":       axisVector(1),
			"orthogonal": axisVector(0, 1),
		}, "same", "orthogonal")

		hits, err := store.QueryNearest(ctx, axisVector(1), scope, 5, 0)
		require.NoError(t, err)
		require.Equal(t, []string{"same"}, contents(hits))
		for _, hit := range hits {
			require.Greater(t, hit.Similarity, 0.0)
		}

		hits, err = store.QueryNearest(ctx, axisVector(0, 0, 1), scope, 5, 0.3)
		require.NoError(t, err)
		require.Empty(t, hits)
	})

	t.Run("empty scope", func(t *testing.T) {
		hits, err := store.QueryNearest(ctx, axisVector(1), uniqueScope(), 5, 0.3)
		require.NoError(t, err)
		require.Empty(t, hits)
		recent, err := store.Recent(ctx, uniqueScope(), 50)
		require.NoError(t, err)
		require.Empty(t, recent)
	})

	t.Run("recent newest first", func(t *testing.T) {
		scope := uniqueScope()
		rows := map[string][]float32{"c1": axisVector(1), "c2": axisVector(1), "c3": axisVector(1)}
		insertAll(t, store, scope, rows, "c1", "c2")
		insertAll(t, store, scope, rows, "c3")

		recent, err := store.Recent(ctx, scope, 50)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		require.Equal(t, "c3", recent[0].Content)
		require.Equal(t, "c2", recent[1].Content)
		require.Equal(t, "c1", recent[2].Content)
		require.GreaterOrEqual(t, recent[0].CreatedAt, recent[1].CreatedAt)

		recent, err = store.Recent(ctx, scope, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		require.Equal(t, "c3", recent[0].Content)
	})

	t.Run("rollback discards", func(t *testing.T) {
		scope := uniqueScope()
		batch, err := store.Begin(ctx)
		require.NoError(t, err)
		_, err = batch.Insert(ctx, &model.Chunk{
			Content:   "dropped",
			Embedding: axisVector(1),
			UserID:    scope.UserID,
			ProjectID: scope.ProjectID,
		})
		require.NoError(t, err)
		require.NoError(t, batch.Rollback(ctx))

		hits, err := store.QueryNearest(ctx, axisVector(1), scope, 5, 0.3)
		require.NoError(t, err)
		require.Empty(t, hits)
	})

	t.Run("results do not share metadata with stored rows", func(t *testing.T) {
		scope := uniqueScope()
		insertAll(t, store, scope, map[string][]float32{"kept": axisVector(1)}, "kept")

		hits, err := store.QueryNearest(ctx, axisVector(1), scope, 5, 0.3)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		hits[0].Chunk.Metadata["source"] = "changed"

		recent, err := store.Recent(ctx, scope, 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		require.Equal(t, "test.txt", recent[0].Metadata["source"])
		recent[0].Metadata["source"] = "changed"

		hits, err = store.QueryNearest(ctx, axisVector(1), scope, 5, 0.3)
		require.NoError(t, err)
		require.Equal(t, "test.txt", hits[0].Chunk.Metadata["source"])
	})

	t.Run("whitespace only content is stored", func(t *testing.T) {
		scope := uniqueScope()
		insertAll(t, store, scope, map[string][]float32{"   \n\n  ": axisVector(1)}, "   \n\n  ")
		recent, err := store.Recent(ctx, scope, 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		require.Equal(t, "   \n\n  ", recent[0].Content)

		batch, err := store.Begin(ctx)
		require.NoError(t, err)
		_, err = batch.Insert(ctx, &model.Chunk{Embedding: axisVector(1), UserID: scope.UserID, ProjectID: scope.ProjectID})
		require.ErrorIs(t, err, appErr.ErrInvalid)
		require.NoError(t, batch.Rollback(ctx))
	})

	t.Run("rejects bad vectors", func(t *testing.T) {
		scope := uniqueScope()
		batch, err := store.Begin(ctx)
		require.NoError(t, err)
		_, err = batch.Insert(ctx, &model.Chunk{
			Content:   "short",
			Embedding: []float32{1, 2, 3},
			UserID:    scope.UserID,
			ProjectID: scope.ProjectID,
		})
		require.True(t, errors.Is(err, appErr.ErrInvalid))
		require.NoError(t, batch.Rollback(ctx))

		_, err = store.QueryNearest(ctx, []float32{1}, scope, 5, 0.3)
		require.True(t, errors.Is(err, appErr.ErrInvalid))
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(configFor("faiss", nil), Options{})
	require.Error(t, err)
}
