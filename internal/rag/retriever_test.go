package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
	"github.com/xxxsen/docrag/internal/testutil"
	"github.com/xxxsen/docrag/internal/vectorstore"
)

func seed(t *testing.T, store vectorstore.Store, embed *EmbeddingClient, scope model.Scope, texts ...string) {
	t.Helper()
	ctx := context.Background()
	batch, err := store.Begin(ctx)
	require.NoError(t, err)
	for _, text := range texts {
		vec, err := embed.Embed(ctx, text, ModeDocument)
		require.NoError(t, err)
		_, err = batch.Insert(ctx, &model.Chunk{
			Content:   text,
			Embedding: vec,
			UserID:    scope.UserID,
			ProjectID: scope.ProjectID,
		})
		require.NoError(t, err)
	}
	require.NoError(t, batch.Commit(ctx))
}

func TestRetriever_RanksRelevantChunkFirst(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embed := NewEmbeddingClient(&testutil.BagOfWordsEmbedder{}, 0)
	scope := model.Scope{UserID: "u1", ProjectID: "p1"}
	seed(t, store, embed, scope, "The sky is blue.", "Grass is green.")

	r := NewRetriever(embed, store, DefaultTopK, DefaultMinSimilarity)
	hits, err := r.Retrieve(context.Background(), "What color is the sky?", scope)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "The sky is blue.", hits[0].Chunk.Content)
	for i := 1; i < len(hits); i++ {
		require.Less(t, hits[i].Similarity, hits[0].Similarity)
	}
}

func TestRetriever_OtherScopeIsEmpty(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embed := NewEmbeddingClient(&testutil.BagOfWordsEmbedder{}, 0)
	seed(t, store, embed, model.Scope{UserID: "u1", ProjectID: "p1"}, "The sky is blue.")

	r := NewRetriever(embed, store, DefaultTopK, DefaultMinSimilarity)
	hits, err := r.Retrieve(context.Background(), "sky", model.Scope{UserID: "u2", ProjectID: "p2"})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestRetriever_RejectsEmptyQuery(t *testing.T) {
	r := NewRetriever(NewEmbeddingClient(&testutil.BagOfWordsEmbedder{}, 0), vectorstore.NewMemoryStore(), 0, 0.3)
	_, err := r.Retrieve(context.Background(), "  ", model.Scope{UserID: "u1", ProjectID: "p1"})
	require.True(t, errors.Is(err, appErr.ErrInvalid))
}
