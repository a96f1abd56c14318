package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

type stubEmbedder struct {
	dim      int
	err      error
	lastTask ai.TaskType
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType ai.TaskType) ([]float32, error) {
	s.lastTask = taskType
	if s.err != nil {
		return nil, s.err
	}
	return make([]float32, s.dim), nil
}

func (s *stubEmbedder) ModelName() string {
	return "stub:model"
}

func TestEmbeddingClient_ModeSelectsTaskType(t *testing.T) {
	stub := &stubEmbedder{dim: model.EmbeddingDimension}
	client := NewEmbeddingClient(stub, time.Second)

	_, err := client.Embed(context.Background(), "doc", ModeDocument)
	require.NoError(t, err)
	require.Equal(t, ai.TaskRetrievalDocument, stub.lastTask)

	_, err = client.Embed(context.Background(), "query", ModeQuery)
	require.NoError(t, err)
	require.Equal(t, ai.TaskRetrievalQuery, stub.lastTask)
}

func TestEmbeddingClient_RejectsWrongDimension(t *testing.T) {
	client := NewEmbeddingClient(&stubEmbedder{dim: 1536}, 0)
	_, err := client.Embed(context.Background(), "text", ModeDocument)
	require.Error(t, err)
	require.True(t, errors.Is(err, appErr.ErrEmbedding))
}

func TestEmbeddingClient_KeepsQuotaKind(t *testing.T) {
	upstream := fmt.Errorf("%w: 429 too many requests", appErr.ErrQuotaExceeded)
	client := NewEmbeddingClient(&stubEmbedder{err: upstream}, 0)
	_, err := client.Embed(context.Background(), "text", ModeQuery)
	require.True(t, errors.Is(err, appErr.ErrEmbedding))
	require.True(t, errors.Is(err, appErr.ErrQuotaExceeded))
}

func TestEmbeddingClient_NoEmbedder(t *testing.T) {
	client := NewEmbeddingClient(nil, 0)
	_, err := client.Embed(context.Background(), "text", ModeQuery)
	require.True(t, errors.Is(err, appErr.ErrEmbedding))
	require.True(t, errors.Is(err, appErr.ErrUnavailable))
}
