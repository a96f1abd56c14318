package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

type Mode int

const (
	ModeDocument Mode = iota
	ModeQuery
)

func (m Mode) TaskType() ai.TaskType {
	if m == ModeQuery {
		return ai.TaskRetrievalQuery
	}
	return ai.TaskRetrievalDocument
}

// EmbeddingClient guarantees that every vector it hands out has
// model.EmbeddingDimension components.
type EmbeddingClient struct {
	embedder ai.IEmbedder
	timeout  time.Duration
}

func NewEmbeddingClient(embedder ai.IEmbedder, timeout time.Duration) *EmbeddingClient {
	return &EmbeddingClient{embedder: embedder, timeout: timeout}
}

func (c *EmbeddingClient) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrEmbedding, ai.ErrUnavailable)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	vec, err := c.embedder.Embed(ctx, text, mode.TaskType())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrEmbedding, err)
	}
	if len(vec) != model.EmbeddingDimension {
		return nil, fmt.Errorf("%w: %s returned %d components, want %d",
			appErr.ErrEmbedding, c.embedder.ModelName(), len(vec), model.EmbeddingDimension)
	}
	return vec, nil
}

func (c *EmbeddingClient) ModelName() string {
	if c.embedder == nil {
		return ""
	}
	return c.embedder.ModelName()
}
