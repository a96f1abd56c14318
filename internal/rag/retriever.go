package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
	"github.com/xxxsen/docrag/internal/vectorstore"
)

const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.3
)

type Retriever struct {
	embed         *EmbeddingClient
	store         vectorstore.Store
	topK          int
	minSimilarity float64
}

func NewRetriever(embed *EmbeddingClient, store vectorstore.Store, topK int, minSimilarity float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embed: embed, store: store, topK: topK, minSimilarity: minSimilarity}
}

// Retrieve returns the chunks of scope most similar to query. An empty
// result means nothing cleared the similarity threshold.
func (r *Retriever) Retrieve(ctx context.Context, query string, scope model.Scope) ([]model.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", appErr.ErrInvalid)
	}
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: scope is incomplete", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("scope", scope.String()))
	vec, err := r.embed.Embed(ctx, query, ModeQuery)
	if err != nil {
		logger.Error("embed query failed", zap.Error(err))
		return nil, err
	}
	results, err := r.store.QueryNearest(ctx, vec, scope, r.topK, r.minSimilarity)
	if err != nil {
		logger.Error("query nearest failed", zap.Error(err))
		return nil, err
	}
	for _, item := range results {
		logger.Debug("retrieved chunk", zap.String("chunk_id", item.Chunk.ID), zap.Float64("similarity", item.Similarity))
	}
	logger.Info("retrieval finished", zap.Int("hits", len(results)), zap.Int("top_k", r.topK))
	return results, nil
}
