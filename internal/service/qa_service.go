package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

const NoRelevantInfoAnswer = "I couldn't find relevant information in your sources to answer this question."

type Source struct {
	ChunkID    string                 `json:"chunk_id"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Similarity float64                `json:"similarity"`
}

type QAResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type QAService struct {
	rag *RAGService
	ai  *ai.Manager
}

func NewQAService(rag *RAGService, manager *ai.Manager) *QAService {
	return &QAService{rag: rag, ai: manager}
}

func (s *QAService) Ask(ctx context.Context, scope model.Scope, query string) (*QAResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", appErr.ErrInvalid)
	}
	hits, err := s.rag.Answer(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &QAResult{Answer: NoRelevantInfoAnswer, Sources: []Source{}}, nil
	}
	if !s.ai.Available() {
		return nil, ai.ErrUnavailable
	}
	answer, err := s.ai.Answer(ctx, s.rag.AssembleScored(hits), query)
	if err != nil {
		logutil.GetLogger(ctx).Error("generate answer failed", zap.String("scope", scope.String()), zap.Error(err))
		return nil, err
	}
	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		sources = append(sources, Source{
			ChunkID:    hit.Chunk.ID,
			Content:    hit.Chunk.Content,
			Metadata:   hit.Chunk.Metadata,
			Similarity: hit.Similarity,
		})
	}
	return &QAResult{Answer: answer, Sources: sources}, nil
}
