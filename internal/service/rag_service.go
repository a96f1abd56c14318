package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/docrag/internal/model"
	"github.com/xxxsen/docrag/internal/parser"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
	"github.com/xxxsen/docrag/internal/rag"
	"github.com/xxxsen/docrag/internal/vectorstore"
)

type RAGConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	MaxUploadBytes   int64
	MaxChunks        int
	EmbedConcurrency int
	MaxContextChars  int
	RecentLimit      int
}

// RAGService is the core pipeline: ingestion into the vector store,
// retrieval for questions and bulk context for the repurposing features.
type RAGService struct {
	embed     *rag.EmbeddingClient
	store     vectorstore.Store
	retriever *rag.Retriever
	cfg       RAGConfig
}

func NewRAGService(embed *rag.EmbeddingClient, store vectorstore.Store, retriever *rag.Retriever, cfg RAGConfig) *RAGService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = rag.DefaultChunkSize
		cfg.ChunkOverlap = rag.DefaultChunkOverlap
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 500
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = rag.DefaultMaxContextChars
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = vectorstore.DefaultRecentLimit
	}
	return &RAGService{embed: embed, store: store, retriever: retriever, cfg: cfg}
}

// Ingest parses an uploaded file and indexes it under scope. It returns the
// number of stored chunks. Either every chunk is stored or none is.
func (s *RAGService) Ingest(ctx context.Context, scope model.Scope, filename string, data []byte) (int, error) {
	if !scope.Valid() {
		return 0, fmt.Errorf("%w: scope is incomplete", appErr.ErrInvalid)
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: file is empty", appErr.ErrInvalid)
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(data)) > s.cfg.MaxUploadBytes {
		return 0, fmt.Errorf("%w: file too large", appErr.ErrInvalid)
	}
	text, err := parser.Parse(filename, data)
	if err != nil {
		return 0, err
	}
	return s.IngestText(ctx, scope, filepath.Base(filename), text)
}

func (s *RAGService) IngestText(ctx context.Context, scope model.Scope, source, text string) (int, error) {
	if !scope.Valid() {
		return 0, fmt.Errorf("%w: scope is incomplete", appErr.ErrInvalid)
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: no text to index", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("scope", scope.String()), zap.String("source", source))
	pieces, err := rag.Chunk(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return 0, err
	}
	if len(pieces) == 0 {
		return 0, fmt.Errorf("%w: no text to index", appErr.ErrInvalid)
	}
	if len(pieces) > s.cfg.MaxChunks {
		return 0, fmt.Errorf("%w: file too large, %d chunks exceeds limit %d", appErr.ErrInvalid, len(pieces), s.cfg.MaxChunks)
	}

	vectors := make([][]float32, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedConcurrency)
	for i, piece := range pieces {
		g.Go(func() error {
			vec, err := s.embed.Embed(gctx, piece, rag.ModeDocument)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("embed chunks failed", zap.Int("chunks", len(pieces)), zap.Error(err))
		return 0, err
	}

	batch, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	for i, piece := range pieces {
		chunk := &model.Chunk{
			Content: piece,
			Metadata: map[string]interface{}{
				"source":      source,
				"chunk_index": i,
			},
			Embedding: vectors[i],
			UserID:    scope.UserID,
			ProjectID: scope.ProjectID,
		}
		if _, err := batch.Insert(ctx, chunk); err != nil {
			s.rollback(ctx, batch)
			logger.Error("insert chunk failed", zap.Int("chunk_index", i), zap.Error(err))
			return 0, err
		}
	}
	if err := batch.Commit(ctx); err != nil {
		s.rollback(ctx, batch)
		logger.Error("commit chunks failed", zap.Error(err))
		return 0, err
	}
	logger.Info("document ingested", zap.Int("chunks", len(pieces)), zap.Int("chars", len([]rune(text))))
	return len(pieces), nil
}

func (s *RAGService) rollback(ctx context.Context, batch vectorstore.Batch) {
	if err := batch.Rollback(ctx); err != nil {
		logutil.GetLogger(ctx).Warn("rollback chunks failed", zap.Error(err))
	}
}

// Answer returns the chunks relevant to query. An empty slice is a valid
// result and means nothing in scope is similar enough.
func (s *RAGService) Answer(ctx context.Context, query string, scope model.Scope) ([]model.ScoredChunk, error) {
	return s.retriever.Retrieve(ctx, query, scope)
}

// BulkContext assembles the newest chunks of scope into one context string.
func (s *RAGService) BulkContext(ctx context.Context, scope model.Scope, limit int) (string, error) {
	if !scope.Valid() {
		return "", fmt.Errorf("%w: scope is incomplete", appErr.ErrInvalid)
	}
	if limit <= 0 {
		limit = s.cfg.RecentLimit
	}
	chunks, err := s.store.Recent(ctx, scope, limit)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: no content uploaded yet", appErr.ErrNotFound)
	}
	return rag.Assemble(model.Contents(chunks), s.cfg.MaxContextChars), nil
}

func (s *RAGService) AssembleScored(items []model.ScoredChunk) string {
	return rag.Assemble(model.ScoredContents(items), s.cfg.MaxContextChars)
}
