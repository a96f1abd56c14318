package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/config"
	"github.com/xxxsen/docrag/internal/db"
	"github.com/xxxsen/docrag/internal/embedcache"
	"github.com/xxxsen/docrag/internal/filestore"
	"github.com/xxxsen/docrag/internal/rag"
	"github.com/xxxsen/docrag/internal/repo"
	"github.com/xxxsen/docrag/internal/service"
	"github.com/xxxsen/docrag/internal/vectorstore"
)

type app struct {
	cfg            *config.Config
	db             *sql.DB
	store          vectorstore.Store
	files          filestore.Store
	embedCacheRepo *repo.EmbeddingCacheRepo
	artifactRepo   *repo.ArtifactRepo
	rag            *service.RAGService
	qa             *service.QAService
	repurpose      *service.RepurposeService
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if cfg.Database.Enabled() {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = conn
		a.embedCacheRepo = repo.NewEmbeddingCacheRepo(conn)
		a.artifactRepo = repo.NewArtifactRepo(conn)
	}

	generators, err := buildGenerators(cfg.AI.Generators)
	if err != nil {
		a.Close()
		return nil, err
	}
	embedders, err := buildEmbedders(cfg.AI.Embedders)
	if err != nil {
		a.Close()
		return nil, err
	}
	voices, err := buildSynthesizers(cfg.AI.Speech)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder := ai.NewGroupEmbedder(embedders)
	if cfg.AI.EmbedCache.DB && a.embedCacheRepo != nil {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, a.embedCacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.EmbedCache.LRUSize, time.Duration(cfg.AI.EmbedCache.LRUTTLSeconds)*time.Second)

	var generator ai.IGenerator
	if len(generators) > 0 {
		generator = ai.NewGroupGenerator(generators)
	}
	var speech ai.ISynthesizer
	if len(voices) > 0 {
		speech = ai.NewGroupSynthesizer(voices)
	}

	a.store, err = vectorstore.New(cfg.VectorStore, vectorstore.Options{DB: a.db})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	a.files, err = filestore.New(cfg.FileStore)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}

	timeout := time.Duration(cfg.AI.Timeout) * time.Second
	embedClient := rag.NewEmbeddingClient(embedder, timeout)
	retriever := rag.NewRetriever(embedClient, a.store, cfg.RAG.TopK, cfg.RAG.MinSimilarity)
	a.rag = service.NewRAGService(embedClient, a.store, retriever, service.RAGConfig{
		ChunkSize:        cfg.RAG.ChunkSize,
		ChunkOverlap:     cfg.RAG.ChunkOverlap,
		MaxUploadBytes:   cfg.RAG.MaxUploadBytes,
		MaxChunks:        cfg.RAG.MaxChunks,
		EmbedConcurrency: cfg.RAG.EmbedConcurrency,
		MaxContextChars:  cfg.RAG.MaxContextChars,
		RecentLimit:      cfg.RAG.RecentLimit,
	})
	manager := ai.NewManager(generator, ai.ManagerConfig{Timeout: cfg.AI.Timeout})
	a.qa = service.NewQAService(a.rag, manager)
	var recorder service.ArtifactRecorder
	if a.artifactRepo != nil {
		recorder = a.artifactRepo
	}
	a.repurpose = service.NewRepurposeService(a.rag, manager, speech, a.files, recorder, cfg.RAG.RecentLimit)

	logutil.GetLogger(ctx).Info("components ready",
		zap.String("vector_store", a.store.Type()),
		zap.String("file_store", a.files.Type()),
		zap.String("embedder", embedder.ModelName()),
		zap.Int("generators", len(generators)),
		zap.Int("speech", len(voices)),
		zap.Bool("database", a.db != nil),
	)
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logutil.GetLogger(context.Background()).Warn("close vector store failed", zap.Error(err))
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func entryName(name, provider, model string) string {
	if name != "" {
		return name
	}
	return provider + ":" + model
}

func buildGenerators(items []config.ProviderEntry) ([]ai.GeneratorEntry, error) {
	out := make([]ai.GeneratorEntry, 0, len(items))
	for _, item := range items {
		p, err := ai.NewProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init generator %s: %w", entryName(item.Name, item.Provider, item.Model), err)
		}
		out = append(out, ai.GeneratorEntry{
			Name: entryName(item.Name, item.Provider, item.Model),
			Item: ai.NewGenerator(p, item.Model),
		})
	}
	return out, nil
}

func buildEmbedders(items []config.ProviderEntry) ([]ai.EmbedderEntry, error) {
	out := make([]ai.EmbedderEntry, 0, len(items))
	for _, item := range items {
		p, err := ai.NewEmbedProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedder %s: %w", entryName(item.Name, item.Provider, item.Model), err)
		}
		out = append(out, ai.EmbedderEntry{
			Name: entryName(item.Name, item.Provider, item.Model),
			Item: ai.NewEmbedder(p, item.Model),
		})
	}
	return out, nil
}

func buildSynthesizers(items []config.SpeechEntry) ([]ai.SynthesizerEntry, error) {
	out := make([]ai.SynthesizerEntry, 0, len(items))
	for _, item := range items {
		p, err := ai.NewSpeechProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init speech %s: %w", entryName(item.Name, item.Provider, item.Model), err)
		}
		out = append(out, ai.SynthesizerEntry{
			Name: entryName(item.Name, item.Provider, item.Model),
			Item: ai.NewSynthesizer(p, item.Model, item.Voices),
		})
	}
	return out, nil
}
