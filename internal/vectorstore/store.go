package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/docrag/internal/config"
	"github.com/xxxsen/docrag/internal/model"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

const (
	DefaultTopK        = 5
	DefaultRecentLimit = 50
)

// Store persists chunks with their embeddings and answers scoped nearest
// neighbour queries. Implementations order ties by insertion order.
type Store interface {
	Type() string
	// Begin starts a write batch. Nothing inserted through it is visible
	// before Commit.
	Begin(ctx context.Context) (Batch, error)
	// QueryNearest returns at most k chunks of scope whose cosine similarity
	// to vec is strictly greater than minSimilarity, best first.
	QueryNearest(ctx context.Context, vec []float32, scope model.Scope, k int, minSimilarity float64) ([]model.ScoredChunk, error)
	// Recent returns the newest chunks of scope, newest first.
	Recent(ctx context.Context, scope model.Scope, limit int) ([]model.Chunk, error)
	Close() error
}

type Batch interface {
	Insert(ctx context.Context, chunk *model.Chunk) (string, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Options carries shared resources some backends need.
type Options struct {
	DB *sql.DB
}

type Factory func(args interface{}, opts Options) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.VectorStoreConfig, opts Options) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	return factory(cfg.Data, opts)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector store config: %w", err)
	}
	return nil
}

func validateChunk(chunk *model.Chunk) error {
	if chunk == nil || chunk.Content == "" {
		return fmt.Errorf("%w: chunk content is empty", appErr.ErrInvalid)
	}
	if !chunk.Scope().Valid() {
		return fmt.Errorf("%w: chunk scope is incomplete", appErr.ErrInvalid)
	}
	return validateVector(chunk.Embedding)
}

func validateVector(vec []float32) error {
	if len(vec) != model.EmbeddingDimension {
		return fmt.Errorf("%w: embedding has %d components, want %d", appErr.ErrInvalid, len(vec), model.EmbeddingDimension)
	}
	return nil
}

func validateScope(scope model.Scope) error {
	if !scope.Valid() {
		return fmt.Errorf("%w: scope is incomplete", appErr.ErrInvalid)
	}
	return nil
}

func validateQuery(vec []float32, scope model.Scope) error {
	if err := validateScope(scope); err != nil {
		return err
	}
	return validateVector(vec)
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", appErr.ErrStore, op, err)
}

func normalizeK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	return k
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}

var lastTimestamp atomic.Int64

// nextTimestamp returns unix microseconds, strictly increasing within the
// process, so created_at alone orders chunks written by this process.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixMicro()
		last := lastTimestamp.Load()
		if now <= last {
			now = last + 1
		}
		if lastTimestamp.CompareAndSwap(last, now) {
			return now
		}
	}
}
