package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/xxxsen/docrag/internal/model"
)

func init() {
	Register("memory", func(args interface{}, opts Options) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// MemoryStore keeps every scope in process and answers queries with an
// exact cosine scan over that scope's rows.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[model.Scope][]model.Chunk
	seq  atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[model.Scope][]model.Chunk)}
}

func (s *MemoryStore) Type() string {
	return "memory"
}

func (s *MemoryStore) Begin(ctx context.Context) (Batch, error) {
	return &memoryBatch{store: s}, nil
}

func (s *MemoryStore) QueryNearest(ctx context.Context, vec []float32, scope model.Scope, k int, minSimilarity float64) ([]model.ScoredChunk, error) {
	if err := validateQuery(vec, scope); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rows := s.rows[scope]
	s.mu.RUnlock()
	return rankExact(rows, vec, normalizeK(k), minSimilarity), nil
}

func (s *MemoryStore) Recent(ctx context.Context, scope model.Scope, limit int) ([]model.Chunk, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)
	s.mu.RLock()
	rows := s.rows[scope]
	s.mu.RUnlock()
	out := make([]model.Chunk, 0, min(limit, len(rows)))
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		row := rows[i]
		row.Embedding = nil
		row.Metadata = copyMetadata(row.Metadata)
		out = append(out, row)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryBatch struct {
	store   *MemoryStore
	pending []model.Chunk
	done    bool
}

func (b *memoryBatch) Insert(ctx context.Context, chunk *model.Chunk) (string, error) {
	if b.done {
		return "", fmt.Errorf("batch already finished")
	}
	if err := validateChunk(chunk); err != nil {
		return "", err
	}
	row := *chunk
	row.Embedding = append([]float32(nil), chunk.Embedding...)
	row.Metadata = copyMetadata(chunk.Metadata)
	row.ID = strconv.FormatInt(b.store.seq.Add(1), 10)
	chunk.ID = row.ID
	b.pending = append(b.pending, row)
	return row.ID, nil
}

// Commit publishes the batch. Readers only look below the length they
// loaded, so appending in place under the write lock is safe.
func (b *memoryBatch) Commit(ctx context.Context) error {
	if b.done {
		return fmt.Errorf("batch already finished")
	}
	b.done = true
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, row := range b.pending {
		row.CreatedAt = nextTimestamp()
		scope := row.Scope()
		b.store.rows[scope] = append(b.store.rows[scope], row)
	}
	b.pending = nil
	return nil
}

func (b *memoryBatch) Rollback(ctx context.Context) error {
	b.done = true
	b.pending = nil
	return nil
}
