package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/model"
)

type countingEmbedder struct {
	calls int
	width int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType ai.TaskType) ([]float32, error) {
	c.calls++
	width := c.width
	if width == 0 {
		width = model.EmbeddingDimension
	}
	vec := make([]float32, width)
	vec[0] = float32(len(text))
	return vec, nil
}

func (c *countingEmbedder) ModelName() string {
	return "test:model"
}

type memCacheStore struct {
	items   map[string]*model.CachedEmbedding
	saves   int
	readErr error
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{items: map[string]*model.CachedEmbedding{}}
}

func (m *memCacheStore) Lookup(ctx context.Context, modelName, taskType, textHash string) (*model.CachedEmbedding, bool, error) {
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	v, ok := m.items[modelName+taskType+textHash]
	return v, ok, nil
}

func (m *memCacheStore) Save(ctx context.Context, item *model.CachedEmbedding) error {
	m.saves++
	m.items[item.Model+item.Task+item.TextHash] = item
	return nil
}

func TestLruCache_HitsSkipUpstream(t *testing.T) {
	next := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(next, 10, time.Minute)

	first, err := e.Embed(context.Background(), "hello", ai.TaskRetrievalDocument)
	require.NoError(t, err)
	first[0] = 999

	second, err := e.Embed(context.Background(), "hello", ai.TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, float32(5), second[0])
	require.Equal(t, 1, next.calls)

	_, err = e.Embed(context.Background(), "hello", ai.TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
}

func TestLruCache_SkipsWrongWidth(t *testing.T) {
	next := &countingEmbedder{width: 3}
	e := WrapLruCacheToEmbedder(next, 10, time.Minute)
	for i := 0; i < 2; i++ {
		out, err := e.Embed(context.Background(), "hello", ai.TaskRetrievalDocument)
		require.NoError(t, err)
		require.Len(t, out, 3)
	}
	require.Equal(t, 2, next.calls)
}

func TestLruCache_DisabledReturnsInner(t *testing.T) {
	next := &countingEmbedder{}
	require.Same(t, next, WrapLruCacheToEmbedder(next, 0, time.Minute).(*countingEmbedder))
}

func TestDBCache_SavesAndReads(t *testing.T) {
	next := &countingEmbedder{}
	store := newMemCacheStore()
	e := WrapDBCacheToEmbedder(next, store)

	_, err := e.Embed(context.Background(), "abc", ai.TaskRetrievalQuery)
	require.NoError(t, err)
	out, err := e.Embed(context.Background(), "abc", ai.TaskRetrievalQuery)
	require.NoError(t, err)
	require.Len(t, out, model.EmbeddingDimension)
	require.Equal(t, float32(3), out[0])
	require.Equal(t, 1, next.calls)
	require.Equal(t, 1, store.saves)
	require.Equal(t, "test:model", e.ModelName())
}

func TestDBCache_WrongWidthNeitherSavedNorServed(t *testing.T) {
	next := &countingEmbedder{width: 4}
	store := newMemCacheStore()
	e := WrapDBCacheToEmbedder(next, store)

	out, err := e.Embed(context.Background(), "abc", ai.TaskRetrievalDocument)
	require.NoError(t, err)
	require.Len(t, out, 4)
	require.Equal(t, 0, store.saves)

	// a bad row already in the table is treated as a miss
	key := buildCacheKey("test:model", ai.TaskRetrievalQuery, "abc")
	store.items[key.model+string(key.taskType)+key.textHash] = &model.CachedEmbedding{Vector: []float32{1, 2}}
	next.width = 0
	out, err = e.Embed(context.Background(), "abc", ai.TaskRetrievalQuery)
	require.NoError(t, err)
	require.Len(t, out, model.EmbeddingDimension)
	require.Equal(t, 2, next.calls)
	require.Equal(t, 1, store.saves)
}

func TestDBCache_ReadErrorFallsThrough(t *testing.T) {
	next := &countingEmbedder{}
	store := newMemCacheStore()
	store.readErr = errors.New("db down")
	out, err := WrapDBCacheToEmbedder(next, store).Embed(context.Background(), "abc", ai.TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, float32(3), out[0])
	require.Equal(t, 1, next.calls)
}
