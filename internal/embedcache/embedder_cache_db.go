package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docrag/internal/ai"
	"github.com/xxxsen/docrag/internal/model"
)

// CacheStore persists vectors keyed by model, task type and text hash.
type CacheStore interface {
	Lookup(ctx context.Context, modelName, taskType, textHash string) (*model.CachedEmbedding, bool, error)
	Save(ctx context.Context, item *model.CachedEmbedding) error
}

func WrapDBCacheToEmbedder(e ai.IEmbedder, store CacheStore) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store CacheStore
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType ai.TaskType) ([]float32, error) {
	logger := logutil.GetLogger(ctx)
	key := buildCacheKey(d.next.ModelName(), taskType, text)
	cached, ok, err := d.store.Lookup(ctx, key.model, string(taskType), key.textHash)
	if err != nil {
		logger.Warn("read embedding cache failed", zap.Error(err))
	}
	if ok && cached.Usable() {
		logger.Debug("embedding cache hit", zap.String("layer", "db"), zap.String("task_type", string(taskType)))
		return cached.Vector, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	item := &model.CachedEmbedding{
		Model:    key.model,
		Task:     string(taskType),
		TextHash: key.textHash,
		Vector:   res,
		Ctime:    time.Now().Unix(),
	}
	if !item.Usable() {
		logger.Warn("embedding not cached, unexpected width",
			zap.String("model", key.model), zap.Int("width", len(res)))
		return res, nil
	}
	if err := d.store.Save(ctx, item); err != nil {
		logger.Warn("failed to cache embedding", zap.Error(err))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

type cacheKey struct {
	model    string
	taskType ai.TaskType
	textHash string
}

func (k cacheKey) String() string {
	return "embed:" + k.model + ":" + string(k.taskType) + ":" + k.textHash
}

func buildCacheKey(modelName string, taskType ai.TaskType, text string) cacheKey {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	return cacheKey{model: modelName, taskType: taskType, textHash: hex.EncodeToString(hash[:])}
}
