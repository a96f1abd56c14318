package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/docrag/internal/model"
	"github.com/xxxsen/docrag/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

// EmbeddingCacheRepo stores 768-d vectors by model, task type and text hash.
type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

// Lookup returns the cached vector. A row of the wrong width counts as a miss.
func (r *EmbeddingCacheRepo) Lookup(ctx context.Context, modelName, taskType, textHash string) (*model.CachedEmbedding, bool, error) {
	where := map[string]interface{}{
		"model_name": modelName,
		"task_type":  taskType,
		"text_hash":  textHash,
	}
	sqlStr, args, err := builder.BuildSelect("embedding_cache", where, []string{"embedding", "ctime"})
	if err != nil {
		return nil, false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var (
		vec   pgvector.Vector
		ctime int64
	)
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&vec, &ctime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	item := &model.CachedEmbedding{
		Model:    modelName,
		Task:     taskType,
		TextHash: textHash,
		Vector:   vec.Slice(),
		Ctime:    ctime,
	}
	if !item.Usable() {
		return nil, false, nil
	}
	return item, true, nil
}

// Save upserts item. Vectors that could never be stored as chunks are refused.
func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.CachedEmbedding) error {
	if !item.Usable() {
		return fmt.Errorf("%w: cached embedding must have %d components", appErr.ErrInvalid, model.EmbeddingDimension)
	}
	const query = `
		INSERT INTO embedding_cache (model_name, task_type, text_hash, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (model_name, task_type, text_hash) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		item.Model,
		item.Task,
		item.TextHash,
		pgvector.NewVector(item.Vector),
		item.Ctime,
	)
	return err
}

func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("embedding_cache", map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
