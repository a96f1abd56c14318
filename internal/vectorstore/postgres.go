package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/docrag/internal/model"
	"github.com/xxxsen/docrag/internal/pkg/dbutil"
)

func init() {
	Register("postgres", func(args interface{}, opts Options) (Store, error) {
		if opts.DB == nil {
			return nil, fmt.Errorf("postgres vector store requires a database")
		}
		return NewPostgresStore(opts.DB), nil
	})
}

// PostgresStore relies on pgvector: `<=>` is cosine distance and the ivfflat
// index on document_chunks.embedding serves the ORDER BY.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Type() string {
	return "postgres"
}

func (s *PostgresStore) Begin(ctx context.Context) (Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("begin", err)
	}
	return &sqlBatch{tx: tx, insert: postgresInsert}, nil
}

func postgresInsert(ctx context.Context, tx *sql.Tx, chunk *model.Chunk) (string, error) {
	const query = `
		INSERT INTO document_chunks (content, metadata, embedding, user_id, project_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	meta, err := encodeMetadata(chunk.Metadata)
	if err != nil {
		return "", err
	}
	var id int64
	err = tx.QueryRowContext(ctx, query,
		chunk.Content,
		meta,
		pgvector.NewVector(chunk.Embedding),
		chunk.UserID,
		chunk.ProjectID,
		nextTimestamp(),
	).Scan(&id)
	if err != nil {
		return "", storeError("insert", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *PostgresStore) QueryNearest(ctx context.Context, vec []float32, scope model.Scope, k int, minSimilarity float64) ([]model.ScoredChunk, error) {
	if err := validateQuery(vec, scope); err != nil {
		return nil, err
	}
	const query = `
		SELECT id, content, metadata, user_id, project_id, created_at, 1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		WHERE user_id = $2 AND project_id = $3 AND 1 - (embedding <=> $1) > $4
		ORDER BY embedding <=> $1 ASC, id ASC
		LIMIT $5
	`
	rows, err := s.db.QueryContext(ctx, query,
		pgvector.NewVector(vec),
		scope.UserID,
		scope.ProjectID,
		minSimilarity,
		normalizeK(k),
	)
	if err != nil {
		return nil, storeError("query nearest", err)
	}
	defer rows.Close()
	var out []model.ScoredChunk
	for rows.Next() {
		var item model.ScoredChunk
		if err := scanPostgresChunk(rows, &item.Chunk, &item.Similarity); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("query nearest", err)
	}
	return out, nil
}

func (s *PostgresStore) Recent(ctx context.Context, scope model.Scope, limit int) ([]model.Chunk, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	where := map[string]interface{}{
		"user_id":    scope.UserID,
		"project_id": scope.ProjectID,
		"_orderby":   "created_at desc, id desc",
		"_limit":     []uint{0, uint(normalizeLimit(limit))},
	}
	sqlStr, args, err := builder.BuildSelect("document_chunks", where,
		[]string{"id", "content", "metadata", "user_id", "project_id", "created_at"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, storeError("recent", err)
	}
	defer rows.Close()
	var out []model.Chunk
	for rows.Next() {
		var item model.Chunk
		if err := scanPostgresChunk(rows, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("recent", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	// the connection pool belongs to the caller
	return nil
}

func scanPostgresChunk(rows *sql.Rows, item *model.Chunk, extra ...interface{}) error {
	var (
		id   int64
		meta []byte
	)
	dest := append([]interface{}{&id, &item.Content, &meta, &item.UserID, &item.ProjectID, &item.CreatedAt}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return storeError("scan", err)
	}
	item.ID = strconv.FormatInt(id, 10)
	var err error
	item.Metadata, err = decodeMetadata(meta)
	return err
}
