package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/didi/gendry/builder"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/docrag/internal/model"
)

const sqliteTable = "document_chunks"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS document_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		embedding TEXT NOT NULL,
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_document_chunks_scope ON document_chunks(user_id, project_id, created_at)`,
}

type sqliteConfig struct {
	Path string `json:"path"`
}

func init() {
	Register("sqlite", func(args interface{}, opts Options) (Store, error) {
		cfg := &sqliteConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite vector store path is required")
		}
		return OpenSQLiteStore(cfg.Path)
	})
}

// SQLiteStore keeps vectors as JSON text and ranks with an exact scan of the
// scope's rows; the scope index bounds how many rows are read.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Type() string {
	return "sqlite"
}

func (s *SQLiteStore) Begin(ctx context.Context) (Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("begin", err)
	}
	return &sqlBatch{tx: tx, insert: sqliteInsert}, nil
}

func sqliteInsert(ctx context.Context, tx *sql.Tx, chunk *model.Chunk) (string, error) {
	meta, err := encodeMetadata(chunk.Metadata)
	if err != nil {
		return "", err
	}
	vec, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return "", err
	}
	data := map[string]interface{}{
		"content":    chunk.Content,
		"metadata":   meta,
		"embedding":  string(vec),
		"user_id":    chunk.UserID,
		"project_id": chunk.ProjectID,
		"created_at": nextTimestamp(),
	}
	sqlStr, args, err := builder.BuildInsert(sqliteTable, []map[string]interface{}{data})
	if err != nil {
		return "", err
	}
	res, err := tx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return "", storeError("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", storeError("insert", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLiteStore) QueryNearest(ctx context.Context, vec []float32, scope model.Scope, k int, minSimilarity float64) ([]model.ScoredChunk, error) {
	if err := validateQuery(vec, scope); err != nil {
		return nil, err
	}
	where := map[string]interface{}{
		"user_id":    scope.UserID,
		"project_id": scope.ProjectID,
		"_orderby":   "id asc",
	}
	rows, err := s.list(ctx, where, true)
	if err != nil {
		return nil, err
	}
	return rankExact(rows, vec, normalizeK(k), minSimilarity), nil
}

func (s *SQLiteStore) Recent(ctx context.Context, scope model.Scope, limit int) ([]model.Chunk, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	where := map[string]interface{}{
		"user_id":    scope.UserID,
		"project_id": scope.ProjectID,
		"_orderby":   "created_at desc, id desc",
		"_limit":     []uint{0, uint(normalizeLimit(limit))},
	}
	return s.list(ctx, where, false)
}

func (s *SQLiteStore) list(ctx context.Context, where map[string]interface{}, withEmbedding bool) ([]model.Chunk, error) {
	fields := []string{"id", "content", "metadata", "user_id", "project_id", "created_at"}
	if withEmbedding {
		fields = append(fields, "embedding")
	}
	sqlStr, args, err := builder.BuildSelect(sqliteTable, where, fields)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, storeError("query", err)
	}
	defer rows.Close()
	var out []model.Chunk
	for rows.Next() {
		var (
			item model.Chunk
			id   int64
			meta string
			vec  string
		)
		dest := []interface{}{&id, &item.Content, &meta, &item.UserID, &item.ProjectID, &item.CreatedAt}
		if withEmbedding {
			dest = append(dest, &vec)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, storeError("scan", err)
		}
		item.ID = strconv.FormatInt(id, 10)
		if item.Metadata, err = decodeMetadata([]byte(meta)); err != nil {
			return nil, err
		}
		if withEmbedding {
			if err := json.Unmarshal([]byte(vec), &item.Embedding); err != nil {
				return nil, fmt.Errorf("decode embedding of chunk %d: %w", id, err)
			}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("query", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
