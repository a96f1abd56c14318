package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xxxsen/docrag/internal/model"
)

type insertFunc func(ctx context.Context, tx *sql.Tx, chunk *model.Chunk) (string, error)

// sqlBatch maps a write batch onto one database transaction.
type sqlBatch struct {
	tx     *sql.Tx
	insert insertFunc
}

func (b *sqlBatch) Insert(ctx context.Context, chunk *model.Chunk) (string, error) {
	if err := validateChunk(chunk); err != nil {
		return "", err
	}
	id, err := b.insert(ctx, b.tx, chunk)
	if err != nil {
		return "", err
	}
	chunk.ID = id
	return id, nil
}

func (b *sqlBatch) Commit(ctx context.Context) error {
	if err := b.tx.Commit(); err != nil {
		return storeError("commit", err)
	}
	return nil
}

func (b *sqlBatch) Rollback(ctx context.Context) error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return storeError("rollback", err)
	}
	return nil
}

func encodeMetadata(meta map[string]interface{}) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode chunk metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode chunk metadata: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return meta, nil
}
