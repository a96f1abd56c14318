package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/docrag/internal/model"
	"github.com/xxxsen/docrag/internal/pkg/dbutil"
)

var artifactFields = []string{"id", "user_id", "project_id", "kind", "file_key", "size", "ctime"}

type ArtifactRepo struct {
	db *sql.DB
}

func NewArtifactRepo(db *sql.DB) *ArtifactRepo {
	return &ArtifactRepo{db: db}
}

func (r *ArtifactRepo) Create(ctx context.Context, item *model.Artifact) error {
	data := map[string]interface{}{
		"id":         item.ID,
		"user_id":    item.UserID,
		"project_id": item.ProjectID,
		"kind":       item.Kind,
		"file_key":   item.FileKey,
		"size":       item.Size,
		"ctime":      item.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("artifacts", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ArtifactRepo) ListByScope(ctx context.Context, scope model.Scope, limit uint) ([]model.Artifact, error) {
	where := map[string]interface{}{
		"user_id":    scope.UserID,
		"project_id": scope.ProjectID,
		"_orderby":   "ctime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, limit}
	}
	return r.list(ctx, where)
}

func (r *ArtifactRepo) ListBefore(ctx context.Context, cutoff int64, limit uint) ([]model.Artifact, error) {
	where := map[string]interface{}{
		"ctime <":  cutoff,
		"_orderby": "ctime asc",
		"_limit":   []uint{0, limit},
	}
	return r.list(ctx, where)
}

func (r *ArtifactRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM artifacts WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	query, args = dbutil.Finalize(query, args)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ArtifactRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Artifact, error) {
	sqlStr, args, err := builder.BuildSelect("artifacts", where, artifactFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Artifact
	for rows.Next() {
		var item model.Artifact
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProjectID, &item.Kind, &item.FileKey, &item.Size, &item.Ctime); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
