package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/pkg/dbutil"
	"github.com/xxxsen/docsearch/internal/store"
)

type SearchEventRepo struct {
	db *sql.DB
}

var _ store.SearchRecorder = (*SearchEventRepo)(nil)

func NewSearchEventRepo(db *sql.DB) *SearchEventRepo {
	return &SearchEventRepo{db: db}
}

func (r *SearchEventRepo) RecordSearch(ctx context.Context, ev *model.SearchEvent) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var orgID interface{}
	if ev.OrganizationID != "" {
		orgID = ev.OrganizationID
	}
	data := map[string]interface{}{
		"user_id":         ev.UserID,
		"organization_id": orgID,
		"query":           ev.Query,
		"mode":            string(ev.Mode),
		"result_count":    ev.ResultCount,
		"elapsed_ms":      ev.ElapsedMs,
		"created_at":      createdAt,
	}
	sqlStr, args, err := builder.BuildInsert("search_events", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
