package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/docsearch/internal/db"
	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docsearch/internal/pkg/errors"
	"github.com/xxxsen/docsearch/internal/similarity"
	"github.com/xxxsen/docsearch/internal/store"
)

var documentColumns = []string{
	"id", "organization_id", "title", "COALESCE(abstract, '') AS abstract", "source",
	"COALESCE(journal, '') AS journal", "publication_date", "keywords", "citation_count",
	"has_embedding", "created_at",
}

type DocumentRepo struct {
	db *sql.DB
}

var _ store.DocumentStore = (*DocumentRepo)(nil)

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner, extra ...interface{}) (*model.Document, error) {
	var doc model.Document
	var orgID sql.NullString
	var pubDate sql.NullTime
	var keywords pq.StringArray
	dest := []interface{}{
		&doc.ID, &orgID, &doc.Title, &doc.Abstract, &doc.Source,
		&doc.Journal, &pubDate, &keywords, &doc.CitationCount,
		&doc.HasEmbedding, &doc.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if orgID.Valid {
		doc.OrganizationID = &orgID.String
	}
	if pubDate.Valid {
		doc.PublicationDate = &pubDate.Time
	}
	doc.Keywords = []string(keywords)
	return &doc, nil
}

// scopeWhere is the gendry form of documentScope for unaliased queries.
func scopeWhere(scope model.TenantScope) interface{} {
	if scope.IsGlobal() {
		return builder.Custom("organization_id IS NULL")
	}
	return builder.Custom("id IN (SELECT document_id FROM document_claims WHERE organization_id = ?)", scope.OrganizationID)
}

func (r *DocumentRepo) GetDocument(ctx context.Context, scope model.TenantScope, id string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":            id,
		"_custom_scope": scopeWhere(scope),
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, append(append([]string{}, documentColumns...), "embedding"))
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var embedding *pgvector.Vector
	doc, err := scanDocument(r.db.QueryRowContext(ctx, sqlStr, args...), &embedding)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	if embedding != nil {
		doc.Embedding = embedding.Slice()
	}
	return doc, nil
}

func (r *DocumentRepo) LexicalSearch(ctx context.Context, scope model.TenantScope, q store.LexicalQuery) ([]store.LexicalHit, int, error) {
	sqlStr, args := buildLexicalQuery(scope, q)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("lexical query: %w", err)
	}
	defer rows.Close()
	hits := make([]store.LexicalHit, 0)
	for rows.Next() {
		var hit store.LexicalHit
		doc, err := scanDocument(rows, &hit.TitleSimilarity, &hit.AbstractSimilarity, &hit.Score)
		if err != nil {
			return nil, 0, err
		}
		hit.Document = doc
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countSQL, countArgs := buildLexicalCount(scope, q)
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("lexical count: %w", err)
	}
	return hits, total, nil
}

func (r *DocumentRepo) NearestNeighbors(ctx context.Context, scope model.TenantScope, q store.VectorQuery) ([]store.Neighbor, int, error) {
	if err := similarity.CheckDimension(q.Vector); err != nil {
		return nil, 0, err
	}
	vector := pgvector.NewVector(q.Vector)
	sqlStr, args := buildNeighborQuery(scope, q, vector)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("neighbor query: %w", err)
	}
	defer rows.Close()
	neighbors := make([]store.Neighbor, 0)
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.DocumentID, &n.Distance); err != nil {
			return nil, 0, err
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countSQL, countArgs := buildNeighborCount(scope, q, vector)
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("neighbor count: %w", err)
	}
	return neighbors, total, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func updateEmbedding(ctx context.Context, ex execer, id string, embedding []float32) error {
	if err := similarity.CheckDimension(embedding); err != nil {
		return fmt.Errorf("document %s: %w", id, err)
	}
	where := map[string]interface{}{"id": id}
	update := map[string]interface{}{
		"embedding":     pgvector.NewVector(embedding),
		"has_embedding": true,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := ex.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, appErr.ErrNotFound)
	}
	return nil
}

func (r *DocumentRepo) UpsertEmbedding(ctx context.Context, id string, embedding []float32) error {
	return updateEmbedding(ctx, r.db, id, embedding)
}

func (r *DocumentRepo) SaveEmbeddings(ctx context.Context, updates []store.EmbeddingUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, u := range updates {
			if err := updateEmbedding(ctx, tx, u.DocumentID, u.Embedding); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *DocumentRepo) ListMissingEmbeddings(ctx context.Context, scope model.TenantScope, limit int) ([]*model.Document, error) {
	where := map[string]interface{}{
		"_custom_scope":   scopeWhere(scope),
		"_custom_missing": builder.Custom("embedding IS NULL"),
		"_orderby":        "created_at desc, id asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, uint(limit)}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) CountEmbeddings(ctx context.Context, scope model.TenantScope) (store.EmbeddingCounts, error) {
	where := map[string]interface{}{
		"_custom_scope": scopeWhere(scope),
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"COUNT(*) AS total", "COUNT(embedding) AS with_embedding"})
	if err != nil {
		return store.EmbeddingCounts{}, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var counts store.EmbeddingCounts
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&counts.Total, &counts.WithEmbedding); err != nil {
		return store.EmbeddingCounts{}, err
	}
	return counts, nil
}

func (r *DocumentRepo) ListTenants(ctx context.Context) ([]string, error) {
	where := map[string]interface{}{
		"_groupby": "organization_id",
		"_orderby": "organization_id asc",
	}
	sqlStr, args, err := builder.BuildSelect("document_claims", where, []string{"organization_id"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tenants []string
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, err
		}
		tenants = append(tenants, org)
	}
	return tenants, rows.Err()
}
