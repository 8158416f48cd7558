package repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/docsearch/internal/filter"
	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/store"
)

func ptr[T any](v T) *T {
	return &v
}

func TestLexicalQuerySkipsScoreJoinWithoutScoreFilters(t *testing.T) {
	sqlStr, args := buildLexicalQuery(model.GlobalScope(), store.LexicalQuery{
		Text:    "genomics",
		Filters: filter.Compile(model.SearchFilters{Sources: []string{"arxiv"}}),
		Limit:   20,
	})
	require.NotContains(t, sqlStr, "latest_scores")
	require.Contains(t, sqlStr, "d.organization_id IS NULL")
	require.Contains(t, sqlStr, "similarity(d.title, $1)")
	require.Contains(t, sqlStr, "COALESCE(similarity(d.abstract, $2), 0)")
	require.Contains(t, sqlStr, "(d.source = ANY($3))")
	require.Contains(t, sqlStr, "title_sim > 0.1::real OR abstract_sim > 0.1::real")
	require.Contains(t, sqlStr, "ORDER BY score DESC, id ASC LIMIT $4 OFFSET $5")
	require.NotContains(t, sqlStr, "?")
	require.Len(t, args, 5)
	require.Equal(t, 20, args[3])
	require.Equal(t, 0, args[4])
}

func TestLexicalQueryJoinsLatestScoresForTenant(t *testing.T) {
	scope := model.OrganizationScope("org-a")
	q := store.LexicalQuery{
		Text:    "genomics",
		Filters: filter.Compile(model.SearchFilters{MinScore: ptr(5.0)}),
		Limit:   10,
		Offset:  20,
	}
	sqlStr, args := buildLexicalQuery(scope, q)
	require.True(t, strings.HasPrefix(sqlStr, "SELECT id, organization_id"))
	require.Contains(t, sqlStr, "WITH latest_scores AS (SELECT DISTINCT ON (document_id) document_id, overall_score FROM score_summaries WHERE organization_id = $1 ORDER BY document_id, created_at DESC, id DESC)")
	require.Contains(t, sqlStr, "LEFT JOIN latest_scores s ON s.document_id = d.id")
	require.Contains(t, sqlStr, "d.id IN (SELECT document_id FROM document_claims WHERE organization_id = $4)")
	require.Contains(t, sqlStr, "(s.overall_score >= $5)")
	require.Contains(t, sqlStr, "LIMIT $6 OFFSET $7")
	require.Equal(t, []interface{}{"org-a", "genomics", "genomics", "org-a", 5.0, 10, 20}, args)

	countSQL, countArgs := buildLexicalCount(scope, q)
	require.True(t, strings.HasPrefix(countSQL, "SELECT COUNT(*) FROM ("))
	require.NotContains(t, countSQL, "LIMIT")
	require.Equal(t, []interface{}{"org-a", "genomics", "genomics", "org-a", 5.0}, countArgs)
}

func TestNeighborQueryShape(t *testing.T) {
	q := store.VectorQuery{
		Filters:     filter.Compile(model.SearchFilters{}, filter.RequireEmbedding()),
		ExcludeID:   "doc-1",
		MaxDistance: ptr(0.3),
		Limit:       5,
	}
	sqlStr, args := buildNeighborQuery(model.GlobalScope(), q, "vec")
	require.Contains(t, sqlStr, "(d.embedding <=> $1)::float8 AS distance")
	require.Contains(t, sqlStr, "(d.embedding IS NOT NULL)")
	require.Contains(t, sqlStr, "(d.id <> $2)")
	require.Contains(t, sqlStr, "WHERE distance <= $3 ORDER BY distance ASC, id ASC LIMIT $4 OFFSET $5")
	require.Equal(t, []interface{}{"vec", "doc-1", 0.3, 5, 0}, args)

	countSQL, countArgs := buildNeighborCount(model.GlobalScope(), q, "vec")
	require.Contains(t, countSQL, "WHERE distance <= $3")
	require.Equal(t, []interface{}{"vec", "doc-1", 0.3}, countArgs)
}

func TestNeighborQueryWithoutLimit(t *testing.T) {
	sqlStr, args := buildNeighborQuery(model.GlobalScope(), store.VectorQuery{Filters: filter.Compile(model.SearchFilters{})}, "vec")
	require.NotContains(t, sqlStr, "LIMIT")
	require.NotContains(t, sqlStr, "distance <=")
	require.Equal(t, []interface{}{"vec"}, args)
}
