package repo

import (
	"fmt"
	"strings"

	"github.com/xxxsen/docsearch/internal/filter"
	"github.com/xxxsen/docsearch/internal/lexical"
	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/pkg/dbutil"
	"github.com/xxxsen/docsearch/internal/store"
)

// documentSelect lists document columns under the d alias; outerDocumentSelect
// reads the same columns back from a derived table.
const (
	documentSelect      = "d.id, d.organization_id, d.title, COALESCE(d.abstract, '') AS abstract, d.source, COALESCE(d.journal, '') AS journal, d.publication_date, d.keywords, d.citation_count, d.has_embedding, d.created_at"
	outerDocumentSelect = "id, organization_id, title, abstract, source, journal, publication_date, keywords, citation_count, has_embedding, created_at"
)

type sqlBuf struct {
	sb   strings.Builder
	args []interface{}
}

func (b *sqlBuf) write(s string, args ...interface{}) {
	b.sb.WriteString(s)
	b.args = append(b.args, args...)
}

func (b *sqlBuf) finalize() (string, []interface{}) {
	return dbutil.Finalize(b.sb.String(), b.args)
}

// documentScope restricts d to the caller's scope: documents claimed by the
// organization, or the global catalog.
func documentScope(scope model.TenantScope) (string, []interface{}) {
	if scope.IsGlobal() {
		return "d.organization_id IS NULL", nil
	}
	return "d.id IN (SELECT document_id FROM document_claims WHERE organization_id = ?)", []interface{}{scope.OrganizationID}
}

func summaryScope(scope model.TenantScope) (string, []interface{}) {
	if scope.IsGlobal() {
		return "organization_id IS NULL", nil
	}
	return "organization_id = ?", []interface{}{scope.OrganizationID}
}

// writeCandidates writes a SELECT over the scoped, filtered documents. The
// latest score relation is only derived when a predicate reads it.
func writeCandidates(b *sqlBuf, scope model.TenantScope, set filter.Set, selectList string, selectArgs []interface{}) {
	if set.NeedsScores() {
		cond, args := summaryScope(scope)
		b.write("WITH latest_scores AS (SELECT DISTINCT ON (document_id) document_id, overall_score FROM score_summaries WHERE "+cond+
			" ORDER BY document_id, created_at DESC, id DESC) ", args...)
	}
	b.write("SELECT "+selectList+" FROM documents d", selectArgs...)
	if set.NeedsScores() {
		b.write(" LEFT JOIN latest_scores s ON s.document_id = d.id")
	}
	cond, args := documentScope(scope)
	b.write(" WHERE "+cond, args...)
	if where, wargs := set.Where(); where != "" {
		b.write(" AND "+where, wargs...)
	}
}

func writeLimit(b *sqlBuf, limit, offset int) {
	if limit <= 0 {
		if offset > 0 {
			b.write(" OFFSET ?", offset)
		}
		return
	}
	b.write(" LIMIT ?,?", offset, limit)
}

var eligibleCondition = fmt.Sprintf("title_sim > %g::real OR abstract_sim > %g::real",
	lexical.EligibilityThreshold, lexical.EligibilityThreshold)

func buildLexicalQuery(scope model.TenantScope, q store.LexicalQuery) (string, []interface{}) {
	b := &sqlBuf{}
	b.write(fmt.Sprintf("SELECT %s, title_sim, abstract_sim, (%g * title_sim + %g * abstract_sim)::float8 AS score FROM (",
		outerDocumentSelect, lexical.TitleWeight, lexical.AbstractWeight))
	writeLexicalCandidates(b, scope, q)
	b.write(") scored WHERE " + eligibleCondition + " ORDER BY score DESC, id ASC")
	writeLimit(b, q.Limit, q.Offset)
	return b.finalize()
}

func buildLexicalCount(scope model.TenantScope, q store.LexicalQuery) (string, []interface{}) {
	b := &sqlBuf{}
	b.write("SELECT COUNT(*) FROM (")
	writeLexicalCandidates(b, scope, q)
	b.write(") scored WHERE " + eligibleCondition)
	return b.finalize()
}

func writeLexicalCandidates(b *sqlBuf, scope model.TenantScope, q store.LexicalQuery) {
	writeCandidates(b, scope, q.Filters,
		documentSelect+", similarity(d.title, ?) AS title_sim, COALESCE(similarity(d.abstract, ?), 0) AS abstract_sim",
		[]interface{}{q.Text, q.Text})
}

func buildNeighborQuery(scope model.TenantScope, q store.VectorQuery, vector interface{}) (string, []interface{}) {
	b := &sqlBuf{}
	b.write("SELECT id, distance FROM (")
	writeNeighborCandidates(b, scope, q, vector)
	b.write(") nn")
	if q.MaxDistance != nil {
		b.write(" WHERE distance <= ?", *q.MaxDistance)
	}
	b.write(" ORDER BY distance ASC, id ASC")
	writeLimit(b, q.Limit, q.Offset)
	return b.finalize()
}

func buildNeighborCount(scope model.TenantScope, q store.VectorQuery, vector interface{}) (string, []interface{}) {
	b := &sqlBuf{}
	b.write("SELECT COUNT(*) FROM (")
	writeNeighborCandidates(b, scope, q, vector)
	b.write(") nn")
	if q.MaxDistance != nil {
		b.write(" WHERE distance <= ?", *q.MaxDistance)
	}
	return b.finalize()
}

func neighborFilters(q store.VectorQuery) filter.Set {
	set := q.Filters.With(filter.RequireEmbedding())
	if q.ExcludeID != "" {
		set = set.With(filter.ExcludeID(q.ExcludeID))
	}
	return set
}

func writeNeighborCandidates(b *sqlBuf, scope model.TenantScope, q store.VectorQuery, vector interface{}) {
	writeCandidates(b, scope, neighborFilters(q), "d.id, (d.embedding <=> ?)::float8 AS distance", []interface{}{vector})
}
