package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docsearch/internal/filter"
	"github.com/xxxsen/docsearch/internal/model"
	appErr "github.com/xxxsen/docsearch/internal/pkg/errors"
	"github.com/xxxsen/docsearch/internal/store"
	"github.com/xxxsen/docsearch/internal/testutil"
)

func insertDocument(t *testing.T, conn *sql.DB, doc *model.Document) {
	t.Helper()
	var embedding interface{}
	if doc.Embedding != nil {
		embedding = pgvector.NewVector(doc.Embedding)
	}
	var orgID interface{}
	if doc.OrganizationID != nil {
		orgID = *doc.OrganizationID
	}
	_, err := conn.Exec(`INSERT INTO documents (id, organization_id, title, abstract, source, keywords, embedding, has_embedding, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, COALESCE($6, '{}'::text[]), $7, $8, $9)`,
		doc.ID, orgID, doc.Title, doc.Abstract, doc.Source, pq.Array(doc.Keywords), embedding, doc.Embedding != nil, doc.CreatedAt)
	require.NoError(t, err)
}

func TestDocumentRepoLexicalAndNeighbors(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	r := NewDocumentRepo(conn)
	for _, doc := range testutil.GenomicsCorpus() {
		insertDocument(t, conn, doc)
	}

	hits, total, err := r.LexicalSearch(ctx, model.GlobalScope(), store.LexicalQuery{
		Text:    testutil.GenomicsQuery,
		Filters: filter.Compile(model.SearchFilters{}),
		Limit:   10,
	})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "doc-a", hits[0].Document.ID)
	require.Equal(t, "doc-b", hits[1].Document.ID)
	require.InDelta(t, 23.0/27.0, hits[0].TitleSimilarity, 1e-6)

	neighbors, total, err := r.NearestNeighbors(ctx, model.GlobalScope(), store.VectorQuery{
		Vector:  testutil.GenomicsQueryVector(),
		Filters: filter.Compile(model.SearchFilters{}, filter.RequireEmbedding()),
		Limit:   2,
	})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, neighbors, 2)
	require.Equal(t, "doc-c", neighbors[0].DocumentID)
	require.Equal(t, "doc-b", neighbors[1].DocumentID)

	_, _, err = r.NearestNeighbors(ctx, model.GlobalScope(), store.VectorQuery{Vector: []float32{1, 2}})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestDocumentRepoTenantScopeAndScores(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	r := NewDocumentRepo(conn)

	global := testutil.Doc("g1", "Genomics review", 1)
	private := testutil.Doc("p1", "Genomics atlas", 2)
	private.OrganizationID = testutil.StrPtr("org-a")
	insertDocument(t, conn, global)
	insertDocument(t, conn, private)
	_, err := conn.Exec(`INSERT INTO document_claims (organization_id, document_id) VALUES ('org-a', 'p1'), ('org-a', 'g1')`)
	require.NoError(t, err)
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = conn.Exec(`INSERT INTO score_summaries (id, document_id, organization_id, overall_score, created_at) VALUES
		(1, 'p1', 'org-a', 9, $1), (2, 'p1', 'org-a', 3, $1), (3, 'g1', 'org-a', 7, $1), (4, 'g1', NULL, 1, $1)`, at)
	require.NoError(t, err)

	_, err = r.GetDocument(ctx, model.GlobalScope(), "p1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	doc, err := r.GetDocument(ctx, model.OrganizationScope("org-a"), "p1")
	require.NoError(t, err)
	require.Equal(t, "org-a", *doc.OrganizationID)

	hits, total, err := r.LexicalSearch(ctx, model.OrganizationScope("org-a"), store.LexicalQuery{
		Text:    "genomics",
		Filters: filter.Compile(model.SearchFilters{MinScore: new(float64)}),
	})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, hits, 2)

	minScore := 5.0
	hits, total, err = r.LexicalSearch(ctx, model.OrganizationScope("org-a"), store.LexicalQuery{
		Text:    "genomics",
		Filters: filter.Compile(model.SearchFilters{MinScore: &minScore}),
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "g1", hits[0].Document.ID)

	tenants, err := r.ListTenants(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"org-a"}, tenants)
}

func TestDocumentRepoEmbeddingMaintenance(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	r := NewDocumentRepo(conn)
	insertDocument(t, conn, testutil.Doc("old", "old", 1))
	insertDocument(t, conn, testutil.Doc("new", "new", 2))

	missing, err := r.ListMissingEmbeddings(ctx, model.GlobalScope(), 0)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	require.Equal(t, "new", missing[0].ID)

	err = r.SaveEmbeddings(ctx, []store.EmbeddingUpdate{
		{DocumentID: "old", Embedding: testutil.Vector(1)},
		{DocumentID: "ghost", Embedding: testutil.Vector(1)},
	})
	require.ErrorIs(t, err, appErr.ErrNotFound)
	counts, err := r.CountEmbeddings(ctx, model.GlobalScope())
	require.NoError(t, err)
	require.Equal(t, store.EmbeddingCounts{Total: 2, WithEmbedding: 0}, counts)

	require.NoError(t, r.UpsertEmbedding(ctx, "old", testutil.Vector(1)))
	require.NoError(t, r.UpsertEmbedding(ctx, "old", testutil.Vector(1)))
	require.ErrorIs(t, r.UpsertEmbedding(ctx, "ghost", testutil.Vector(1)), appErr.ErrNotFound)
	require.ErrorIs(t, r.UpsertEmbedding(ctx, "old", []float32{1}), appErr.ErrDimensionMismatch)

	doc, err := r.GetDocument(ctx, model.GlobalScope(), "old")
	require.NoError(t, err)
	require.True(t, doc.HasEmbedding)
	require.Len(t, doc.Embedding, model.EmbeddingDimension)

	counts, err = r.CountEmbeddings(ctx, model.GlobalScope())
	require.NoError(t, err)
	require.Equal(t, store.EmbeddingCounts{Total: 2, WithEmbedding: 1}, counts)
}

func TestEmbeddingCacheAndSearchEvents(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cache := NewEmbeddingCacheRepo(conn)
	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{
		ModelName: "m", TaskType: "RETRIEVAL_QUERY", ContentHash: "h",
		Embedding: testutil.Vector(0.5), Ctime: 100,
	}))
	vec, ok, err := cache.Get(ctx, "m", "RETRIEVAL_QUERY", "h")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float32(0.5), vec[0])
	_, ok, err = cache.Get(ctx, "m", "RETRIEVAL_DOCUMENT", "h")
	require.NoError(t, err)
	require.False(t, ok)
	deleted, err := cache.DeleteBefore(ctx, 101)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	events := NewSearchEventRepo(conn)
	require.NoError(t, events.RecordSearch(ctx, &model.SearchEvent{
		UserID: "u1", Query: "genomics", Mode: model.SearchModeHybrid, ResultCount: 2, ElapsedMs: 12,
	}))
	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM search_events WHERE organization_id IS NULL").Scan(&count))
	require.Equal(t, 1, count)
}
