package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/pkg/errcode"
	"github.com/xxxsen/docsearch/internal/testutil"
)

func TestSimilarHandler(t *testing.T) {
	router, s := setupRouter(t, fixedEmbedder{vec: testutil.GenomicsQueryVector()})
	tok := token(t, "user-1", "")

	env := doRequest(t, router, http.MethodGet, "/api/v1/documents/doc-a/similar?limit=5", tok, nil)
	require.Equal(t, 0, env.Code)
	var resp model.SimilarResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Equal(t, "doc-a", resp.ReferenceID)
	require.Equal(t, 2, resp.TotalFound)
	require.Equal(t, "doc-b", resp.Items[0].DocumentID)

	env = doRequest(t, router, http.MethodGet, "/api/v1/documents/missing/similar", tok, nil)
	require.Equal(t, errcode.ErrNotFound, env.Code)

	env = doRequest(t, router, http.MethodGet, "/api/v1/documents/doc-a/similar?min_similarity=2", tok, nil)
	require.Equal(t, errcode.ErrInvalid, env.Code)

	require.NoError(t, s.PutDocument(testutil.Doc("doc-new", "fresh", 9)))
	env = doRequest(t, router, http.MethodGet, "/api/v1/documents/doc-new/similar", tok, nil)
	require.Equal(t, 0, env.Code)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Empty(t, resp.Items)
	require.Equal(t, 0, resp.TotalFound)
}

func TestBackfillAndStatsHandlers(t *testing.T) {
	router, s := setupRouter(t, fixedEmbedder{vec: testutil.Vector(0, 0, 1)})
	tok := token(t, "user-1", "")
	require.NoError(t, s.PutDocument(testutil.Doc("doc-new", "fresh", 9)))
	require.NoError(t, s.PutDocument(testutil.Doc("doc-newer", "fresher", 10)))

	env := doRequest(t, router, http.MethodGet, "/api/v1/embeddings/stats", tok, nil)
	require.Equal(t, 0, env.Code)
	var stats model.EmbeddingStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, 5, stats.Total)
	require.Equal(t, 60.0, stats.CoveragePercent)

	env = doRequest(t, router, http.MethodPost, "/api/v1/embeddings/backfill", tok, map[string]interface{}{"batch_size": -1})
	require.Equal(t, errcode.ErrInvalid, env.Code)

	env = doRequest(t, router, http.MethodPost, "/api/v1/embeddings/backfill", tok, map[string]interface{}{"batch_size": 1, "max_docs": 1})
	require.Equal(t, 0, env.Code)
	var res model.BackfillResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 1, res.Succeeded)

	doc, err := s.GetDocument(t.Context(), model.GlobalScope(), "doc-newer")
	require.NoError(t, err)
	require.True(t, doc.HasEmbedding)
}

func TestUpsertEmbeddingHandler(t *testing.T) {
	router, s := setupRouter(t, fixedEmbedder{vec: testutil.Vector(0, 0, 1)})
	tok := token(t, "user-1", "")
	require.NoError(t, s.PutDocument(testutil.Doc("doc-new", "fresh", 9)))

	env := doRequest(t, router, http.MethodPut, "/api/v1/documents/doc-new/embedding", tok,
		map[string]interface{}{"embedding": []float32{1, 2}})
	require.Equal(t, errcode.ErrDimensionMismatch, env.Code)

	env = doRequest(t, router, http.MethodPut, "/api/v1/documents/doc-new/embedding", tok,
		map[string]interface{}{"embedding": testutil.Vector(1)})
	require.Equal(t, 0, env.Code)

	env = doRequest(t, router, http.MethodPost, "/api/v1/documents/doc-c/embedding/refresh", tok, nil)
	require.Equal(t, 0, env.Code)
	doc, err := s.GetDocument(t.Context(), model.GlobalScope(), "doc-c")
	require.NoError(t, err)
	require.Equal(t, testutil.Vector(0, 0, 1), doc.Embedding)

	env = doRequest(t, router, http.MethodPost, "/api/v1/documents/missing/embedding/refresh", tok, nil)
	require.Equal(t, errcode.ErrNotFound, env.Code)
}
