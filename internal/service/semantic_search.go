package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/docsearch/internal/ai"
	"github.com/xxxsen/docsearch/internal/filter"
	"github.com/xxxsen/docsearch/internal/model"
	appErr "github.com/xxxsen/docsearch/internal/pkg/errors"
	"github.com/xxxsen/docsearch/internal/similarity"
	"github.com/xxxsen/docsearch/internal/store"
)

// embedText calls the provider and checks the vector length. Provider
// failures are wrapped with ErrEmbeddingProvider; cancellation is returned
// as is.
func embedText(ctx context.Context, embedder ai.IEmbedder, text, taskType string) ([]float32, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", appErr.ErrEmbeddingProvider)
	}
	vec, err := embedder.Embed(ctx, text, taskType)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("embed %s: %w: %w", taskType, appErr.ErrEmbeddingProvider, err)
	}
	if err := similarity.CheckDimension(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (s *SearchService) semanticSearch(ctx context.Context, scope model.TenantScope, req *model.SearchRequest, limit, offset int) ([]model.RankedResult, int, error) {
	vec, err := embedText(ctx, s.embedder, req.Query, ai.TaskTypeRetrievalQuery)
	if err != nil {
		return nil, 0, err
	}
	q := store.VectorQuery{
		Vector:  vec,
		Filters: filter.Compile(req.Filters, filter.RequireEmbedding()),
		Limit:   limit,
		Offset:  offset,
	}
	if req.MinSimilarity != nil {
		maxDistance := similarity.MaxDistance(*req.MinSimilarity)
		q.MaxDistance = &maxDistance
	}
	neighbors, total, err := s.docs.NearestNeighbors(ctx, scope, q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]model.RankedResult, 0, len(neighbors))
	for _, n := range neighbors {
		score := similarity.Round4(similarity.Similarity(n.Distance))
		items = append(items, model.RankedResult{
			DocumentID:    n.DocumentID,
			SemanticScore: &score,
		})
	}
	return items, total, nil
}
