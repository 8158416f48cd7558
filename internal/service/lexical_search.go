package service

import (
	"context"

	"github.com/xxxsen/docsearch/internal/filter"
	"github.com/xxxsen/docsearch/internal/lexical"
	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/similarity"
	"github.com/xxxsen/docsearch/internal/store"
)

// lexicalSearch returns one page of trigram-ranked documents plus the size
// of the eligible set.
func (s *SearchService) lexicalSearch(ctx context.Context, scope model.TenantScope, req *model.SearchRequest, limit, offset int) ([]model.RankedResult, int, error) {
	hits, total, err := s.docs.LexicalSearch(ctx, scope, store.LexicalQuery{
		Text:    req.Query,
		Filters: filter.Compile(req.Filters),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, 0, err
	}
	items := make([]model.RankedResult, 0, len(hits))
	for _, hit := range hits {
		score := similarity.Round4(hit.Score)
		item := model.RankedResult{
			DocumentID:   hit.Document.ID,
			LexicalScore: &score,
		}
		if req.IncludeHighlights {
			item.Highlights = lexical.Highlights(hit.Document, req.Query)
		}
		items = append(items, item)
	}
	return items, total, nil
}
