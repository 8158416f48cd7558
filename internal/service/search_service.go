package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/docsearch/internal/ai"
	"github.com/xxxsen/docsearch/internal/metrics"
	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/store"
)

const defaultAnalyticsTimeout = 5 * time.Second

type SearchService struct {
	docs             store.DocumentStore
	embedder         ai.IEmbedder
	recorder         store.SearchRecorder
	analyticsTimeout time.Duration
}

// NewSearchService builds the search engine. A nil recorder disables
// analytics; a nil embedder makes semantic and hybrid searches fail with
// ErrEmbeddingProvider.
func NewSearchService(docs store.DocumentStore, embedder ai.IEmbedder, recorder store.SearchRecorder) *SearchService {
	return &SearchService{
		docs:             docs,
		embedder:         embedder,
		recorder:         recorder,
		analyticsTimeout: defaultAnalyticsTimeout,
	}
}

// Search runs one validated request in scope. actingUser is only used for
// analytics; an empty user records nothing.
func (s *SearchService) Search(ctx context.Context, scope model.TenantScope, req *model.SearchRequest, actingUser string) (*model.SearchResponse, error) {
	start := time.Now()
	logger := logutil.GetLogger(ctx).With(
		zap.String("scope", scope.String()),
		zap.String("mode", string(req.Mode)),
	)

	items, total, err := s.run(ctx, scope, req)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	elapsed := time.Since(start)
	metrics.SearchDuration.WithLabelValues(string(req.Mode)).Observe(elapsed.Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(req.Mode), "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("search failed", zap.Error(err))
		return nil, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(req.Mode), "ok").Inc()

	resp := &model.SearchResponse{
		Items:        items,
		Total:        total,
		Page:         req.Page,
		PageSize:     req.PageSize,
		Pages:        model.PageCount(total, req.PageSize),
		Query:        req.Query,
		Mode:         req.Mode,
		SearchTimeMs: elapsed.Milliseconds(),
	}
	s.recordAsync(ctx, scope, req, actingUser, resp)
	return resp, nil
}

func (s *SearchService) run(ctx context.Context, scope model.TenantScope, req *model.SearchRequest) ([]model.RankedResult, int, error) {
	offset := model.PageOffset(req.Page, req.PageSize)
	switch req.Mode {
	case model.SearchModeLexical:
		return s.lexicalSearch(ctx, scope, req, req.PageSize, offset)
	case model.SearchModeSemantic:
		return s.semanticSearch(ctx, scope, req, req.PageSize, offset)
	default:
		return s.hybridSearch(ctx, scope, req)
	}
}

func (s *SearchService) hybridSearch(ctx context.Context, scope model.TenantScope, req *model.SearchRequest) ([]model.RankedResult, int, error) {
	limit := fetchLimit(req.PageSize)
	var lexical, semantic []model.RankedResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, _, err := s.lexicalSearch(gctx, scope, req, limit, 0)
		lexical = items
		return err
	})
	g.Go(func() error {
		items, _, err := s.semanticSearch(gctx, scope, req, limit, 0)
		semantic = items
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	fused := fuseRRF(lexical, semantic, req.Weight(), limit)
	return paginate(fused, req.Page, req.PageSize), len(fused), nil
}
