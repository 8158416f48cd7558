package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docsearch/internal/ai"
	"github.com/xxxsen/docsearch/internal/filter"
	"github.com/xxxsen/docsearch/internal/metrics"
	"github.com/xxxsen/docsearch/internal/model"
	appErr "github.com/xxxsen/docsearch/internal/pkg/errors"
	"github.com/xxxsen/docsearch/internal/pkg/mdtext"
	"github.com/xxxsen/docsearch/internal/similarity"
	"github.com/xxxsen/docsearch/internal/store"
)

const (
	DefaultBackfillBatchSize = 50
	DefaultSimilarLimit      = 10
	defaultPoolSize          = 4
	maxBackfillErrors        = 10
	maxBackfillErrorChars    = 100
)

type EmbeddingService struct {
	docs     store.DocumentStore
	embedder ai.IEmbedder
	poolSize int
}

func NewEmbeddingService(docs store.DocumentStore, embedder ai.IEmbedder, poolSize int) *EmbeddingService {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	return &EmbeddingService{docs: docs, embedder: embedder, poolSize: poolSize}
}

// documentText is what gets embedded for a document: plain title and
// abstract separated by a blank line.
func documentText(doc *model.Document) string {
	title := mdtext.Plain(doc.Title)
	abstract := mdtext.Plain(doc.Abstract)
	if abstract == "" {
		return title
	}
	return title + "\n\n" + abstract
}

// UpsertEmbedding stores a caller supplied vector for a document visible in
// scope.
func (s *EmbeddingService) UpsertEmbedding(ctx context.Context, scope model.TenantScope, docID string, vec []float32) error {
	if err := similarity.CheckDimension(vec); err != nil {
		return err
	}
	if _, err := s.docs.GetDocument(ctx, scope, docID); err != nil {
		return err
	}
	return s.docs.UpsertEmbedding(ctx, docID, vec)
}

// RefreshEmbedding embeds one document now. Provider failures are returned.
func (s *EmbeddingService) RefreshEmbedding(ctx context.Context, scope model.TenantScope, docID string) error {
	doc, err := s.docs.GetDocument(ctx, scope, docID)
	if err != nil {
		return err
	}
	vec, err := embedText(ctx, s.embedder, documentText(doc), ai.TaskTypeRetrievalDocument)
	if err != nil {
		return err
	}
	return s.docs.UpsertEmbedding(ctx, docID, vec)
}

// backfillAccumulator collects per-item outcomes. It never stops on a
// failure; only the first few messages are kept.
type backfillAccumulator struct {
	succeeded []string
	failed    []string
	errors    []string
}

func (a *backfillAccumulator) ok(ids ...string) {
	a.succeeded = append(a.succeeded, ids...)
}

func (a *backfillAccumulator) fail(id string, err error) {
	a.failed = append(a.failed, id)
	a.note(fmt.Sprintf("%s: %v", id, err))
}

func (a *backfillAccumulator) note(msg string) {
	if len(a.errors) >= maxBackfillErrors {
		return
	}
	a.errors = append(a.errors, truncateRunes(msg, maxBackfillErrorChars))
}

func (a *backfillAccumulator) result() *model.BackfillResult {
	errs := a.errors
	if errs == nil {
		errs = []string{}
	}
	return &model.BackfillResult{
		Processed: len(a.succeeded) + len(a.failed),
		Succeeded: len(a.succeeded),
		Failed:    len(a.failed),
		Errors:    errs,
	}
}

type embedOutcome struct {
	vec []float32
	err error
}

// Backfill embeds documents in scope that have no embedding, newest first.
// Each chunk of batchSize documents is embedded on the worker pool and its
// successes are committed in one transaction. Item failures are counted and
// processing continues; a failed commit counts the whole chunk as failed and
// earlier commits stay. A nil maxDocs processes everything.
func (s *EmbeddingService) Backfill(ctx context.Context, scope model.TenantScope, batchSize int, maxDocs *int) (*model.BackfillResult, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive: %w", appErr.ErrInvalid)
	}
	if maxDocs != nil && *maxDocs < 0 {
		return nil, fmt.Errorf("max docs must not be negative: %w", appErr.ErrInvalid)
	}
	acc := &backfillAccumulator{}
	if maxDocs != nil && *maxDocs == 0 {
		return acc.result(), nil
	}
	limit := 0
	if maxDocs != nil {
		limit = *maxDocs
	}
	logger := logutil.GetLogger(ctx).With(zap.String("scope", scope.String()))
	docs, err := s.docs.ListMissingEmbeddings(ctx, scope, limit)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return acc.result(), nil
	}
	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	for start := 0; start < len(docs); start += batchSize {
		if err := ctx.Err(); err != nil {
			return acc.result(), err
		}
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		s.backfillChunk(ctx, pool, docs[start:end], acc)
	}
	res := acc.result()
	metrics.BackfillDocumentsTotal.WithLabelValues("succeeded").Add(float64(res.Succeeded))
	metrics.BackfillDocumentsTotal.WithLabelValues("failed").Add(float64(res.Failed))
	logger.Info("backfill finished",
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *EmbeddingService) backfillChunk(ctx context.Context, pool *ants.Pool, chunk []*model.Document, acc *backfillAccumulator) {
	logger := logutil.GetLogger(ctx)
	outcomes := make([]embedOutcome, len(chunk))
	var wg sync.WaitGroup
	for i, doc := range chunk {
		i, doc := i, doc
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			vec, err := embedText(ctx, s.embedder, documentText(doc), ai.TaskTypeRetrievalDocument)
			outcomes[i] = embedOutcome{vec: vec, err: err}
		}); err != nil {
			wg.Done()
			outcomes[i] = embedOutcome{err: err}
		}
	}
	wg.Wait()

	updates := make([]store.EmbeddingUpdate, 0, len(chunk))
	for i, doc := range chunk {
		if err := outcomes[i].err; err != nil {
			logger.Warn("embed document failed", zap.String("document_id", doc.ID), zap.Error(err))
			acc.fail(doc.ID, err)
			continue
		}
		updates = append(updates, store.EmbeddingUpdate{DocumentID: doc.ID, Embedding: outcomes[i].vec})
	}
	if len(updates) == 0 {
		return
	}
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.DocumentID)
	}
	if err := s.docs.SaveEmbeddings(ctx, updates); err != nil {
		logger.Error("commit embedding batch failed", zap.Int("size", len(updates)), zap.Error(err))
		acc.failed = append(acc.failed, ids...)
		acc.note(fmt.Sprintf("commit %s: %v", strings.Join(ids, ","), err))
		return
	}
	acc.ok(ids...)
}

// FindSimilar ranks documents by closeness to a reference document. A
// reference without an embedding yields an empty result.
func (s *EmbeddingService) FindSimilar(ctx context.Context, scope model.TenantScope, docID string, limit int, minSimilarity *float64) (*model.SimilarResponse, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	if limit > model.MaxPageSize {
		limit = model.MaxPageSize
	}
	resp := &model.SimilarResponse{ReferenceID: docID, Items: []model.SimilarDocument{}}
	ref, err := s.docs.GetDocument(ctx, scope, docID)
	if err != nil {
		return nil, err
	}
	if ref.Embedding == nil {
		return resp, nil
	}
	q := store.VectorQuery{
		Vector:    ref.Embedding,
		Filters:   filter.Compile(model.SearchFilters{}, filter.RequireEmbedding()),
		ExcludeID: docID,
		// one spare slot in case the store returns the reference anyway
		Limit: limit + 1,
	}
	if minSimilarity != nil {
		maxDistance := similarity.MaxDistance(*minSimilarity)
		q.MaxDistance = &maxDistance
	}
	neighbors, total, err := s.docs.NearestNeighbors(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	for _, n := range neighbors {
		if n.DocumentID == docID {
			total--
			continue
		}
		if len(resp.Items) == limit {
			continue
		}
		resp.Items = append(resp.Items, model.SimilarDocument{
			DocumentID: n.DocumentID,
			Similarity: similarity.Round4(similarity.Similarity(n.Distance)),
		})
	}
	resp.TotalFound = total
	return resp, nil
}

func (s *EmbeddingService) Stats(ctx context.Context, scope model.TenantScope) (*model.EmbeddingStats, error) {
	counts, err := s.docs.CountEmbeddings(ctx, scope)
	if err != nil {
		return nil, err
	}
	stats := &model.EmbeddingStats{
		Total:            counts.Total,
		WithEmbedding:    counts.WithEmbedding,
		WithoutEmbedding: counts.Total - counts.WithEmbedding,
	}
	if counts.Total > 0 {
		pct := float64(counts.WithEmbedding) / float64(counts.Total) * 100
		stats.CoveragePercent = math.Round(pct*100) / 100
	}
	return stats, nil
}
