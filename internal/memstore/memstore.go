// Package memstore is an in-process DocumentStore. It evaluates the same
// predicates, trigram scoring and cosine distance the Postgres repository
// pushes down to SQL, so both stores rank identically.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/docsearch/internal/filter"
	"github.com/xxxsen/docsearch/internal/lexical"
	"github.com/xxxsen/docsearch/internal/model"
	appErr "github.com/xxxsen/docsearch/internal/pkg/errors"
	"github.com/xxxsen/docsearch/internal/similarity"
	"github.com/xxxsen/docsearch/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	docs      map[string]*model.Document
	claims    map[string]map[string]struct{}
	summaries []*model.ScoreSummary
	events    []*model.SearchEvent
	nextSumID int64
}

var _ store.DocumentStore = (*Store)(nil)
var _ store.SearchRecorder = (*Store)(nil)

func New() *Store {
	return &Store{
		docs:   make(map[string]*model.Document),
		claims: make(map[string]map[string]struct{}),
	}
}

func cloneDoc(doc *model.Document) *model.Document {
	cp := *doc
	if doc.Keywords != nil {
		cp.Keywords = append([]string(nil), doc.Keywords...)
	}
	if doc.Embedding != nil {
		cp.Embedding = append([]float32(nil), doc.Embedding...)
	}
	return &cp
}

// PutDocument inserts or replaces a document. HasEmbedding is derived from
// the embedding itself.
func (s *Store) PutDocument(doc *model.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required: %w", appErr.ErrInvalid)
	}
	if doc.Embedding != nil {
		if err := similarity.CheckDimension(doc.Embedding); err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
	}
	cp := cloneDoc(doc)
	cp.HasEmbedding = cp.Embedding != nil
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[cp.ID] = cp
	return nil
}

// Claim attaches a document to an organization's library.
func (s *Store) Claim(orgID, docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.claims[orgID]
	if !ok {
		set = make(map[string]struct{})
		s.claims[orgID] = set
	}
	set[docID] = struct{}{}
}

func (s *Store) AddScoreSummary(sum *model.ScoreSummary) {
	cp := *sum
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp.ID == 0 {
		s.nextSumID++
		cp.ID = s.nextSumID
	} else if cp.ID > s.nextSumID {
		s.nextSumID = cp.ID
	}
	s.summaries = append(s.summaries, &cp)
}

func (s *Store) Events() []*model.SearchEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.SearchEvent, 0, len(s.events))
	for _, ev := range s.events {
		cp := *ev
		out = append(out, &cp)
	}
	return out
}

func (s *Store) visible(scope model.TenantScope, doc *model.Document) bool {
	if scope.IsGlobal() {
		return doc.IsGlobal()
	}
	_, ok := s.claims[scope.OrganizationID][doc.ID]
	return ok
}

// latestScores derives the newest summary per document owned by scope.
func (s *Store) latestScores(scope model.TenantScope) map[string]*model.ScoreSummary {
	latest := make(map[string]*model.ScoreSummary)
	for _, sum := range s.summaries {
		if !scope.OwnsSummary(sum) {
			continue
		}
		if sum.NewerThan(latest[sum.DocumentID]) {
			latest[sum.DocumentID] = sum
		}
	}
	return latest
}

// candidates returns the documents in scope that satisfy every predicate.
func (s *Store) candidates(scope model.TenantScope, set filter.Set) []*model.Document {
	var scores map[string]*model.ScoreSummary
	if set.NeedsScores() {
		scores = s.latestScores(scope)
	}
	out := make([]*model.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if !s.visible(scope, doc) {
			continue
		}
		if !set.Match(filter.Candidate{Doc: doc, Score: scores[doc.ID]}) {
			continue
		}
		out = append(out, doc)
	}
	return out
}

func window(total, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}

func (s *Store) GetDocument(ctx context.Context, scope model.TenantScope, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok || !s.visible(scope, doc) {
		return nil, appErr.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *Store) LexicalSearch(ctx context.Context, scope model.TenantScope, q store.LexicalQuery) ([]store.LexicalHit, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hits := make([]store.LexicalHit, 0)
	for _, doc := range s.candidates(scope, q.Filters) {
		sc := lexical.Score(doc.Title, doc.Abstract, q.Text)
		if !sc.Eligible() {
			continue
		}
		hits = append(hits, store.LexicalHit{
			Document:           doc,
			TitleSimilarity:    sc.Title,
			AbstractSimilarity: sc.Abstract,
			Score:              sc.Combined,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
	start, end := window(len(hits), q.Limit, q.Offset)
	page := hits[start:end]
	for i := range page {
		page[i].Document = cloneDoc(page[i].Document)
	}
	return page, len(hits), nil
}

func (s *Store) NearestNeighbors(ctx context.Context, scope model.TenantScope, q store.VectorQuery) ([]store.Neighbor, int, error) {
	if err := similarity.CheckDimension(q.Vector); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	neighbors := make([]store.Neighbor, 0)
	for _, doc := range s.candidates(scope, q.Filters) {
		if doc.Embedding == nil || doc.ID == q.ExcludeID {
			continue
		}
		dist, err := similarity.CosineDistance(q.Vector, doc.Embedding)
		if err != nil {
			return nil, 0, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if q.MaxDistance != nil && dist > *q.MaxDistance {
			continue
		}
		neighbors = append(neighbors, store.Neighbor{DocumentID: doc.ID, Distance: dist})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].DocumentID < neighbors[j].DocumentID
	})
	start, end := window(len(neighbors), q.Limit, q.Offset)
	return neighbors[start:end], len(neighbors), nil
}

func (s *Store) UpsertEmbedding(ctx context.Context, id string, embedding []float32) error {
	return s.SaveEmbeddings(ctx, []store.EmbeddingUpdate{{DocumentID: id, Embedding: embedding}})
}

// SaveEmbeddings applies all updates or none.
func (s *Store) SaveEmbeddings(ctx context.Context, updates []store.EmbeddingUpdate) error {
	for _, u := range updates {
		if err := similarity.CheckDimension(u.Embedding); err != nil {
			return fmt.Errorf("document %s: %w", u.DocumentID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		if _, ok := s.docs[u.DocumentID]; !ok {
			return fmt.Errorf("document %s: %w", u.DocumentID, appErr.ErrNotFound)
		}
	}
	for _, u := range updates {
		doc := s.docs[u.DocumentID]
		doc.Embedding = append([]float32(nil), u.Embedding...)
		doc.HasEmbedding = true
	}
	return nil
}

func (s *Store) ListMissingEmbeddings(ctx context.Context, scope model.TenantScope, limit int) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Document, 0)
	for _, doc := range s.docs {
		if doc.Embedding != nil || !s.visible(scope, doc) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i] = cloneDoc(out[i])
	}
	return out, nil
}

func (s *Store) CountEmbeddings(ctx context.Context, scope model.TenantScope) (store.EmbeddingCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts store.EmbeddingCounts
	for _, doc := range s.docs {
		if !s.visible(scope, doc) {
			continue
		}
		counts.Total++
		if doc.HasEmbedding {
			counts.WithEmbedding++
		}
	}
	return counts, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.claims))
	for org, docs := range s.claims {
		if len(docs) == 0 {
			continue
		}
		out = append(out, org)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) RecordSearch(ctx context.Context, ev *model.SearchEvent) error {
	cp := *ev
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, &cp)
	return nil
}
