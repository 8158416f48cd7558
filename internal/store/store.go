// Package store declares the document store contract shared by the Postgres
// repository and the in-process store.
package store

import (
	"context"

	"github.com/xxxsen/docsearch/internal/filter"
	"github.com/xxxsen/docsearch/internal/model"
)

type LexicalQuery struct {
	Text    string
	Filters filter.Set
	Limit   int
	Offset  int
}

type LexicalHit struct {
	Document           *model.Document
	TitleSimilarity    float64
	AbstractSimilarity float64
	Score              float64
}

type VectorQuery struct {
	Vector    []float32
	Filters   filter.Set
	ExcludeID string
	// MaxDistance drops neighbors farther than this cosine distance.
	MaxDistance *float64
	Limit       int
	Offset      int
}

type Neighbor struct {
	DocumentID string
	Distance   float64
}

type EmbeddingUpdate struct {
	DocumentID string
	Embedding  []float32
}

type EmbeddingCounts struct {
	Total         int
	WithEmbedding int
}

// DocumentStore reads documents within a tenant scope and writes embeddings.
// Ranked reads return one page plus the total size of the matching set;
// ordering ties are always broken by document id ascending.
type DocumentStore interface {
	// GetDocument returns appErr.ErrNotFound when id is not visible in scope.
	GetDocument(ctx context.Context, scope model.TenantScope, id string) (*model.Document, error)
	LexicalSearch(ctx context.Context, scope model.TenantScope, q LexicalQuery) ([]LexicalHit, int, error)
	NearestNeighbors(ctx context.Context, scope model.TenantScope, q VectorQuery) ([]Neighbor, int, error)
	// UpsertEmbedding returns appErr.ErrNotFound for unknown ids.
	UpsertEmbedding(ctx context.Context, id string, embedding []float32) error
	// ListMissingEmbeddings lists documents without an embedding, newest
	// first. limit <= 0 means no limit.
	ListMissingEmbeddings(ctx context.Context, scope model.TenantScope, limit int) ([]*model.Document, error)
	// SaveEmbeddings writes all updates in one transaction.
	SaveEmbeddings(ctx context.Context, updates []EmbeddingUpdate) error
	CountEmbeddings(ctx context.Context, scope model.TenantScope) (EmbeddingCounts, error)
	// ListTenants returns every organization that has claimed a document.
	ListTenants(ctx context.Context) ([]string, error)
}

type SearchRecorder interface {
	RecordSearch(ctx context.Context, ev *model.SearchEvent) error
}
