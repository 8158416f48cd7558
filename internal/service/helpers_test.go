package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docsearch/internal/memstore"
	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/store"
	"github.com/xxxsen/docsearch/internal/testutil"
)

func ptr[T any](v T) *T {
	return &v
}

// stubEmbedder returns vec for every text unless a failure is registered
// for a substring of the text.
type stubEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	fail  map[string]error
	calls int
	tasks []string
}

func (e *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.tasks = append(e.tasks, taskType)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	for key, err := range e.fail {
		if strings.Contains(text, key) {
			return nil, err
		}
	}
	return append([]float32(nil), e.vec...), nil
}

func (e *stubEmbedder) ModelName() string {
	return "stub:test"
}

// blockingEmbedder waits for cancellation.
type blockingEmbedder struct {
	started chan struct{}
}

func (e *blockingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	close(e.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (e *blockingEmbedder) ModelName() string {
	return "stub:blocking"
}

func newGenomicsStore(t *testing.T) *memstore.Store {
	s := memstore.New()
	for _, doc := range testutil.GenomicsCorpus() {
		require.NoError(t, s.PutDocument(doc))
	}
	return s
}

func resultIDs(items []model.RankedResult) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.DocumentID)
	}
	return out
}

// recordingStore counts embedding commits and can fail selected ones.
type recordingStore struct {
	store.DocumentStore
	mu            sync.Mutex
	commits       []int
	failCommit    map[int]error
	ignoreExclude bool
}

func (s *recordingStore) SaveEmbeddings(ctx context.Context, updates []store.EmbeddingUpdate) error {
	s.mu.Lock()
	s.commits = append(s.commits, len(updates))
	n := len(s.commits)
	s.mu.Unlock()
	if err, ok := s.failCommit[n]; ok {
		return err
	}
	return s.DocumentStore.SaveEmbeddings(ctx, updates)
}

func (s *recordingStore) NearestNeighbors(ctx context.Context, scope model.TenantScope, q store.VectorQuery) ([]store.Neighbor, int, error) {
	if s.ignoreExclude {
		q.ExcludeID = ""
	}
	return s.DocumentStore.NearestNeighbors(ctx, scope, q)
}
