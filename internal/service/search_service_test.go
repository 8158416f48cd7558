package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docsearch/internal/ai"
	"github.com/xxxsen/docsearch/internal/model"
	appErr "github.com/xxxsen/docsearch/internal/pkg/errors"
	"github.com/xxxsen/docsearch/internal/testutil"
)

func newRequest(mode model.SearchMode) *model.SearchRequest {
	req := &model.SearchRequest{Query: testutil.GenomicsQuery, Mode: mode}
	req.Normalize()
	return req
}

func newGenomicsSearch(t *testing.T) *SearchService {
	return NewSearchService(newGenomicsStore(t), &stubEmbedder{vec: testutil.GenomicsQueryVector()}, nil)
}

func TestLexicalMode(t *testing.T) {
	svc := newGenomicsSearch(t)
	req := newRequest(model.SearchModeLexical)
	req.IncludeHighlights = true
	resp, err := svc.Search(context.Background(), model.GlobalScope(), req, "")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-a", "doc-b"}, resultIDs(resp.Items))
	require.Equal(t, 2, resp.Total)
	require.Equal(t, 1, resp.Pages)
	require.Equal(t, model.SearchModeLexical, resp.Mode)
	require.Equal(t, testutil.GenomicsQuery, resp.Query)
	require.NotNil(t, resp.Items[0].LexicalScore)
	require.Greater(t, *resp.Items[0].LexicalScore, *resp.Items[1].LexicalScore)
	require.Nil(t, resp.Items[0].SemanticScore)
	require.Nil(t, resp.Items[0].FusedScore)
	require.NotEmpty(t, resp.Items[0].Highlights)
	require.Equal(t, "title", resp.Items[0].Highlights[0].Field)
}

func TestSemanticMode(t *testing.T) {
	emb := &stubEmbedder{vec: testutil.GenomicsQueryVector()}
	svc := NewSearchService(newGenomicsStore(t), emb, nil)
	resp, err := svc.Search(context.Background(), model.GlobalScope(), newRequest(model.SearchModeSemantic), "")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-c", "doc-b", "doc-a"}, resultIDs(resp.Items))
	require.Equal(t, 3, resp.Total)
	require.InDelta(t, 0.9578, *resp.Items[0].SemanticScore, 0.0001)
	require.Nil(t, resp.Items[0].LexicalScore)
	require.Equal(t, []string{ai.TaskTypeRetrievalQuery}, emb.tasks)
}

func TestSemanticMinSimilarity(t *testing.T) {
	svc := newGenomicsSearch(t)
	req := newRequest(model.SearchModeSemantic)
	req.MinSimilarity = ptr(0.7)
	resp, err := svc.Search(context.Background(), model.GlobalScope(), req, "")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-c", "doc-b"}, resultIDs(resp.Items))
	require.Equal(t, 2, resp.Total)
}

func TestHybridMode(t *testing.T) {
	svc := newGenomicsSearch(t)
	resp, err := svc.Search(context.Background(), model.GlobalScope(), newRequest(model.SearchModeHybrid), "")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-a", "doc-b", "doc-c"}, resultIDs(resp.Items))
	require.Equal(t, 3, resp.Total)
	for _, it := range resp.Items {
		require.NotNil(t, it.FusedScore)
		require.NotNil(t, it.SemanticScore)
	}
	require.Nil(t, resp.Items[2].LexicalScore)
	require.InDelta(t, 0.5/61+0.5/63, *resp.Items[0].FusedScore, 1e-9)
}

func TestHybridWeightExtremes(t *testing.T) {
	svc := newGenomicsSearch(t)
	ctx := context.Background()

	lex, err := svc.Search(ctx, model.GlobalScope(), newRequest(model.SearchModeLexical), "")
	require.NoError(t, err)
	sem, err := svc.Search(ctx, model.GlobalScope(), newRequest(model.SearchModeSemantic), "")
	require.NoError(t, err)

	req := newRequest(model.SearchModeHybrid)
	req.SemanticWeight = ptr(0.0)
	zero, err := svc.Search(ctx, model.GlobalScope(), req, "")
	require.NoError(t, err)
	require.Equal(t, resultIDs(lex.Items), resultIDs(zero.Items)[:len(lex.Items)])

	req = newRequest(model.SearchModeHybrid)
	req.SemanticWeight = ptr(1.0)
	one, err := svc.Search(ctx, model.GlobalScope(), req, "")
	require.NoError(t, err)
	require.Equal(t, resultIDs(sem.Items), resultIDs(one.Items))
}

func TestHybridDeterministic(t *testing.T) {
	svc := newGenomicsSearch(t)
	first, err := svc.Search(context.Background(), model.GlobalScope(), newRequest(model.SearchModeHybrid), "")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := svc.Search(context.Background(), model.GlobalScope(), newRequest(model.SearchModeHybrid), "")
		require.NoError(t, err)
		require.Equal(t, resultIDs(first.Items), resultIDs(again.Items))
	}
}

func TestHybridPagination(t *testing.T) {
	svc := newGenomicsSearch(t)
	req := newRequest(model.SearchModeHybrid)
	req.PageSize = 2
	req.Page = 2
	resp, err := svc.Search(context.Background(), model.GlobalScope(), req, "")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-c"}, resultIDs(resp.Items))
	require.Equal(t, 3, resp.Total)
	require.Equal(t, 2, resp.Pages)

	req.Page = 5
	resp, err = svc.Search(context.Background(), model.GlobalScope(), req, "")
	require.NoError(t, err)
	require.Empty(t, resp.Items)
	require.NotNil(t, resp.Items)
	require.Equal(t, 3, resp.Total)
}

func TestLexicalPageBeyondEnd(t *testing.T) {
	svc := newGenomicsSearch(t)
	req := newRequest(model.SearchModeLexical)
	req.Page = 3
	resp, err := svc.Search(context.Background(), model.GlobalScope(), req, "")
	require.NoError(t, err)
	require.Empty(t, resp.Items)
	require.Equal(t, 2, resp.Total)
	require.Equal(t, 1, resp.Pages)
}

func TestEmptyResultPages(t *testing.T) {
	svc := newGenomicsSearch(t)
	req := newRequest(model.SearchModeLexical)
	req.Query = "zzzz"
	resp, err := svc.Search(context.Background(), model.GlobalScope(), req, "")
	require.NoError(t, err)
	require.Equal(t, 0, resp.Total)
	require.Equal(t, 0, resp.Pages)
}

func TestEmbeddingFailuresAreFatal(t *testing.T) {
	tests := []struct {
		name    string
		emb     ai.IEmbedder
		wantErr error
	}{
		{"provider", &stubEmbedder{err: errors.New("quota exceeded")}, appErr.ErrEmbeddingProvider},
		{"dimension", &stubEmbedder{vec: []float32{1, 0, 0}}, appErr.ErrDimensionMismatch},
		{"no embedder", nil, appErr.ErrEmbeddingProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSearchService(newGenomicsStore(t), tt.emb, nil)
			for _, mode := range []model.SearchMode{model.SearchModeSemantic, model.SearchModeHybrid} {
				resp, err := svc.Search(context.Background(), model.GlobalScope(), newRequest(mode), "")
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, resp)
			}
			_, err := svc.Search(context.Background(), model.GlobalScope(), newRequest(model.SearchModeLexical), "")
			require.NoError(t, err)
		})
	}
}

func TestCancelledSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newGenomicsSearch(t)
	resp, err := svc.Search(ctx, model.GlobalScope(), newRequest(model.SearchModeLexical), "")
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, resp)
}

func TestCancelledHybridSearch(t *testing.T) {
	emb := &blockingEmbedder{started: make(chan struct{})}
	svc := NewSearchService(newGenomicsStore(t), emb, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-emb.started
		cancel()
	}()
	resp, err := svc.Search(ctx, model.GlobalScope(), newRequest(model.SearchModeHybrid), "")
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, resp)
}

func TestTenantScopedSearch(t *testing.T) {
	s := newGenomicsStore(t)
	private := testutil.Doc("doc-p", "Genomics deep learning atlas", 4)
	private.OrganizationID = testutil.StrPtr("org-a")
	require.NoError(t, s.PutDocument(private))
	s.Claim("org-a", "doc-p")
	s.Claim("org-a", "doc-b")
	svc := NewSearchService(s, &stubEmbedder{vec: testutil.GenomicsQueryVector()}, nil)

	resp, err := svc.Search(context.Background(), model.OrganizationScope("org-a"), newRequest(model.SearchModeLexical), "")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"doc-p", "doc-b"}, resultIDs(resp.Items))

	resp, err = svc.Search(context.Background(), model.GlobalScope(), newRequest(model.SearchModeLexical), "")
	require.NoError(t, err)
	require.NotContains(t, resultIDs(resp.Items), "doc-p")
}

type chanRecorder struct {
	events chan *model.SearchEvent
	block  chan struct{}
	err    error
}

func (r *chanRecorder) RecordSearch(ctx context.Context, ev *model.SearchEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.events <- ev
	return r.err
}

func TestAnalyticsRecorded(t *testing.T) {
	rec := &chanRecorder{events: make(chan *model.SearchEvent, 1)}
	svc := NewSearchService(newGenomicsStore(t), &stubEmbedder{vec: testutil.GenomicsQueryVector()}, rec)
	req := newRequest(model.SearchModeLexical)
	req.Query = strings.Repeat("genomics ", 200)
	resp, err := svc.Search(context.Background(), model.OrganizationScope("org-a"), req, "user-1")
	require.NoError(t, err)

	select {
	case ev := <-rec.events:
		require.Equal(t, "user-1", ev.UserID)
		require.Equal(t, "org-a", ev.OrganizationID)
		require.Equal(t, model.SearchModeLexical, ev.Mode)
		require.Equal(t, resp.Total, ev.ResultCount)
		require.Len(t, []rune(ev.Query), model.MaxQueryChars)
	case <-time.After(2 * time.Second):
		t.Fatal("search event not recorded")
	}
}

func TestAnalyticsNeverBlocks(t *testing.T) {
	rec := &chanRecorder{
		events: make(chan *model.SearchEvent, 1),
		block:  make(chan struct{}),
		err:    errors.New("db down"),
	}
	defer close(rec.block)
	svc := NewSearchService(newGenomicsStore(t), &stubEmbedder{vec: testutil.GenomicsQueryVector()}, rec)
	done := make(chan error, 1)
	go func() {
		_, err := svc.Search(context.Background(), model.GlobalScope(), newRequest(model.SearchModeLexical), "user-1")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("search blocked on analytics")
	}
}

func TestAnalyticsSkippedWithoutUser(t *testing.T) {
	rec := &chanRecorder{events: make(chan *model.SearchEvent, 1)}
	svc := NewSearchService(newGenomicsStore(t), &stubEmbedder{vec: testutil.GenomicsQueryVector()}, rec)
	_, err := svc.Search(context.Background(), model.GlobalScope(), newRequest(model.SearchModeLexical), "")
	require.NoError(t, err)
	select {
	case <-rec.events:
		t.Fatal("unexpected search event")
	case <-time.After(100 * time.Millisecond):
	}
}
