package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/docsearch/internal/handler"
	"github.com/xxxsen/docsearch/internal/memstore"
	"github.com/xxxsen/docsearch/internal/middleware"
	"github.com/xxxsen/docsearch/internal/pkg/jwt"
	"github.com/xxxsen/docsearch/internal/service"
	"github.com/xxxsen/docsearch/internal/testutil"
)

var testSecret = []byte("test-secret")

type fixedEmbedder struct {
	vec []float32
	err error
}

func (e fixedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.vec, e.err
}

func (e fixedEmbedder) ModelName() string {
	return "fixed:test"
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T, emb fixedEmbedder) (http.Handler, *memstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := memstore.New()
	for _, doc := range testutil.GenomicsCorpus() {
		require.NoError(t, s.PutDocument(doc))
	}
	searchService := service.NewSearchService(s, emb, s)
	embeddingService := service.NewEmbeddingService(s, emb, 2)
	deps := handler.RouterDeps{
		Search:     handler.NewSearchHandler(searchService, 5*time.Second),
		Embeddings: handler.NewEmbeddingHandler(embeddingService),
		JWTSecret:  testSecret,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine, s
}

func token(t *testing.T, userID, orgID string) string {
	tok, err := jwt.GenerateToken(userID, orgID, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func doRequest(t *testing.T, router http.Handler, method, path, tok string, body interface{}) envelope {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}
