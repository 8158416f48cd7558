package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/pkg/errcode"
	"github.com/xxxsen/docsearch/internal/pkg/response"
	"github.com/xxxsen/docsearch/internal/service"
)

const maxBackfillBatchSize = 500

type EmbeddingHandler struct {
	embeddings *service.EmbeddingService
}

func NewEmbeddingHandler(embeddings *service.EmbeddingService) *EmbeddingHandler {
	return &EmbeddingHandler{embeddings: embeddings}
}

type similarQuery struct {
	Limit         int      `form:"limit"`
	MinSimilarity *float64 `form:"min_similarity"`
}

type backfillRequest struct {
	BatchSize int  `json:"batch_size"`
	MaxDocs   *int `json:"max_docs"`
}

type upsertEmbeddingRequest struct {
	Embedding []float32 `json:"embedding"`
}

func (h *EmbeddingHandler) Similar(c *gin.Context) {
	var q similarQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if q.Limit < 0 || q.Limit > model.MaxPageSize {
		response.Error(c, errcode.ErrInvalid, "invalid limit")
		return
	}
	if q.MinSimilarity != nil && (*q.MinSimilarity < 0 || *q.MinSimilarity > 1) {
		response.Error(c, errcode.ErrInvalid, "invalid min_similarity")
		return
	}
	resp, err := h.embeddings.FindSimilar(c.Request.Context(), getScope(c), c.Param("id"), q.Limit, q.MinSimilarity)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *EmbeddingHandler) Backfill(c *gin.Context) {
	var req backfillRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid request")
			return
		}
	}
	if req.BatchSize == 0 {
		req.BatchSize = service.DefaultBackfillBatchSize
	}
	if req.BatchSize < 0 || req.BatchSize > maxBackfillBatchSize {
		response.Error(c, errcode.ErrInvalid, "invalid batch_size")
		return
	}
	if req.MaxDocs != nil && *req.MaxDocs < 0 {
		response.Error(c, errcode.ErrInvalid, "invalid max_docs")
		return
	}
	res, err := h.embeddings.Backfill(c.Request.Context(), getScope(c), req.BatchSize, req.MaxDocs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *EmbeddingHandler) Stats(c *gin.Context) {
	stats, err := h.embeddings.Stats(c.Request.Context(), getScope(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *EmbeddingHandler) Upsert(c *gin.Context) {
	var req upsertEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.embeddings.UpsertEmbedding(c.Request.Context(), getScope(c), c.Param("id"), req.Embedding); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"document_id": c.Param("id")})
}

func (h *EmbeddingHandler) Refresh(c *gin.Context) {
	if err := h.embeddings.RefreshEmbedding(c.Request.Context(), getScope(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"document_id": c.Param("id")})
}
