package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/pkg/errcode"
	"github.com/xxxsen/docsearch/internal/pkg/response"
	"github.com/xxxsen/docsearch/internal/service"
)

type SearchHandler struct {
	search  *service.SearchService
	timeout time.Duration
}

// NewSearchHandler bounds every search by timeout; zero disables the bound.
func NewSearchHandler(search *service.SearchService, timeout time.Duration) *SearchHandler {
	return &SearchHandler{search: search, timeout: timeout}
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid search request")
		return
	}
	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	resp, err := h.search.Search(ctx, getScope(c), &req, getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}
