package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xxxsen/docsearch/internal/middleware"
)

type RouterDeps struct {
	Search     *SearchHandler
	Embeddings *EmbeddingHandler
	JWTSecret  []byte
	// BackfillWindow throttles manual backfills per caller; zero disables it.
	BackfillWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/search", deps.Search.Search)
	authGroup.GET("/documents/:id/similar", deps.Embeddings.Similar)
	authGroup.PUT("/documents/:id/embedding", deps.Embeddings.Upsert)
	authGroup.POST("/documents/:id/embedding/refresh", deps.Embeddings.Refresh)
	authGroup.GET("/embeddings/stats", deps.Embeddings.Stats)
	authGroup.POST("/embeddings/backfill", middleware.RateLimit(deps.BackfillWindow), deps.Embeddings.Backfill)
}
