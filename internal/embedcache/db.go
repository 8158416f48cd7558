package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/docsearch/internal/ai"
	"github.com/xxxsen/docsearch/internal/metrics"
	"github.com/xxxsen/docsearch/internal/model"
	"go.uber.org/zap"
)

type Repo interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

// WrapDB persists embeddings keyed by model, task type and content hash.
// Cache read or write failures are logged and never fail the embed call.
func WrapDB(e ai.IEmbedder, repo Repo) ai.IEmbedder {
	if e == nil || repo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: repo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo Repo
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("layer", "db"), zap.String("task_type", taskType))
	key := newCacheKey(d.next.ModelName(), taskType, text)
	values, ok, err := d.repo.Get(ctx, key.modelName, key.taskType, key.contentHash)
	switch {
	case err != nil:
		logger.Warn("read embedding cache failed", zap.Error(err))
	case ok:
		metrics.EmbeddingCacheTotal.WithLabelValues("db", "hit").Inc()
		logger.Debug("embedding cache hit")
		return values, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("db", "miss").Inc()
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.repo.Save(ctx, &model.EmbeddingCache{
		ModelName:   key.modelName,
		TaskType:    key.taskType,
		ContentHash: key.contentHash,
		Embedding:   res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logger.Warn("write embedding cache failed", zap.Error(err))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}
