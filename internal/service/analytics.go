package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docsearch/internal/metrics"
	"github.com/xxxsen/docsearch/internal/model"
)

// recordAsync writes the search event off the request path. The write is
// detached from the request's cancellation but bounded by its own timeout,
// and a failure only costs the event.
func (s *SearchService) recordAsync(ctx context.Context, scope model.TenantScope, req *model.SearchRequest, actingUser string, resp *model.SearchResponse) {
	if s.recorder == nil || actingUser == "" {
		return
	}
	ev := &model.SearchEvent{
		UserID:         actingUser,
		OrganizationID: scope.OrganizationID,
		Query:          truncateRunes(req.Query, model.MaxQueryChars),
		Mode:           req.Mode,
		ResultCount:    resp.Total,
		ElapsedMs:      resp.SearchTimeMs,
		CreatedAt:      time.Now(),
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		logger := logutil.GetLogger(bg).With(zap.String("user", ev.UserID), zap.String("mode", string(ev.Mode)))
		defer func() {
			if r := recover(); r != nil {
				metrics.AnalyticsDroppedTotal.Inc()
				logger.Error("record search event panic", zap.Any("panic", r))
			}
		}()
		rctx, cancel := context.WithTimeout(bg, s.analyticsTimeout)
		defer cancel()
		if err := s.recorder.RecordSearch(rctx, ev); err != nil {
			metrics.AnalyticsDroppedTotal.Inc()
			logger.Warn("record search event failed", zap.Error(err))
		}
	}()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
