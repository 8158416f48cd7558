package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docsearch/internal/filestore"
	"github.com/xxxsen/docsearch/internal/model"
)

type backfiller interface {
	Backfill(ctx context.Context, scope model.TenantScope, batchSize int, maxDocs *int) (*model.BackfillResult, error)
}

type tenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

type reportSink interface {
	Save(ctx context.Context, key string, r filestore.ReadSeekCloser, size int64) error
}

type scopeReport struct {
	Scope  string                `json:"scope"`
	Result *model.BackfillResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

type backfillReport struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Scopes     []scopeReport `json:"scopes"`
}

// EmbeddingBackfillJob fills missing embeddings for the global catalog and
// then for every organization that has claimed documents.
type EmbeddingBackfillJob struct {
	svc       backfiller
	tenants   tenantLister
	batchSize int
	maxDocs   int
	reports   reportSink
	now       func() time.Time
}

// NewEmbeddingBackfillJob builds the job. maxDocs <= 0 means no per-scope cap.
func NewEmbeddingBackfillJob(svc backfiller, tenants tenantLister, batchSize, maxDocs int) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{svc: svc, tenants: tenants, batchSize: batchSize, maxDocs: maxDocs, now: time.Now}
}

// WithReports stores a JSON report of every run in sink.
func (j *EmbeddingBackfillJob) WithReports(sink reportSink) *EmbeddingBackfillJob {
	j.reports = sink
	return j
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.svc == nil {
		return nil
	}
	scopes := []model.TenantScope{model.GlobalScope()}
	if j.tenants != nil {
		orgs, err := j.tenants.ListTenants(ctx)
		if err != nil {
			return err
		}
		for _, org := range orgs {
			scopes = append(scopes, model.OrganizationScope(org))
		}
	}
	var maxDocs *int
	if j.maxDocs > 0 {
		maxDocs = &j.maxDocs
	}
	report := &backfillReport{StartedAt: j.now()}
	var errs []error
	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := j.svc.Backfill(ctx, scope, j.batchSize, maxDocs)
		logger := logutil.GetLogger(ctx).With(zap.String("scope", scope.String()))
		if err != nil {
			logger.Error("backfill scope failed", zap.Error(err))
			errs = append(errs, err)
			report.Scopes = append(report.Scopes, scopeReport{Scope: scope.String(), Error: err.Error()})
			continue
		}
		report.Scopes = append(report.Scopes, scopeReport{Scope: scope.String(), Result: res})
		if res.Processed > 0 {
			logger.Info("backfill scope done",
				zap.Int("succeeded", res.Succeeded),
				zap.Int("failed", res.Failed),
				zap.Strings("errors", res.Errors),
			)
		}
	}
	report.FinishedAt = j.now()
	if err := j.saveReport(ctx, report); err != nil {
		logutil.GetLogger(ctx).Warn("save backfill report failed", zap.Error(err))
	}
	return errors.Join(errs...)
}

type byteReader struct {
	*bytes.Reader
}

func (byteReader) Close() error {
	return nil
}

func (j *EmbeddingBackfillJob) saveReport(ctx context.Context, report *backfillReport) error {
	if j.reports == nil {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("backfill-%s.json", report.StartedAt.UTC().Format("20060102T150405Z"))
	return j.reports.Save(ctx, key, byteReader{bytes.NewReader(raw)}, int64(len(raw)))
}
