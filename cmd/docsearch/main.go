package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docsearch/internal/ai"
	"github.com/xxxsen/docsearch/internal/config"
	"github.com/xxxsen/docsearch/internal/db"
	"github.com/xxxsen/docsearch/internal/embedcache"
	"github.com/xxxsen/docsearch/internal/filestore"
	"github.com/xxxsen/docsearch/internal/handler"
	"github.com/xxxsen/docsearch/internal/job"
	"github.com/xxxsen/docsearch/internal/memstore"
	"github.com/xxxsen/docsearch/internal/metrics"
	"github.com/xxxsen/docsearch/internal/middleware"
	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/repo"
	"github.com/xxxsen/docsearch/internal/schedule"
	"github.com/xxxsen/docsearch/internal/service"
	"github.com/xxxsen/docsearch/internal/store"
)

// app holds the wiring shared by every subcommand.
type app struct {
	cfg        *config.Config
	sqlDB      *sql.DB
	docs       store.DocumentStore
	recorder   store.SearchRecorder
	cacheRepo  *repo.EmbeddingCacheRepo
	embedder   ai.IEmbedder
	search     *service.SearchService
	embeddings *service.EmbeddingService
}

func main() {
	var configPath string
	var orgID string
	var batchSize int
	var maxDocs int

	rootCmd := &cobra.Command{
		Use:   "docsearch",
		Short: "document search server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (json or yaml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the search api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return runServer(a)
		},
	}

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "embed documents that have no embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if batchSize <= 0 {
				batchSize = a.cfg.Backfill.BatchSize
			}
			var limit *int
			if cmd.Flags().Changed("max-docs") {
				limit = &maxDocs
			}
			res, err := a.embeddings.Backfill(cmd.Context(), scopeOf(orgID), batchSize, limit)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	backfillCmd.Flags().StringVar(&orgID, "org", "", "organization id, empty for the global catalog")
	backfillCmd.Flags().IntVar(&batchSize, "batch-size", 0, "documents per commit")
	backfillCmd.Flags().IntVar(&maxDocs, "max-docs", 0, "maximum documents to process")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "print embedding coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.close()
			stats, err := a.embeddings.Stats(cmd.Context(), scopeOf(orgID))
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
	statsCmd.Flags().StringVar(&orgID, "org", "", "organization id, empty for the global catalog")

	rootCmd.AddCommand(runCmd, backfillCmd, statsCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func scopeOf(orgID string) model.TenantScope {
	if orgID == "" {
		return model.GlobalScope()
	}
	return model.OrganizationScope(orgID)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setup(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", configPath),
		zap.String("store", cfg.Store),
	)
	metrics.Register()

	a := &app{cfg: cfg}
	if err := a.openStore(); err != nil {
		return nil, err
	}
	embedder, err := buildEmbedder(cfg.Embedding, a.cacheRepo)
	if err != nil {
		a.close()
		return nil, err
	}
	a.embedder = embedder
	recorder := a.recorder
	if !cfg.Search.AnalyticsEnabled() {
		recorder = nil
	}
	a.search = service.NewSearchService(a.docs, embedder, recorder)
	a.embeddings = service.NewEmbeddingService(a.docs, embedder, cfg.Backfill.PoolSize)
	return a, nil
}

func (a *app) openStore() error {
	if a.cfg.Store == config.StoreMemory {
		s := memstore.New()
		if a.cfg.SeedFile != "" {
			if err := s.LoadFile(a.cfg.SeedFile); err != nil {
				return fmt.Errorf("load seed file: %w", err)
			}
		}
		a.docs = s
		a.recorder = s
		return nil
	}
	sqlDB, err := db.Open(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("migrations: %w", err)
	}
	a.sqlDB = sqlDB
	a.docs = repo.NewDocumentRepo(sqlDB)
	a.recorder = repo.NewSearchEventRepo(sqlDB)
	if a.cfg.Embedding.DBCache {
		a.cacheRepo = repo.NewEmbeddingCacheRepo(sqlDB)
	}
	return nil
}

func (a *app) close() {
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
}

// buildEmbedder chains the configured providers in order, then layers the
// persistent cache under the in-memory LRU.
func buildEmbedder(cfg config.EmbeddingConfig, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		provider, err := ai.NewEmbedProvider(p.Name, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", p.Name, err)
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     p.Name,
			Embedder: ai.NewEmbedder(provider, p.Model),
		})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if embedder == nil {
		logutil.GetLogger(context.Background()).Warn("no embedding provider configured, semantic search disabled")
		return nil, nil
	}
	if cacheRepo != nil {
		embedder = embedcache.WrapDB(embedder, cacheRepo)
	}
	if cfg.CacheSize > 0 {
		embedder = embedcache.WrapLRU(embedder, cfg.CacheSize, cfg.CacheTTL())
	}
	return embedder, nil
}

func runServer(a *app) error {
	cfg := a.cfg
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.Store),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	backfill := job.NewEmbeddingBackfillJob(a.embeddings, a.docs, cfg.Backfill.BatchSize, cfg.Backfill.MaxDocs)
	if cfg.ReportStore != nil {
		reports, err := filestore.New(*cfg.ReportStore)
		if err != nil {
			return fmt.Errorf("init report store: %w", err)
		}
		backfill.WithReports(reports)
	}
	if err := scheduler.AddJob(backfill, cfg.Backfill.Cron); err != nil {
		return fmt.Errorf("schedule backfill: %w", err)
	}
	if a.cacheRepo != nil {
		cleanup := job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.EmbeddingCacheCleanup.MaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.EmbeddingCacheCleanup.Cron); err != nil {
			return fmt.Errorf("schedule cache cleanup: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Search:         handler.NewSearchHandler(a.search, cfg.Search.Timeout()),
		Embeddings:     handler.NewEmbeddingHandler(a.embeddings),
		JWTSecret:      []byte(cfg.JWTSecret),
		BackfillWindow: cfg.Backfill.RateLimit(),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
