package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port                  int                   `json:"port"`
	JWTSecret             string                `json:"jwt_secret"`
	LogConfig             logger.LogConfig      `json:"log_config"`
	Store                 string                `json:"store"`
	SeedFile              string                `json:"seed_file"`
	Database              DatabaseConfig        `json:"database"`
	Embedding             EmbeddingConfig       `json:"embedding"`
	Search                SearchConfig          `json:"search"`
	Backfill              BackfillConfig        `json:"backfill"`
	EmbeddingCacheCleanup EmbeddingCacheCleanup `json:"embedding_cache_cleanup"`
	CORSOrigins           []string              `json:"cors_origins"`
	// ReportStore, when set, receives a JSON report after each scheduled backfill.
	ReportStore           *FileStoreConfig      `json:"report_store"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type ProviderConfig struct {
	Name  string      `json:"name"`
	Model string      `json:"model"`
	Data  interface{} `json:"data"`
}

type EmbeddingConfig struct {
	Providers       []ProviderConfig `json:"providers"`
	CacheSize       int              `json:"cache_size"`
	CacheTTLSeconds int              `json:"cache_ttl_seconds"`
	DBCache         bool             `json:"db_cache"`
}

func (c EmbeddingConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type SearchConfig struct {
	TimeoutSeconds int   `json:"timeout_seconds"`
	Analytics      *bool `json:"analytics"`
}

func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AnalyticsEnabled defaults to true when the key is absent.
func (c SearchConfig) AnalyticsEnabled() bool {
	return c.Analytics == nil || *c.Analytics
}

type BackfillConfig struct {
	Cron      string `json:"cron"`
	BatchSize int    `json:"batch_size"`
	MaxDocs   int    `json:"max_docs"`
	PoolSize  int    `json:"pool_size"`

	// RateLimitSeconds throttles manual backfill requests per caller.
	RateLimitSeconds int `json:"rate_limit_seconds"`
}

func (c BackfillConfig) RateLimit() time.Duration {
	return time.Duration(c.RateLimitSeconds) * time.Second
}

type EmbeddingCacheCleanup struct {
	Cron       string `json:"cron"`
	MaxAgeDays int    `json:"max_age_days"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(envVarRegex.FindSubmatch(match)[1])
		return []byte(os.Getenv(name))
	})
}

// decode reads JSON, or YAML for .yaml/.yml files. YAML is normalised to
// JSON first so the json tags stay the single source of field names.
func decode(path string, data []byte, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode yaml config: %w", err)
		}
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("normalise yaml config: %w", err)
		}
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	data = expandEnvVars(data)

	var cfg Config
	if err := decode(path, data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Store == "" {
		c.Store = StorePostgres
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Embedding.CacheSize == 0 {
		c.Embedding.CacheSize = 1024
	}
	if c.Embedding.CacheTTLSeconds == 0 {
		c.Embedding.CacheTTLSeconds = 3600
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = 30
	}
	if c.Backfill.BatchSize <= 0 {
		c.Backfill.BatchSize = 50
	}
	if c.Backfill.PoolSize <= 0 {
		c.Backfill.PoolSize = 4
	}
	if c.EmbeddingCacheCleanup.MaxAgeDays <= 0 {
		c.EmbeddingCacheCleanup.MaxAgeDays = 30
	}
}

func (c *Config) validate() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	switch c.Store {
	case StorePostgres:
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.DBName == "") {
			return fmt.Errorf("database.dsn or database.host/dbname is required for postgres store")
		}
	case StoreMemory:
		if c.Embedding.DBCache {
			return fmt.Errorf("embedding.db_cache requires the postgres store")
		}
	default:
		return fmt.Errorf("store must be postgres or memory")
	}
	if len(c.Embedding.Providers) == 0 {
		return fmt.Errorf("embedding.providers is required")
	}
	for i, p := range c.Embedding.Providers {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("embedding.providers[%d] requires name and model", i)
		}
	}
	if c.Backfill.MaxDocs < 0 {
		return fmt.Errorf("backfill.max_docs must not be negative")
	}
	if c.Backfill.RateLimitSeconds < 0 {
		return fmt.Errorf("backfill.rate_limit_seconds must not be negative")
	}
	if c.ReportStore != nil && strings.TrimSpace(c.ReportStore.Type) == "" {
		return fmt.Errorf("report_store.type is required")
	}
	return nil
}
