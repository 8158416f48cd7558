package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/docsearch/internal/config"
	"github.com/xxxsen/docsearch/internal/db"
)

// OpenTestDB connects to the Postgres named by TEST_DB_HOST, applies the
// migrations and empties every table. Tests are skipped when it is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "docsearch",
		Password: "docsearch_pass",
		DBName:   "docsearch_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if _, err := conn.Exec("TRUNCATE documents, document_claims, score_summaries, search_events, embedding_cache CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}
