// Package store provides the SQLite storage layer for newslens.
//
// All durable state lives in a single SQLite database file:
// - Source articles with topic tags (written by the ingestion collaborator)
// - Per-run cluster snapshots and article memberships
// - Deduplicated keywords and cluster-keyword edges
// - Daily keyword trend counts
//
// Cluster rows are disposable per-run snapshots: every pipeline run inserts
// fresh rows and never mutates a prior run's. Readers scope queries by
// created_at instead of a canonical latest-state table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "newslens.db"

// SQLiteStore is the concrete SQLite-backed store.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Stats holds observability counters about the store.
type Stats struct {
	ArticleCount        int64
	ClusterCount        int64
	ClusterArticleCount int64
	KeywordCount        int64
	TrendKeywordCount   int64
}

// NewStore opens (creating if needed) the database at dbPath and applies
// migrations. Pass ":memory:" for tests.
func NewStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating db dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc.org/sqlite serializes writers; one connection avoids
	// SQLITE_BUSY when a scheduler tick overlaps a CLI invocation.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Stats returns row counts for observability.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counts := []struct {
		table string
		dest  *int64
	}{
		{"articles", &st.ArticleCount},
		{"clusters", &st.ClusterCount},
		{"cluster_articles", &st.ClusterArticleCount},
		{"keywords", &st.KeywordCount},
		{"trend_keywords", &st.TrendKeywordCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return st, nil
}
