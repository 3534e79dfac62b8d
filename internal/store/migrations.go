package store

import "fmt"

// migrate creates all tables and indexes if they don't exist. Every
// statement is idempotent, so re-running on an existing database is safe.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		// Source articles, owned by the ingestion collaborator. The core
		// only reads windows; the seed command writes fixtures.
		`CREATE TABLE IF NOT EXISTS articles (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			topic      TEXT NOT NULL,
			title      TEXT NOT NULL,
			link       TEXT NOT NULL UNIQUE,
			summary    TEXT NOT NULL DEFAULT '',
			published  DATETIME,
			fetched_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_topic_fetched ON articles(topic, fetched_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published)`,

		// Per-run cluster snapshots. Labels are algorithm-assigned integers
		// and only meaningful within one run; -1 marks density noise.
		`CREATE TABLE IF NOT EXISTS clusters (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			topic        TEXT NOT NULL,
			label        INTEGER NOT NULL,
			num_articles INTEGER NOT NULL,
			created_at   DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clusters_topic_created ON clusters(topic, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS cluster_articles (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			cluster_id INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cluster_articles_cluster ON cluster_articles(cluster_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cluster_articles_article ON cluster_articles(article_id)`,

		// Keywords are deduplicated globally by exact name.
		`CREATE TABLE IF NOT EXISTS keywords (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,

		`CREATE TABLE IF NOT EXISTS cluster_keywords (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			cluster_id INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
			keyword_id INTEGER NOT NULL REFERENCES keywords(id) ON DELETE CASCADE,
			UNIQUE(cluster_id, keyword_id)
		)`,

		// Daily trend rollup, recomputed per date (delete + insert).
		`CREATE TABLE IF NOT EXISTS trend_keywords (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			cluster_keyword_id INTEGER NOT NULL REFERENCES cluster_keywords(id) ON DELETE CASCADE,
			date               DATE NOT NULL,
			count              INTEGER NOT NULL,
			UNIQUE(cluster_keyword_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trend_keywords_date ON trend_keywords(date)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}
