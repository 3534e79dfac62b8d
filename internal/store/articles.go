package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Article is a topic-tagged source article. Immutable once ingested.
type Article struct {
	ID        int64
	Topic     string
	Title     string
	Link      string
	Summary   string
	Published time.Time
	FetchedAt time.Time
}

// WindowArticle is the slice of an article the pipeline consumes: id plus
// the title+summary concatenation.
type WindowArticle struct {
	ID   int64
	Text string
}

// AddArticle inserts an article. Duplicate links are treated as
// already-ingested and return the existing row's id.
func (s *SQLiteStore) AddArticle(ctx context.Context, a *Article) (int64, error) {
	if a.FetchedAt.IsZero() {
		a.FetchedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (topic, title, link, summary, published, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(link) DO NOTHING`,
		a.Topic, a.Title, a.Link, a.Summary, a.Published.UTC(), a.FetchedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting article %q: %w", a.Link, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading article insert id: %w", err)
		}
		return id, nil
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM articles WHERE link = ?`, a.Link).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolving duplicate article %q: %w", a.Link, err)
	}
	return id, nil
}

// FetchWindow returns the (id, title+summary) tuples for a topic's articles
// fetched since the given instant, most recent first. An empty result means
// the topic's run should be skipped.
func (s *SQLiteStore) FetchWindow(ctx context.Context, topic string, since time.Time) ([]WindowArticle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, COALESCE(summary, '')
		 FROM articles
		 WHERE topic = ? AND fetched_at >= ?
		 ORDER BY fetched_at DESC, id DESC`,
		topic, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying window for topic %q: %w", topic, err)
	}
	defer rows.Close()

	window := make([]WindowArticle, 0, 128)
	for rows.Next() {
		var id int64
		var title, summary string
		if err := rows.Scan(&id, &title, &summary); err != nil {
			return nil, fmt.Errorf("scanning window article: %w", err)
		}
		text := strings.TrimSpace(title + " " + summary)
		window = append(window, WindowArticle{ID: id, Text: text})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating window for topic %q: %w", topic, err)
	}
	return window, nil
}

// CountArticles returns the number of ingested articles for a topic.
func (s *SQLiteStore) CountArticles(ctx context.Context, topic string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE topic = ?`, topic,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting articles for topic %q: %w", topic, err)
	}
	return count, nil
}
