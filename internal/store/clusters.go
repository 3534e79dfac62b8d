package store

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Cluster is one per-run snapshot row. label repeats across runs with
// different meaning; created_at scopes a run's snapshot.
type Cluster struct {
	ID          int64
	Topic       string
	Label       int
	NumArticles int
	CreatedAt   time.Time
}

// PersistClusters materializes one run's labels for a topic: one clusters
// row per distinct label (noise label -1 included) and one cluster_articles
// row per window article. Everything commits in a single transaction so a
// crash never leaves a cluster without its memberships.
//
// Returns the label → cluster id mapping for the keyword stage.
func (s *SQLiteStore) PersistClusters(ctx context.Context, topic string, articleIDs []int64, labels []int) (map[int]int64, error) {
	if len(articleIDs) != len(labels) {
		return nil, fmt.Errorf("persisting clusters: %d article ids but %d labels", len(articleIDs), len(labels))
	}
	if len(articleIDs) == 0 {
		return map[int]int64{}, nil
	}

	counts := make(map[int]int)
	for _, lbl := range labels {
		counts[lbl]++
	}
	distinct := make([]int, 0, len(counts))
	for lbl := range counts {
		distinct = append(distinct, lbl)
	}
	sort.Ints(distinct)

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cluster persist transaction: %w", err)
	}
	defer tx.Rollback()

	labelToID := make(map[int]int64, len(distinct))
	for _, lbl := range distinct {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO clusters (topic, label, num_articles, created_at)
			 VALUES (?, ?, ?, ?)`,
			topic, lbl, counts[lbl], now,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting cluster label %d for topic %q: %w", lbl, topic, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading cluster insert id: %w", err)
		}
		labelToID[lbl] = id
	}

	for i, articleID := range articleIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cluster_articles (cluster_id, article_id) VALUES (?, ?)`,
			labelToID[labels[i]], articleID,
		); err != nil {
			return nil, fmt.Errorf("inserting membership for article %d: %w", articleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cluster persist: %w", err)
	}
	return labelToID, nil
}

// RecentClusters returns a topic's clusters created at or after since,
// newest first. This is how readers find "current" clusters: snapshots are
// filtered by recency, never updated in place.
func (s *SQLiteStore) RecentClusters(ctx context.Context, topic string, since time.Time) ([]Cluster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, label, num_articles, created_at
		 FROM clusters
		 WHERE topic = ? AND created_at >= ?
		 ORDER BY created_at DESC, label ASC`,
		topic, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent clusters for topic %q: %w", topic, err)
	}
	defer rows.Close()

	clusters := make([]Cluster, 0, 32)
	for rows.Next() {
		var c Cluster
		if err := rows.Scan(&c.ID, &c.Topic, &c.Label, &c.NumArticles, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning cluster row: %w", err)
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recent clusters: %w", err)
	}
	return clusters, nil
}

// ClusterArticleIDs returns the member article ids of a cluster.
func (s *SQLiteStore) ClusterArticleIDs(ctx context.Context, clusterID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT article_id FROM cluster_articles WHERE cluster_id = ? ORDER BY article_id ASC`,
		clusterID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying members of cluster %d: %w", clusterID, err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 32)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cluster members: %w", err)
	}
	return ids, nil
}
