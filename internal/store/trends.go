package store

import (
	"context"
	"fmt"
	"time"
)

// TrendKeyword is one daily mention count for a cluster-keyword edge.
type TrendKeyword struct {
	ID               int64
	ClusterKeywordID int64
	Date             string // YYYY-MM-DD in the aggregation timezone
	Count            int
}

// AggregateTrends recomputes trend counts for the calendar day containing
// target in loc. Existing rows for that date are deleted first, then for
// every cluster-keyword edge the number of distinct member articles whose
// title or summary contains the keyword's literal text and whose publish
// time falls inside the day is inserted. Delete-then-insert makes re-running
// the job for the same date idempotent.
func (s *SQLiteStore) AggregateTrends(ctx context.Context, target time.Time, loc *time.Location) (int, error) {
	day := target.In(loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)
	dateKey := start.Format("2006-01-02")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin trend transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trend_keywords WHERE date = ?`, dateKey); err != nil {
		return 0, fmt.Errorf("clearing trend rows for %s: %w", dateKey, err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT ck.id, COUNT(DISTINCT a.id) AS cnt
		 FROM cluster_keywords ck
		 JOIN cluster_articles ca ON ca.cluster_id = ck.cluster_id
		 JOIN articles a ON a.id = ca.article_id
		 JOIN keywords k ON k.id = ck.keyword_id
		 WHERE a.published >= ? AND a.published < ?
		   AND (instr(a.title, k.name) > 0 OR instr(a.summary, k.name) > 0)
		 GROUP BY ck.id
		 ORDER BY cnt DESC, ck.id ASC`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("aggregating trends for %s: %w", dateKey, err)
	}

	type trendCount struct {
		clusterKeywordID int64
		count            int
	}
	counts := make([]trendCount, 0, 64)
	for rows.Next() {
		var tc trendCount
		if err := rows.Scan(&tc.clusterKeywordID, &tc.count); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning trend count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterating trend counts: %w", err)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("closing trend count rows: %w", err)
	}

	for _, tc := range counts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trend_keywords (cluster_keyword_id, date, count) VALUES (?, ?, ?)`,
			tc.clusterKeywordID, dateKey, tc.count,
		); err != nil {
			return 0, fmt.Errorf("inserting trend row for edge %d: %w", tc.clusterKeywordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit trend aggregation: %w", err)
	}
	return len(counts), nil
}

// TrendsForDate returns the trend rows for a YYYY-MM-DD date key.
func (s *SQLiteStore) TrendsForDate(ctx context.Context, dateKey string) ([]TrendKeyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cluster_keyword_id, date, count
		 FROM trend_keywords
		 WHERE date = ?
		 ORDER BY count DESC, cluster_keyword_id ASC`,
		dateKey,
	)
	if err != nil {
		return nil, fmt.Errorf("querying trends for %s: %w", dateKey, err)
	}
	defer rows.Close()

	trends := make([]TrendKeyword, 0, 32)
	for rows.Next() {
		var t TrendKeyword
		if err := rows.Scan(&t.ID, &t.ClusterKeywordID, &t.Date, &t.Count); err != nil {
			return nil, fmt.Errorf("scanning trend row: %w", err)
		}
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trend rows: %w", err)
	}
	return trends, nil
}
