package store

import (
	"context"
	"database/sql"
	"fmt"
)

// keyword names are capped to keep the unique index small; longer terms are
// truncated before dedup so re-runs stay idempotent.
const maxKeywordLen = 100

// ClusterKeywordEdge links a cluster snapshot to a deduplicated keyword.
type ClusterKeywordEdge struct {
	ID        int64
	ClusterID int64
	KeywordID int64
	Name      string
}

// PersistKeywords links the extracted terms to a cluster: find-or-create
// each keywords row by exact name, then insert the (cluster, keyword) edge
// if absent. One transaction per cluster; re-running is a no-op.
func (s *SQLiteStore) PersistKeywords(ctx context.Context, clusterID int64, terms []string) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin keyword persist transaction: %w", err)
	}
	defer tx.Rollback()

	for _, term := range terms {
		name := truncateKeyword(term)
		if name == "" {
			continue
		}

		var keywordID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM keywords WHERE name = ?`, name).Scan(&keywordID)
		if err == sql.ErrNoRows {
			res, err := tx.ExecContext(ctx, `INSERT INTO keywords (name) VALUES (?)`, name)
			if err != nil {
				return fmt.Errorf("inserting keyword %q: %w", name, err)
			}
			keywordID, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("reading keyword insert id: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("looking up keyword %q: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO cluster_keywords (cluster_id, keyword_id) VALUES (?, ?)`,
			clusterID, keywordID,
		); err != nil {
			return fmt.Errorf("linking keyword %q to cluster %d: %w", name, clusterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit keyword persist: %w", err)
	}
	return nil
}

// ClusterKeywords returns a cluster's keyword edges with resolved names.
func (s *SQLiteStore) ClusterKeywords(ctx context.Context, clusterID int64) ([]ClusterKeywordEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ck.id, ck.cluster_id, ck.keyword_id, k.name
		 FROM cluster_keywords ck
		 JOIN keywords k ON k.id = ck.keyword_id
		 WHERE ck.cluster_id = ?
		 ORDER BY k.name ASC`,
		clusterID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying keywords of cluster %d: %w", clusterID, err)
	}
	defer rows.Close()

	edges := make([]ClusterKeywordEdge, 0, 8)
	for rows.Next() {
		var e ClusterKeywordEdge
		if err := rows.Scan(&e.ID, &e.ClusterID, &e.KeywordID, &e.Name); err != nil {
			return nil, fmt.Errorf("scanning cluster keyword row: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cluster keywords: %w", err)
	}
	return edges, nil
}

func truncateKeyword(term string) string {
	runes := []rune(term)
	if len(runes) > maxKeywordLen {
		runes = runes[:maxKeywordLen]
	}
	return string(runes)
}
