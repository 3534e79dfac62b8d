package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestArticle(t *testing.T, ctx context.Context, s *SQLiteStore, topic, title, summary string, published, fetched time.Time) int64 {
	t.Helper()
	id, err := s.AddArticle(ctx, &Article{
		Topic:     topic,
		Title:     title,
		Link:      fmt.Sprintf("https://example.com/%s/%s", topic, strings.ReplaceAll(title, " ", "-")),
		Summary:   summary,
		Published: published,
		FetchedAt: fetched,
	})
	if err != nil {
		t.Fatalf("AddArticle(%q): %v", title, err)
	}
	return id
}

func TestAddArticleDeduplicatesByLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := addTestArticle(t, ctx, s, "tech", "chip shortage eases", "fabs ramp up", now, now)
	second := addTestArticle(t, ctx, s, "tech", "chip shortage eases", "fabs ramp up", now, now)
	if first != second {
		t.Fatalf("duplicate link got new id: %d vs %d", first, second)
	}

	count, err := s.CountArticles(ctx, "tech")
	if err != nil {
		t.Fatalf("CountArticles: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 article after duplicate insert, got %d", count)
	}
}

func TestFetchWindowFiltersByTopicAndTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	inWindow := addTestArticle(t, ctx, s, "economy", "rates hold steady", "central bank pauses", now, now.Add(-1*time.Hour))
	addTestArticle(t, ctx, s, "economy", "old story", "stale", now, since.Add(-1*time.Minute))
	addTestArticle(t, ctx, s, "sports", "cup final tonight", "", now, now)

	window, err := s.FetchWindow(ctx, "economy", since)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(window) != 1 {
		t.Fatalf("expected 1 window article, got %d", len(window))
	}
	if window[0].ID != inWindow {
		t.Fatalf("expected article %d, got %d", inWindow, window[0].ID)
	}
	if window[0].Text != "rates hold steady central bank pauses" {
		t.Fatalf("unexpected window text %q", window[0].Text)
	}
}

func TestPersistClustersSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ids := make([]int64, 4)
	for i := range ids {
		ids[i] = addTestArticle(t, ctx, s, "politics", fmt.Sprintf("story %d", i), "", now, now)
	}

	labels := []int{0, 0, 1, -1}
	labelToID, err := s.PersistClusters(ctx, "politics", ids, labels)
	if err != nil {
		t.Fatalf("PersistClusters: %v", err)
	}
	if len(labelToID) != 3 {
		t.Fatalf("expected 3 cluster rows, got %d", len(labelToID))
	}

	clusters, err := s.RecentClusters(ctx, "politics", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("RecentClusters: %v", err)
	}
	if len(clusters) != 3 {
		t.Fatalf("expected 3 recent clusters, got %d", len(clusters))
	}
	byLabel := make(map[int]Cluster)
	for _, c := range clusters {
		byLabel[c.Label] = c
	}
	if byLabel[0].NumArticles != 2 || byLabel[1].NumArticles != 1 || byLabel[-1].NumArticles != 1 {
		t.Fatalf("unexpected member counts: %+v", byLabel)
	}

	members, err := s.ClusterArticleIDs(ctx, labelToID[0])
	if err != nil {
		t.Fatalf("ClusterArticleIDs: %v", err)
	}
	if len(members) != 2 || members[0] != ids[0] || members[1] != ids[1] {
		t.Fatalf("unexpected members of label 0: %v", members)
	}
}

func TestPersistClustersRejectsMismatchedInput(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.PersistClusters(context.Background(), "tech", []int64{1, 2}, []int{0}); err == nil {
		t.Fatal("expected error for mismatched ids and labels")
	}
}

func TestPersistKeywordsIsIdempotentAndDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id := addTestArticle(t, ctx, s, "tech", "ai chips", "", now, now)
	labelToID, err := s.PersistClusters(ctx, "tech", []int64{id}, []int{0})
	if err != nil {
		t.Fatalf("PersistClusters: %v", err)
	}
	clusterID := labelToID[0]

	terms := []string{"semiconductor", "ai"}
	if err := s.PersistKeywords(ctx, clusterID, terms); err != nil {
		t.Fatalf("PersistKeywords: %v", err)
	}
	if err := s.PersistKeywords(ctx, clusterID, terms); err != nil {
		t.Fatalf("PersistKeywords rerun: %v", err)
	}

	edges, err := s.ClusterKeywords(ctx, clusterID)
	if err != nil {
		t.Fatalf("ClusterKeywords: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 keyword edges after rerun, got %d", len(edges))
	}

	// A second cluster using the same term shares the keywords row.
	second, err := s.PersistClusters(ctx, "tech", []int64{id}, []int{0})
	if err != nil {
		t.Fatalf("PersistClusters second run: %v", err)
	}
	if err := s.PersistKeywords(ctx, second[0], []string{"ai"}); err != nil {
		t.Fatalf("PersistKeywords second cluster: %v", err)
	}
	var keywordCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM keywords`).Scan(&keywordCount); err != nil {
		t.Fatalf("count keywords: %v", err)
	}
	if keywordCount != 2 {
		t.Fatalf("expected 2 deduplicated keywords, got %d", keywordCount)
	}
}

func TestPersistKeywordsTruncatesLongTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id := addTestArticle(t, ctx, s, "tech", "long term", "", now, now)
	labelToID, err := s.PersistClusters(ctx, "tech", []int64{id}, []int{0})
	if err != nil {
		t.Fatalf("PersistClusters: %v", err)
	}

	long := strings.Repeat("한", 150)
	if err := s.PersistKeywords(ctx, labelToID[0], []string{long}); err != nil {
		t.Fatalf("PersistKeywords: %v", err)
	}
	edges, err := s.ClusterKeywords(ctx, labelToID[0])
	if err != nil {
		t.Fatalf("ClusterKeywords: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if got := len([]rune(edges[0].Name)); got != maxKeywordLen {
		t.Fatalf("expected %d-rune keyword, got %d", maxKeywordLen, got)
	}
}

func TestAggregateTrendsCountsAndIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	inDay := day.Add(10 * time.Hour)
	nextDay := day.Add(26 * time.Hour)
	now := time.Now().UTC()

	a1 := addTestArticle(t, ctx, s, "economy", "markets rally on rate cut", "", inDay, now)
	a2 := addTestArticle(t, ctx, s, "economy", "quiet day", "markets drift sideways", inDay, now)
	a3 := addTestArticle(t, ctx, s, "economy", "markets slump", "", nextDay, now)

	labelToID, err := s.PersistClusters(ctx, "economy", []int64{a1, a2, a3}, []int{0, 0, 0})
	if err != nil {
		t.Fatalf("PersistClusters: %v", err)
	}
	if err := s.PersistKeywords(ctx, labelToID[0], []string{"markets"}); err != nil {
		t.Fatalf("PersistKeywords: %v", err)
	}

	rows, err := s.AggregateTrends(ctx, day, time.UTC)
	if err != nil {
		t.Fatalf("AggregateTrends: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 trend row, got %d", rows)
	}

	trends, err := s.TrendsForDate(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("TrendsForDate: %v", err)
	}
	if len(trends) != 1 {
		t.Fatalf("expected 1 trend, got %d", len(trends))
	}
	// a3 published the next day must not count.
	if trends[0].Count != 2 {
		t.Fatalf("expected count 2, got %d", trends[0].Count)
	}

	// Re-running replaces instead of accumulating.
	if _, err := s.AggregateTrends(ctx, day, time.UTC); err != nil {
		t.Fatalf("AggregateTrends rerun: %v", err)
	}
	trends, err = s.TrendsForDate(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("TrendsForDate rerun: %v", err)
	}
	if len(trends) != 1 || trends[0].Count != 2 {
		t.Fatalf("rerun changed trends: %+v", trends)
	}
}

func TestStatsCountsTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	addTestArticle(t, ctx, s, "culture", "festival opens", "", now, now)
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ArticleCount != 1 {
		t.Fatalf("expected 1 article, got %d", stats.ArticleCount)
	}
	if stats.ClusterCount != 0 {
		t.Fatalf("expected 0 clusters, got %d", stats.ClusterCount)
	}
}
