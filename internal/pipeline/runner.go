// Package pipeline orchestrates the per-topic clustering run: window fetch,
// cache reconciliation, embedding, reduction, clustering, persistence and
// keyword labeling.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newslens/newslens/internal/cluster"
	"github.com/newslens/newslens/internal/config"
	"github.com/newslens/newslens/internal/embcache"
	"github.com/newslens/newslens/internal/embed"
	"github.com/newslens/newslens/internal/keyword"
	"github.com/newslens/newslens/internal/reduce"
	"github.com/newslens/newslens/internal/store"
)

// ErrRunInProgress is returned when a topic run is requested while a
// previous run for the same topic has not finished.
var ErrRunInProgress = errors.New("run already in progress for topic")

// TopicReport summarizes one topic run.
type TopicReport struct {
	Topic      string        `json:"topic"`
	RunID      string        `json:"run_id"`
	Articles   int           `json:"articles"`
	Reused     int           `json:"reused"`
	Embedded   int           `json:"embedded"`
	Clusters   int           `json:"clusters"`
	Noise      int           `json:"noise"`
	Silhouette *float64      `json:"silhouette,omitempty"`
	Skipped    bool          `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

// Runner executes the clustering pipeline for configured topics.
type Runner struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	embedder embed.Embedder
	cache    embcache.Cache
	logger   *log.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewRunner wires the pipeline's stages together.
func NewRunner(cfg *config.Config, st *store.SQLiteStore, embedder embed.Embedder, cache embcache.Cache, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		cfg:      cfg,
		store:    st,
		embedder: embedder,
		cache:    cache,
		logger:   logger,
		running:  make(map[string]bool),
	}
}

// RunAll runs every configured topic sequentially. One topic failing does
// not stop the others; the first error is returned after all topics ran.
func (r *Runner) RunAll(ctx context.Context) ([]TopicReport, error) {
	reports := make([]TopicReport, 0, len(r.cfg.Topics))
	var firstErr error
	for _, topic := range r.cfg.TopicNames() {
		report, err := r.RunTopic(ctx, topic)
		if err != nil {
			r.logger.Printf("pipeline: topic %s failed: %v", topic, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("topic %s: %w", topic, err)
			}
			continue
		}
		reports = append(reports, report)
	}
	return reports, firstErr
}

// RunTopic runs the full pipeline for one topic. Concurrent runs for the
// same topic are rejected with ErrRunInProgress; the scheduler relies on
// this to keep runs single-flight.
func (r *Runner) RunTopic(ctx context.Context, topic string) (TopicReport, error) {
	r.mu.Lock()
	if r.running[topic] {
		r.mu.Unlock()
		return TopicReport{}, fmt.Errorf("%w: %s", ErrRunInProgress, topic)
	}
	r.running[topic] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.running, topic)
		r.mu.Unlock()
	}()

	started := time.Now()
	report := TopicReport{Topic: topic, RunID: uuid.NewString()[:8]}

	since := started.UTC().Add(-r.cfg.WindowHorizon())
	articles, err := r.store.FetchWindow(ctx, topic, since)
	if err != nil {
		return report, fmt.Errorf("fetching window: %w", err)
	}
	report.Articles = len(articles)
	if len(articles) == 0 {
		r.logger.Printf("pipeline[%s] %s: no articles in window, skipping", report.RunID, topic)
		report.Skipped = true
		report.Duration = time.Since(started)
		return report, nil
	}

	ids := make([]int64, len(articles))
	texts := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
		texts[i] = a.Text
	}
	cleaned := embed.PreprocessAll(texts)

	vecs, reused, embedded, err := r.embedWindow(ctx, topic, ids, cleaned)
	if err != nil {
		return report, err
	}
	report.Reused = reused
	report.Embedded = embedded

	X, err := reduce.Dense(vecs)
	if err != nil {
		return report, fmt.Errorf("packing vectors: %w", err)
	}
	reduced, err := reduce.Reduce(X, reduce.Params{
		Components:   r.cfg.Reducer.Components,
		Perplexity:   r.cfg.Reducer.Perplexity,
		LearningRate: r.cfg.Reducer.LearningRate,
		MaxIter:      r.cfg.Reducer.MaxIter,
		Seed:         r.cfg.Reducer.Seed,
	})
	if err != nil {
		return report, fmt.Errorf("reducing embeddings: %w", err)
	}

	params := r.cfg.ResolveTopic(topic)
	labels, err := cluster.Run(reduced, cluster.Params{
		Method:         params.Method,
		K:              params.K,
		Eps:            params.Eps,
		MinSamples:     params.MinSamples,
		MinClusterSize: params.MinClusterSize,
		Seed:           params.Seed,
	})
	if err != nil {
		return report, fmt.Errorf("clustering: %w", err)
	}
	for _, l := range labels {
		if l == cluster.Noise {
			report.Noise++
		}
	}
	report.Clusters = cluster.DistinctClusters(labels)

	if score, ok := cluster.Silhouette(reduced, labels); ok {
		report.Silhouette = &score
		r.logger.Printf("pipeline[%s] %s: silhouette %.4f", report.RunID, topic, score)
	} else {
		r.logger.Printf("pipeline[%s] %s: silhouette undefined (fewer than two clusters)", report.RunID, topic)
	}

	clusterIDs, err := r.store.PersistClusters(ctx, topic, ids, labels)
	if err != nil {
		return report, fmt.Errorf("persisting clusters: %w", err)
	}

	if err := r.labelClusters(ctx, cleaned, labels, clusterIDs); err != nil {
		return report, err
	}

	report.Duration = time.Since(started)
	r.logger.Printf("pipeline[%s] %s: %d articles (%d reused, %d embedded) -> %d clusters, %d noise in %s",
		report.RunID, topic, report.Articles, report.Reused, report.Embedded, report.Clusters, report.Noise, report.Duration.Round(time.Millisecond))
	return report, nil
}

// embedWindow reconciles the window against the cache, embeds the misses in
// batches, and saves the reconciled window back. The cache is only written
// after every batch succeeded, so a failed run never poisons it.
func (r *Runner) embedWindow(ctx context.Context, topic string, ids []int64, texts []string) ([][]float32, int, int, error) {
	cachedIDs, cachedVecs, err := r.cache.Load(ctx, topic)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("loading cache: %w", err)
	}

	rec := embcache.Reconcile(ids, texts, cachedIDs, cachedVecs)

	newVecs := make([][]float32, 0, len(rec.NewIDs))
	batchSize := r.cfg.Embedder.BatchSize
	if batchSize < 1 {
		batchSize = 32
	}
	for start := 0; start < len(rec.NewTexts); start += batchSize {
		end := start + batchSize
		if end > len(rec.NewTexts) {
			end = len(rec.NewTexts)
		}
		batchCtx := ctx
		var cancel context.CancelFunc
		if r.cfg.Pipeline.EmbedTimeoutS > 0 {
			batchCtx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.Pipeline.EmbedTimeoutS)*time.Second)
		}
		batch, err := r.embedder.EmbedBatch(batchCtx, rec.NewTexts[start:end])
		if cancel != nil {
			cancel()
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		newVecs = append(newVecs, batch...)
	}

	vecs, err := embcache.Assemble(ids, rec.Reused, rec.NewIDs, newVecs)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("assembling window: %w", err)
	}
	if err := r.cache.Save(ctx, topic, ids, vecs); err != nil {
		return nil, 0, 0, fmt.Errorf("saving cache: %w", err)
	}
	return vecs, len(rec.Reused), len(rec.NewIDs), nil
}

// labelClusters extracts top keywords per cluster and persists them. The
// noise cluster is labeled from its documents like any other; only a
// genuinely empty document set falls back to the sentinel.
func (r *Runner) labelClusters(ctx context.Context, docs []string, labels []int, clusterIDs map[int]int64) error {
	extractor, err := keyword.NewExtractor(keyword.Params{
		TopN:        r.cfg.Keywords.TopN,
		Mode:        r.cfg.Keywords.Mode,
		MaxFeatures: r.cfg.Keywords.MaxFeatures,
	})
	if err != nil {
		return fmt.Errorf("building keyword extractor: %w", err)
	}
	if err := extractor.Fit(docs); err != nil {
		return fmt.Errorf("fitting keyword extractor: %w", err)
	}

	byLabel := make(map[int][]string)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], docs[i])
	}

	for label, clusterID := range clusterIDs {
		terms, err := extractor.ClusterKeywords(byLabel[label])
		if err != nil {
			return fmt.Errorf("extracting keywords for cluster %d: %w", clusterID, err)
		}
		if err := r.store.PersistKeywords(ctx, clusterID, terms); err != nil {
			return fmt.Errorf("persisting keywords for cluster %d: %w", clusterID, err)
		}
	}
	return nil
}

// RunTrends aggregates daily keyword trends for the day before now in the
// configured timezone. Re-running for the same day replaces that day's rows.
func (r *Runner) RunTrends(ctx context.Context, now time.Time) (int, error) {
	loc, err := time.LoadLocation(r.cfg.Trend.Timezone)
	if err != nil {
		return 0, fmt.Errorf("loading trend timezone: %w", err)
	}
	target := now.In(loc).AddDate(0, 0, -1)
	rows, err := r.store.AggregateTrends(ctx, target, loc)
	if err != nil {
		return 0, fmt.Errorf("aggregating trends: %w", err)
	}
	r.logger.Printf("trends: %d keyword rows for %s", rows, target.Format("2006-01-02"))
	return rows, nil
}
