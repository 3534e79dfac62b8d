// Package embcache caches per-topic article embeddings between pipeline
// runs so unchanged window articles are never re-embedded.
//
// Two interchangeable backends implement the same contract:
// - file: two parallel files per topic (ids, vectors), atomically
//   overwritten on every save — bounded storage, survives restarts.
// - ttl: per-article entries in an in-process TTL cache whose expiry equals
//   the window horizon — entries age out instead of being overwritten.
//
// The cache is a disposable optimization: it is never authoritative and can
// always be rebuilt from source articles.
package embcache

import (
	"context"
	"fmt"
	"time"

	"github.com/newslens/newslens/internal/config"
)

// Cache stores one topic's window of embeddings.
type Cache interface {
	// Load returns the previously saved window for a topic. A topic with
	// no cached window yields (nil ids, empty vector slice, nil error).
	Load(ctx context.Context, topic string) (ids []int64, vecs [][]float32, err error)
	// Save persists the reconciled window, superseding the prior one.
	Save(ctx context.Context, topic string, ids []int64, vecs [][]float32) error
}

// New constructs the cache backend selected by cfg. dims is the embedding
// width; cached entries with a different width are discarded on load (a
// model change invalidates the cache).
func New(cfg config.CacheConfig, dims int, horizon time.Duration) (Cache, error) {
	switch cfg.Backend {
	case "file":
		return NewFileCache(cfg.Dir, dims)
	case "ttl":
		return NewTTLCache(dims, horizon), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// ReconcileResult partitions a window into cache hits and misses.
type ReconcileResult struct {
	Reused   map[int64][]float32 // window ids whose vector can be reused verbatim
	NewIDs   []int64             // window ids requiring fresh embedding, in window order
	NewTexts []string            // texts aligned with NewIDs
}

// Reconcile compares the current window against a cached one. It is a pure
// function shared by all backends.
func Reconcile(windowIDs []int64, windowTexts []string, cachedIDs []int64, cachedVecs [][]float32) ReconcileResult {
	cached := make(map[int64][]float32, len(cachedIDs))
	for i, id := range cachedIDs {
		if i < len(cachedVecs) {
			cached[id] = cachedVecs[i]
		}
	}

	result := ReconcileResult{Reused: make(map[int64][]float32)}
	for i, id := range windowIDs {
		if vec, ok := cached[id]; ok {
			result.Reused[id] = vec
			continue
		}
		result.NewIDs = append(result.NewIDs, id)
		result.NewTexts = append(result.NewTexts, windowTexts[i])
	}
	return result
}

// Assemble rebuilds the full window's vectors in window order from reused
// cache entries and freshly embedded vectors (aligned with newIDs).
func Assemble(windowIDs []int64, reused map[int64][]float32, newIDs []int64, newVecs [][]float32) ([][]float32, error) {
	if len(newIDs) != len(newVecs) {
		return nil, fmt.Errorf("assembling window: %d new ids but %d new vectors", len(newIDs), len(newVecs))
	}
	fresh := make(map[int64][]float32, len(newIDs))
	for i, id := range newIDs {
		fresh[id] = newVecs[i]
	}

	vecs := make([][]float32, 0, len(windowIDs))
	for _, id := range windowIDs {
		if vec, ok := reused[id]; ok {
			vecs = append(vecs, vec)
			continue
		}
		vec, ok := fresh[id]
		if !ok {
			return nil, fmt.Errorf("assembling window: no vector for article %d", id)
		}
		vecs = append(vecs, vec)
	}
	return vecs, nil
}
