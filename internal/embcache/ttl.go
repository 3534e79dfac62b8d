package embcache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLCache stores one entry per (topic, article) in an in-process cache
// whose expiry equals the window horizon. Entries from windows that slid
// out of range age away on their own instead of being overwritten.
type TTLCache struct {
	c    *gocache.Cache
	dims int
	ttl  time.Duration
}

// NewTTLCache builds a TTL-backed cache; horizon is both the default entry
// expiry and the cleanup cadence driver.
func NewTTLCache(dims int, horizon time.Duration) *TTLCache {
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}
	return &TTLCache{
		c:    gocache.New(horizon, horizon/4),
		dims: dims,
		ttl:  horizon,
	}
}

// Load collects all live entries for a topic, ordered by article id for
// deterministic reconciliation.
func (c *TTLCache) Load(_ context.Context, topic string) ([]int64, [][]float32, error) {
	prefix := entryPrefix(topic)

	type entry struct {
		id  int64
		vec []float32
	}
	entries := make([]entry, 0, 128)
	for key, item := range c.c.Items() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		id, err := strconv.ParseInt(key[len(prefix):], 10, 64)
		if err != nil {
			continue
		}
		vec, ok := item.Object.([]float32)
		if !ok || len(vec) != c.dims {
			continue
		}
		entries = append(entries, entry{id: id, vec: vec})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	ids := make([]int64, 0, len(entries))
	vecs := make([][]float32, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
		vecs = append(vecs, e.vec)
	}
	return ids, vecs, nil
}

// Save writes one TTL entry per article. Ids already present are refreshed
// with the new vector and a fresh expiry.
func (c *TTLCache) Save(_ context.Context, topic string, ids []int64, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("saving cache for %q: %d ids but %d vectors", topic, len(ids), len(vecs))
	}
	prefix := entryPrefix(topic)
	for i, id := range ids {
		if len(vecs[i]) != c.dims {
			return fmt.Errorf("saving cache for %q: vector %d has width %d, want %d", topic, id, len(vecs[i]), c.dims)
		}
		c.c.Set(prefix+strconv.FormatInt(id, 10), vecs[i], c.ttl)
	}
	return nil
}

func entryPrefix(topic string) string {
	return "emb:" + topic + ":"
}
