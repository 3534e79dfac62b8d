package embcache

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/newslens/newslens/internal/config"
)

func configFor(backend, dir string) config.CacheConfig {
	return config.CacheConfig{Backend: backend, Dir: dir}
}

func TestReconcilePartitionsWindow(t *testing.T) {
	windowIDs := []int64{1, 2, 3}
	windowTexts := []string{"one", "two", "three"}
	cachedIDs := []int64{2, 3, 4}
	cachedVecs := [][]float32{{0.2}, {0.3}, {0.4}}

	rec := Reconcile(windowIDs, windowTexts, cachedIDs, cachedVecs)

	if len(rec.Reused) != 2 {
		t.Fatalf("expected 2 reused vectors, got %d", len(rec.Reused))
	}
	if got := rec.Reused[2][0]; got != 0.2 {
		t.Fatalf("reused vector for id 2: got %v", got)
	}
	if _, ok := rec.Reused[4]; ok {
		t.Fatal("id 4 left the window and must not be reused")
	}
	if !reflect.DeepEqual(rec.NewIDs, []int64{1}) {
		t.Fatalf("expected only id 1 to need embedding, got %v", rec.NewIDs)
	}
	if !reflect.DeepEqual(rec.NewTexts, []string{"one"}) {
		t.Fatalf("unexpected new texts %v", rec.NewTexts)
	}
}

func TestReconcileEmptyCacheEmbedsEverything(t *testing.T) {
	rec := Reconcile([]int64{7, 8}, []string{"a", "b"}, nil, nil)
	if len(rec.Reused) != 0 {
		t.Fatalf("expected no reused vectors, got %d", len(rec.Reused))
	}
	if !reflect.DeepEqual(rec.NewIDs, []int64{7, 8}) {
		t.Fatalf("unexpected new ids %v", rec.NewIDs)
	}
}

func TestAssembleRestoresWindowOrder(t *testing.T) {
	reused := map[int64][]float32{2: {0.2}, 3: {0.3}}
	vecs, err := Assemble([]int64{1, 2, 3}, reused, []int64{1}, [][]float32{{0.1}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := [][]float32{{0.1}, {0.2}, {0.3}}
	if !reflect.DeepEqual(vecs, want) {
		t.Fatalf("got %v, want %v", vecs, want)
	}
}

func TestAssembleFailsOnMissingVector(t *testing.T) {
	if _, err := Assemble([]int64{1, 2}, map[int64][]float32{1: {0.1}}, nil, nil); err == nil {
		t.Fatal("expected error for article without a vector")
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir, 3)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	ctx := context.Background()

	ids := []int64{10, 11}
	vecs := [][]float32{{1, 2, 3}, {4, 5, 6}}
	if err := c.Save(ctx, "tech", ids, vecs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	gotIDs, gotVecs, err := c.Load(ctx, "tech")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(gotIDs, ids) || !reflect.DeepEqual(gotVecs, vecs) {
		t.Fatalf("round trip mismatch: %v %v", gotIDs, gotVecs)
	}

	// Other topics stay isolated.
	otherIDs, otherVecs, err := c.Load(ctx, "sports")
	if err != nil {
		t.Fatalf("Load other topic: %v", err)
	}
	if len(otherIDs) != 0 || len(otherVecs) != 0 {
		t.Fatalf("expected empty window for unknown topic, got %v", otherIDs)
	}
}

func TestFileCacheSaveReplacesPriorWindow(t *testing.T) {
	c, err := NewFileCache(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	ctx := context.Background()

	if err := c.Save(ctx, "tech", []int64{1, 2}, [][]float32{{1}, {2}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Save(ctx, "tech", []int64{3}, [][]float32{{3}}); err != nil {
		t.Fatalf("Save replacement: %v", err)
	}
	ids, _, err := c.Load(ctx, "tech")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{3}) {
		t.Fatalf("expected replacement window, got %v", ids)
	}
}

func TestFileCacheCorruptFilesYieldEmptyWindow(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir, 2)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "tech_ids.bin"), []byte("junk"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	ids, vecs, err := c.Load(ctx, "tech")
	if err != nil {
		t.Fatalf("Load corrupt: %v", err)
	}
	if len(ids) != 0 || len(vecs) != 0 {
		t.Fatalf("corrupt cache must read as empty, got %v", ids)
	}
}

func TestFileCacheDiscardsMismatchedWidth(t *testing.T) {
	dir := t.TempDir()
	wide, err := NewFileCache(dir, 3)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	ctx := context.Background()
	if err := wide.Save(ctx, "tech", []int64{1}, [][]float32{{1, 2, 3}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	narrow, err := NewFileCache(dir, 2)
	if err != nil {
		t.Fatalf("NewFileCache narrow: %v", err)
	}
	ids, _, err := narrow.Load(ctx, "tech")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("stale width must read as empty, got %v", ids)
	}
}

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache(2, time.Hour)
	ctx := context.Background()

	ids := []int64{5, 3, 9}
	vecs := [][]float32{{5, 5}, {3, 3}, {9, 9}}
	if err := c.Save(ctx, "tech", ids, vecs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	gotIDs, gotVecs, err := c.Load(ctx, "tech")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(gotIDs, []int64{3, 5, 9}) {
		t.Fatalf("expected id-sorted load, got %v", gotIDs)
	}
	if gotVecs[0][0] != 3 || gotVecs[1][0] != 5 || gotVecs[2][0] != 9 {
		t.Fatalf("vectors misaligned with ids: %v", gotVecs)
	}

	otherIDs, _, err := c.Load(ctx, "sports")
	if err != nil {
		t.Fatalf("Load other topic: %v", err)
	}
	if len(otherIDs) != 0 {
		t.Fatalf("expected empty window for unknown topic, got %v", otherIDs)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfgFile := configFor("file", t.TempDir())
	if _, err := New(cfgFile, 4, time.Hour); err != nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, err := New(configFor("ttl", ""), 4, time.Hour); err != nil {
		t.Fatalf("ttl backend: %v", err)
	}
	if _, err := New(configFor("redis", ""), 4, time.Hour); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
