package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Clustering.Method != "kmeans" {
		t.Fatalf("expected kmeans default, got %q", cfg.Clustering.Method)
	}
	if cfg.Embedder.Dimensions != 384 {
		t.Fatalf("expected 384 dimensions, got %d", cfg.Embedder.Dimensions)
	}
	if cfg.Trend.Timezone != "Asia/Seoul" {
		t.Fatalf("expected Asia/Seoul default, got %q", cfg.Trend.Timezone)
	}
	if len(cfg.Topics) == 0 {
		t.Fatal("expected default topics")
	}
}

func TestLoadMergesPartialFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newslens.yaml")
	content := `
db_path: /tmp/custom.db
clustering:
  method: dbscan
  eps: 0.8
topics:
  - name: finance
  - name: climate
    method: hdbscan
    min_cluster_size: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/custom.db" {
		t.Fatalf("db_path not applied: %q", cfg.DBPath)
	}
	if cfg.Clustering.Method != "dbscan" || cfg.Clustering.Eps != 0.8 {
		t.Fatalf("clustering overrides not applied: %+v", cfg.Clustering)
	}
	// Unset fields keep their defaults.
	if cfg.Clustering.MinSamples != 10 {
		t.Fatalf("expected default min_samples, got %d", cfg.Clustering.MinSamples)
	}
	if cfg.Keywords.TopN != 3 {
		t.Fatalf("expected default top_n, got %d", cfg.Keywords.TopN)
	}
}

func TestResolveTopicMergesOverrides(t *testing.T) {
	method := "hdbscan"
	minSize := 5
	cfg := Default()
	cfg.Topics = append(cfg.Topics, TopicOverride{
		Name:           "climate",
		Method:         &method,
		MinClusterSize: &minSize,
	})

	params := cfg.ResolveTopic("climate")
	if params.Method != "hdbscan" {
		t.Fatalf("expected hdbscan, got %q", params.Method)
	}
	if params.MinClusterSize != 5 {
		t.Fatalf("expected min cluster size 5, got %d", params.MinClusterSize)
	}
	// Unset override fields keep the global value.
	if params.K != cfg.Clustering.K {
		t.Fatalf("expected global k %d, got %d", cfg.Clustering.K, params.K)
	}

	// Unknown topics get the global defaults unchanged.
	if got := cfg.ResolveTopic("unknown"); got != cfg.Clustering {
		t.Fatalf("expected global params for unknown topic, got %+v", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Clustering.Method = "spectral" },
		func(c *Config) { c.Embedder.Type = "tfhub" },
		func(c *Config) { c.Cache.Backend = "redis" },
		func(c *Config) { c.Keywords.Mode = "bm25" },
		func(c *Config) { c.Trend.Timezone = "Mars/Olympus" },
		func(c *Config) { c.Topics = []TopicOverride{{Name: "  "}} },
	}
	for i, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestWindowHorizon(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.WindowHours = 48
	if got := cfg.WindowHorizon(); got != 48*time.Hour {
		t.Fatalf("expected 48h, got %s", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "newslens.yaml")
	cfg := Default()
	cfg.DBPath = "roundtrip.db"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.DBPath != "roundtrip.db" {
		t.Fatalf("expected saved db path, got %q", loaded.DBPath)
	}
}
