// Package config loads and resolves newslens configuration.
//
// Configuration comes from a single YAML file. Per-topic clustering
// overrides are merged over global defaults deterministically, so a stage
// never consults more than one resolved parameter set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag or NEWSLENS_CONFIG env
// var is present.
const DefaultConfigPath = "newslens.yaml"

// OpenAIEmbedderConfig configures the OpenAI-compatible HTTP embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// ONNXEmbedderConfig configures the local ONNX sentence embedder.
type ONNXEmbedderConfig struct {
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	SharedLibPath string `yaml:"shared_lib_path"`
	MaxSeqLen     int    `yaml:"max_seq_len"`
}

// EmbedderConfig selects and configures the embedder implementation.
type EmbedderConfig struct {
	Type       string                `yaml:"type"` // "onnx" or "openai"
	Dimensions int                   `yaml:"dimensions"`
	BatchSize  int                   `yaml:"batch_size"`
	ONNX       *ONNXEmbedderConfig   `yaml:"onnx,omitempty"`
	OpenAI     *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// CacheConfig selects the embedding cache backend.
type CacheConfig struct {
	Backend string `yaml:"backend"` // "file" or "ttl"
	Dir     string `yaml:"dir"`
}

// ReducerConfig configures the t-SNE manifold reduction stage.
type ReducerConfig struct {
	Components   int     `yaml:"components"`
	Perplexity   float64 `yaml:"perplexity"`
	LearningRate float64 `yaml:"learning_rate"`
	MaxIter      int     `yaml:"max_iter"`
	Seed         int64   `yaml:"seed"`
}

// ClusterParams are the resolved clustering parameters for one topic.
type ClusterParams struct {
	Method         string  `yaml:"method"` // "kmeans", "dbscan", "hdbscan"
	K              int     `yaml:"k"`
	Eps            float64 `yaml:"eps"`
	MinSamples     int     `yaml:"min_samples"`
	MinClusterSize int     `yaml:"min_cluster_size"`
	Seed           int64   `yaml:"seed"`
}

// TopicOverride carries optional per-topic parameter overrides. Nil fields
// fall back to the global defaults.
type TopicOverride struct {
	Name           string   `yaml:"name"`
	Method         *string  `yaml:"method,omitempty"`
	K              *int     `yaml:"k,omitempty"`
	Eps            *float64 `yaml:"eps,omitempty"`
	MinSamples     *int     `yaml:"min_samples,omitempty"`
	MinClusterSize *int     `yaml:"min_cluster_size,omitempty"`
}

// KeywordConfig configures TF-IDF keyword extraction.
type KeywordConfig struct {
	TopN        int    `yaml:"top_n"`
	Mode        string `yaml:"mode"` // "global" or "local"
	MaxFeatures int    `yaml:"max_features"`
}

// PipelineConfig configures the per-topic pipeline and its schedule.
type PipelineConfig struct {
	WindowHours   int `yaml:"window_hours"`
	IntervalMins  int `yaml:"interval_mins"`
	TrendHourUTC  int `yaml:"trend_hour_utc"`
	EmbedTimeoutS int `yaml:"embed_timeout_secs"`
}

// TrendConfig configures the daily trend aggregation job.
type TrendConfig struct {
	Timezone string `yaml:"timezone"`
}

// Config is the root configuration.
type Config struct {
	DBPath     string          `yaml:"db_path"`
	Topics     []TopicOverride `yaml:"topics"`
	Embedder   EmbedderConfig  `yaml:"embedder"`
	Cache      CacheConfig     `yaml:"cache"`
	Reducer    ReducerConfig   `yaml:"reducer"`
	Clustering ClusterParams   `yaml:"clustering"`
	Keywords   KeywordConfig   `yaml:"keywords"`
	Pipeline   PipelineConfig  `yaml:"pipeline"`
	Trend      TrendConfig     `yaml:"trend"`
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve picks the config path from the CLI flag, NEWSLENS_CONFIG, or the
// default location, in that order.
func Resolve(cliPath string) (*Config, string, error) {
	path := cliPath
	if path == "" {
		path = os.Getenv("NEWSLENS_CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath: "newslens.db",
		Topics: []TopicOverride{
			{Name: "politics"},
			{Name: "economy"},
			{Name: "sports"},
			{Name: "tech"},
			{Name: "culture"},
		},
		Embedder: EmbedderConfig{
			Type:       "onnx",
			Dimensions: 384,
			BatchSize:  32,
			ONNX: &ONNXEmbedderConfig{
				ModelPath:     "models/minilm.onnx",
				TokenizerPath: "models/tokenizer.json",
				MaxSeqLen:     256,
			},
		},
		Cache: CacheConfig{Backend: "file", Dir: "data"},
		Reducer: ReducerConfig{
			Components:   10,
			Perplexity:   5,
			LearningRate: 200,
			MaxIter:      300,
			Seed:         42,
		},
		Clustering: ClusterParams{
			Method:         "kmeans",
			K:              10,
			Eps:            0.5,
			MinSamples:     10,
			MinClusterSize: 10,
			Seed:           42,
		},
		Keywords: KeywordConfig{TopN: 3, Mode: "global", MaxFeatures: 300},
		Pipeline: PipelineConfig{
			WindowHours:   24,
			IntervalMins:  60,
			TrendHourUTC:  0,
			EmbedTimeoutS: 120,
		},
		Trend: TrendConfig{Timezone: "Asia/Seoul"},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.DBPath == "" {
		cfg.DBPath = def.DBPath
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = def.Topics
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Embedder.Dimensions == 0 {
		cfg.Embedder.Dimensions = def.Embedder.Dimensions
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = def.Embedder.BatchSize
	}
	if cfg.Embedder.Type == "onnx" && cfg.Embedder.ONNX == nil {
		cfg.Embedder.ONNX = def.Embedder.ONNX
	}
	if cfg.Embedder.ONNX != nil && cfg.Embedder.ONNX.MaxSeqLen == 0 {
		cfg.Embedder.ONNX.MaxSeqLen = 256
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 3
		}
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = def.Cache.Backend
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = def.Cache.Dir
	}
	if cfg.Reducer.Components == 0 {
		cfg.Reducer = def.Reducer
	}
	if cfg.Clustering.Method == "" {
		cfg.Clustering.Method = def.Clustering.Method
	}
	if cfg.Clustering.K == 0 {
		cfg.Clustering.K = def.Clustering.K
	}
	if cfg.Clustering.Eps == 0 {
		cfg.Clustering.Eps = def.Clustering.Eps
	}
	if cfg.Clustering.MinSamples == 0 {
		cfg.Clustering.MinSamples = def.Clustering.MinSamples
	}
	if cfg.Clustering.MinClusterSize == 0 {
		cfg.Clustering.MinClusterSize = def.Clustering.MinClusterSize
	}
	if cfg.Clustering.Seed == 0 {
		cfg.Clustering.Seed = def.Clustering.Seed
	}
	if cfg.Keywords.TopN == 0 {
		cfg.Keywords.TopN = def.Keywords.TopN
	}
	if cfg.Keywords.Mode == "" {
		cfg.Keywords.Mode = def.Keywords.Mode
	}
	if cfg.Keywords.MaxFeatures == 0 {
		cfg.Keywords.MaxFeatures = def.Keywords.MaxFeatures
	}
	if cfg.Pipeline.WindowHours == 0 {
		cfg.Pipeline.WindowHours = def.Pipeline.WindowHours
	}
	if cfg.Pipeline.IntervalMins == 0 {
		cfg.Pipeline.IntervalMins = def.Pipeline.IntervalMins
	}
	if cfg.Pipeline.EmbedTimeoutS == 0 {
		cfg.Pipeline.EmbedTimeoutS = def.Pipeline.EmbedTimeoutS
	}
	if cfg.Trend.Timezone == "" {
		cfg.Trend.Timezone = def.Trend.Timezone
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Embedder.Type {
	case "onnx", "openai":
	default:
		return fmt.Errorf("unknown embedder type %q (valid: onnx, openai)", c.Embedder.Type)
	}
	switch c.Cache.Backend {
	case "file", "ttl":
	default:
		return fmt.Errorf("unknown cache backend %q (valid: file, ttl)", c.Cache.Backend)
	}
	switch c.Clustering.Method {
	case "kmeans", "dbscan", "hdbscan":
	default:
		return fmt.Errorf("unknown clustering method %q (valid: kmeans, dbscan, hdbscan)", c.Clustering.Method)
	}
	switch c.Keywords.Mode {
	case "global", "local":
	default:
		return fmt.Errorf("unknown keyword mode %q (valid: global, local)", c.Keywords.Mode)
	}
	if c.Embedder.Dimensions <= 0 {
		return fmt.Errorf("embedder dimensions must be positive")
	}
	for _, t := range c.Topics {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("topic with empty name")
		}
	}
	if _, err := time.LoadLocation(c.Trend.Timezone); err != nil {
		return fmt.Errorf("invalid trend timezone %q: %w", c.Trend.Timezone, err)
	}
	return nil
}

// TopicNames returns the configured topics in declaration order.
func (c *Config) TopicNames() []string {
	names := make([]string, 0, len(c.Topics))
	for _, t := range c.Topics {
		names = append(names, t.Name)
	}
	return names
}

// ResolveTopic merges a topic's overrides over the global clustering
// defaults. Unset override fields keep the default value.
func (c *Config) ResolveTopic(topic string) ClusterParams {
	params := c.Clustering
	for _, t := range c.Topics {
		if t.Name != topic {
			continue
		}
		if t.Method != nil {
			params.Method = *t.Method
		}
		if t.K != nil {
			params.K = *t.K
		}
		if t.Eps != nil {
			params.Eps = *t.Eps
		}
		if t.MinSamples != nil {
			params.MinSamples = *t.MinSamples
		}
		if t.MinClusterSize != nil {
			params.MinClusterSize = *t.MinClusterSize
		}
		break
	}
	return params
}

// WindowHorizon is the article lookback window as a duration. The TTL cache
// backend uses it as the per-entry expiry.
func (c *Config) WindowHorizon() time.Duration {
	return time.Duration(c.Pipeline.WindowHours) * time.Hour
}
