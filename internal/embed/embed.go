// Package embed turns cleaned article text into fixed-width vectors.
//
// Two backends are provided:
// - onnx: local MiniLM-class sentence model via onnxruntime (production)
// - openai: any OpenAI-compatible /v1/embeddings endpoint
//
// Both return L2-normalized vectors in input order. The backend instance is
// constructed once and injected into the pipeline; model state is never
// reached through package globals.
package embed

import (
	"context"
	"fmt"

	"github.com/newslens/newslens/internal/config"
)

// Embedder generates embedding vectors from preprocessed text.
type Embedder interface {
	// EmbedBatch embeds texts in order. Empty/whitespace inputs yield
	// zero vectors of the model width.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the vector width of this model.
	Dimensions() int
}

// New constructs the embedder selected by cfg.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Type {
	case "onnx":
		if cfg.ONNX == nil {
			return nil, fmt.Errorf("onnx embedder selected but not configured")
		}
		return NewONNXEmbedder(ONNXConfig{
			ModelPath:     cfg.ONNX.ModelPath,
			TokenizerPath: cfg.ONNX.TokenizerPath,
			SharedLibPath: cfg.ONNX.SharedLibPath,
			MaxSeqLen:     cfg.ONNX.MaxSeqLen,
			Dimensions:    cfg.Dimensions,
		}), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder selected but not configured")
		}
		return NewHTTPEmbedder(HTTPConfig{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			TimeoutSecs: cfg.OpenAI.TimeoutSecs,
			MaxRetries:  cfg.OpenAI.MaxRetries,
			Dimensions:  cfg.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}
}
