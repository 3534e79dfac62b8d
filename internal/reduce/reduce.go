// Package reduce projects high-dimensional embeddings onto a
// lower-dimensional manifold before clustering. Raw cosine neighborhoods in
// embedding space are noisy; density-based algorithms in particular need
// the projection to separate clusters.
package reduce

import (
	"fmt"
	"math/rand"

	"github.com/danaugrs/go-tsne/tsne"
	"gonum.org/v1/gonum/mat"
)

// Params configures the t-SNE projection.
type Params struct {
	Components   int     // output dimensionality
	Perplexity   float64 // effective neighborhood size
	LearningRate float64
	MaxIter      int
	Seed         int64
}

// Reduce projects vecs (n×d) to n×Components. The perplexity is clamped to
// what the window supports ((n-1)/3, at least 1) so degenerate small
// windows still reduce; windows too small to project at all pass through
// unchanged.
func Reduce(vecs *mat.Dense, p Params) (*mat.Dense, error) {
	n, d := vecs.Dims()
	if n == 0 {
		return nil, fmt.Errorf("reducing empty matrix")
	}
	if p.Components <= 0 {
		return nil, fmt.Errorf("reducer components must be positive, got %d", p.Components)
	}
	if d <= p.Components || n < p.Components+2 {
		return vecs, nil
	}

	perplexity := ClampPerplexity(p.Perplexity, n)
	learningRate := p.LearningRate
	if learningRate <= 0 {
		learningRate = 200
	}
	maxIter := p.MaxIter
	if maxIter <= 0 {
		maxIter = 300
	}

	// go-tsne draws its initial embedding from math/rand's global source;
	// the deprecated rand.Seed is the only seeding hook it exposes, and
	// runs are sequential, so mutating global RNG state is safe here.
	rand.Seed(p.Seed)

	t := tsne.NewTSNE(p.Components, perplexity, learningRate, maxIter, false)
	t.EmbedData(vecs, nil)
	return t.Y, nil
}

// ClampPerplexity bounds perplexity for a window of n rows. t-SNE requires
// perplexity < (n-1)/3; tiny windows clamp down to 1.
func ClampPerplexity(perplexity float64, n int) float64 {
	limit := float64(n-1) / 3
	if limit < 1 {
		limit = 1
	}
	if perplexity > limit {
		return limit
	}
	if perplexity < 1 {
		return 1
	}
	return perplexity
}

// Dense packs float32 row vectors into a gonum dense matrix.
func Dense(vecs [][]float32) (*mat.Dense, error) {
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no vectors to pack")
	}
	d := len(vecs[0])
	if d == 0 {
		return nil, fmt.Errorf("zero-width vectors")
	}
	data := make([]float64, 0, len(vecs)*d)
	for i, vec := range vecs {
		if len(vec) != d {
			return nil, fmt.Errorf("vector %d has width %d, want %d", i, len(vec), d)
		}
		for _, v := range vec {
			data = append(data, float64(v))
		}
	}
	return mat.NewDense(len(vecs), d, data), nil
}
