// Package cluster assigns a label to every row of a reduced embedding
// matrix. Three engines share one label convention: labels are dense ints
// starting at 0, and -1 marks noise (density-based engines only).
package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Noise is the label density-based engines give to unclustered points.
const Noise = -1

// Params selects and configures a clustering engine.
type Params struct {
	Method         string // kmeans, dbscan or hdbscan
	K              int    // kmeans
	Eps            float64
	MinSamples     int // dbscan, hdbscan core distance
	MinClusterSize int // hdbscan
	Seed           int64
}

// Run dispatches to the configured engine. Every input row gets exactly one
// label in the returned slice.
func Run(X *mat.Dense, p Params) ([]int, error) {
	n, _ := X.Dims()
	if n == 0 {
		return nil, fmt.Errorf("clustering empty matrix")
	}
	switch p.Method {
	case "kmeans":
		return KMeans(X, p.K, p.Seed), nil
	case "dbscan":
		return DBSCAN(X, p.Eps, p.MinSamples), nil
	case "hdbscan":
		return HDBSCAN(X, p.MinSamples, p.MinClusterSize), nil
	default:
		return nil, fmt.Errorf("unknown clustering method %q", p.Method)
	}
}

// DistinctClusters counts distinct non-noise labels.
func DistinctClusters(labels []int) int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		if l != Noise {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}

func euclidean(X *mat.Dense, i, j int) float64 {
	_, d := X.Dims()
	var sum float64
	for c := 0; c < d; c++ {
		diff := X.At(i, c) - X.At(j, c)
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// pairwise builds the full symmetric distance matrix. Windows are at most a
// few thousand articles, so O(n^2) memory is acceptable.
func pairwise(X *mat.Dense) [][]float64 {
	n, _ := X.Dims()
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := euclidean(X, i, j)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}
