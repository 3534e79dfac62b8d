package cluster

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const kmeansMaxIter = 100

// KMeans runs Lloyd's algorithm with k-means++ seeding. k is clamped to the
// number of rows, so tiny windows degrade to one point per cluster instead
// of failing. The seed fixes both the seeding draws and the tie-breaks, so
// identical input yields identical labels.
func KMeans(X *mat.Dense, k int, seed int64) []int {
	n, d := X.Dims()
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := seedCentroids(X, k, rng)
	labels := make([]int, n)

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			best, bestDist := 0, math.Inf(1)
			for c := 0; c < k; c++ {
				dist := distToCentroid(X, i, centroids[c])
				if dist < bestDist {
					best, bestDist = c, dist
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, d)
		}
		for i := 0; i < n; i++ {
			counts[labels[i]]++
			for c := 0; c < d; c++ {
				next[labels[i]][c] += X.At(i, c)
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster keeps its old centroid rather than
				// collapsing onto another one.
				continue
			}
			for j := 0; j < d; j++ {
				next[c][j] /= float64(counts[c])
			}
			centroids[c] = next[c]
		}
	}
	return labels
}

// seedCentroids picks k initial centroids with k-means++ weighting: each new
// centroid is drawn proportionally to squared distance from the nearest
// already-chosen one.
func seedCentroids(X *mat.Dense, k int, rng *rand.Rand) [][]float64 {
	n, _ := X.Dims()
	centroids := make([][]float64, 0, k)

	first := rng.Intn(n)
	centroids = append(centroids, mat.Row(nil, first, X))

	minDist := make([]float64, n)
	for i := range minDist {
		minDist[i] = distToCentroid(X, i, centroids[0])
	}

	for len(centroids) < k {
		var total float64
		for _, dist := range minDist {
			total += dist
		}
		var pick int
		if total <= 0 {
			pick = rng.Intn(n)
		} else {
			target := rng.Float64() * total
			for i, dist := range minDist {
				target -= dist
				if target <= 0 {
					pick = i
					break
				}
			}
		}
		centroid := mat.Row(nil, pick, X)
		centroids = append(centroids, centroid)
		for i := 0; i < n; i++ {
			if dist := distToCentroid(X, i, centroid); dist < minDist[i] {
				minDist[i] = dist
			}
		}
	}
	return centroids
}

func distToCentroid(X *mat.Dense, row int, centroid []float64) float64 {
	var sum float64
	for c, v := range centroid {
		diff := X.At(row, c) - v
		sum += diff * diff
	}
	return sum
}
