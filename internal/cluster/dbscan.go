package cluster

import "gonum.org/v1/gonum/mat"

// DBSCAN labels density-reachable regions. A point with at least minSamples
// neighbors within eps (itself included) is a core point; clusters grow by
// expanding from core points, and everything unreachable stays noise.
func DBSCAN(X *mat.Dense, eps float64, minSamples int) []int {
	n, _ := X.Dims()
	if minSamples < 1 {
		minSamples = 1
	}
	dist := pairwise(X)

	const unvisited = -2
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	nextLabel := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		neighbors := regionQuery(dist, i, eps)
		if len(neighbors) < minSamples {
			labels[i] = Noise
			continue
		}

		labels[i] = nextLabel
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == Noise {
				labels[j] = nextLabel // border point adopted by the cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = nextLabel
			expanded := regionQuery(dist, j, eps)
			if len(expanded) >= minSamples {
				queue = append(queue, expanded...)
			}
		}
		nextLabel++
	}
	return labels
}

func regionQuery(dist [][]float64, i int, eps float64) []int {
	neighbors := make([]int, 0, 8)
	for j := range dist[i] {
		if dist[i][j] <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
