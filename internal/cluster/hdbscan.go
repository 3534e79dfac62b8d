package cluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// HDBSCAN clusters by density hierarchy without a fixed eps. It builds a
// minimum spanning tree over mutual-reachability distances, replays the
// merges in ascending order, and keeps the merge level that produces the
// most components of at least minClusterSize points. Points outside those
// components are noise.
func HDBSCAN(X *mat.Dense, minSamples, minClusterSize int) []int {
	n, _ := X.Dims()
	if minSamples < 1 {
		minSamples = 1
	}
	if minClusterSize < 2 {
		minClusterSize = 2
	}

	labels := make([]int, n)
	if n < minClusterSize {
		for i := range labels {
			labels[i] = Noise
		}
		return labels
	}

	dist := pairwise(X)
	core := coreDistances(dist, minSamples)
	edges := spanningTree(dist, core)
	sort.Slice(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })

	// Sweep the merges, tracking how many components have reached the
	// minimum size. The best step wins; ties prefer the later (denser)
	// level so marginal points get absorbed rather than orphaned.
	bestStep, bestCount := -1, 0
	sweep := newUnionFind(n)
	count := 0
	for step, e := range edges {
		count += sweep.union(e.a, e.b, minClusterSize)
		if count >= bestCount && count > 0 {
			bestStep, bestCount = step, count
		}
	}

	if bestCount == 0 {
		for i := range labels {
			labels[i] = Noise
		}
		return labels
	}

	// Replay up to the chosen level and label the surviving components.
	final := newUnionFind(n)
	for step := 0; step <= bestStep; step++ {
		final.union(edges[step].a, edges[step].b, minClusterSize)
	}
	clusterOf := make(map[int]int)
	for i := range labels {
		root := final.find(i)
		if final.size[root] < minClusterSize {
			labels[i] = Noise
			continue
		}
		id, ok := clusterOf[root]
		if !ok {
			id = len(clusterOf)
			clusterOf[root] = id
		}
		labels[i] = id
	}
	return labels
}

// coreDistances returns, per point, the distance to its minSamples-th
// nearest neighbor (the point itself counts as the first).
func coreDistances(dist [][]float64, minSamples int) []float64 {
	n := len(dist)
	core := make([]float64, n)
	buf := make([]float64, n)
	for i := 0; i < n; i++ {
		copy(buf, dist[i])
		sort.Float64s(buf)
		k := minSamples - 1
		if k >= n {
			k = n - 1
		}
		core[i] = buf[k]
	}
	return core
}

type mstEdge struct {
	a, b   int
	weight float64
}

// spanningTree runs Prim's algorithm over mutual-reachability distances
// max(core[a], core[b], dist[a][b]).
func spanningTree(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			w := math.Max(dist[current][j], math.Max(core[current], core[j]))
			if w < best[j] {
				best[j] = w
				from[j] = current
			}
		}
		next, nextW := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if !inTree[j] && best[j] < nextW {
				next, nextW = j, best[j]
			}
		}
		if next < 0 {
			break
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: from[next], b: next, weight: nextW})
		current = next
	}
	return edges
}

type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// union merges the components of a and b and returns the change in the
// number of components that meet the size threshold (-1, 0 or +1).
func (uf *unionFind) union(a, b, threshold int) int {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return 0
	}
	qualified := 0
	if uf.size[ra] >= threshold {
		qualified++
	}
	if uf.size[rb] >= threshold {
		qualified++
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
	after := 0
	if uf.size[ra] >= threshold {
		after = 1
	}
	return after - qualified
}
