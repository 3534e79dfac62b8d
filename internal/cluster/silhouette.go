package cluster

import "gonum.org/v1/gonum/mat"

// Silhouette computes the mean silhouette coefficient over non-noise
// points. The second return is false when the score is undefined: fewer
// than two distinct clusters, or no scorable points.
func Silhouette(X *mat.Dense, labels []int) (float64, bool) {
	if DistinctClusters(labels) < 2 {
		return 0, false
	}
	dist := pairwise(X)

	members := make(map[int][]int)
	for i, l := range labels {
		if l != Noise {
			members[l] = append(members[l], i)
		}
	}

	var total float64
	var scored int
	for i, l := range labels {
		if l == Noise {
			continue
		}
		own := members[l]
		if len(own) < 2 {
			// Singleton clusters contribute 0 by convention.
			scored++
			continue
		}

		var a float64
		for _, j := range own {
			if j != i {
				a += dist[i][j]
			}
		}
		a /= float64(len(own) - 1)

		b := -1.0
		for other, pts := range members {
			if other == l {
				continue
			}
			var sum float64
			for _, j := range pts {
				sum += dist[i][j]
			}
			mean := sum / float64(len(pts))
			if b < 0 || mean < b {
				b = mean
			}
		}

		max := a
		if b > max {
			max = b
		}
		if max > 0 {
			total += (b - a) / max
		}
		scored++
	}
	if scored == 0 {
		return 0, false
	}
	return total / float64(scored), true
}
