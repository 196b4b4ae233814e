package cluster

import (
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
)

// silhouette is the mean silhouette coefficient of the points in groups.
// Members of singleton groups score zero; fewer than two groups score zero.
func silhouette(pts [][]float64, groups [][]int) float64 {
	if len(groups) < 2 {
		return 0
	}
	var sum float64
	var count int
	for gi, g := range groups {
		for _, i := range g {
			count++
			if len(g) < 2 {
				continue
			}
			a := meanDistance(pts, i, g)
			b := -1.0
			for gj, other := range groups {
				if gj == gi || len(other) == 0 {
					continue
				}
				if d := meanDistance(pts, i, other); b < 0 || d < b {
					b = d
				}
			}
			if m := max(a, b); m > 0 {
				sum += (b - a) / m
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// meanDistance is the mean distance from point i to the other members of g.
func meanDistance(pts [][]float64, i int, g []int) float64 {
	var sum float64
	var n int
	for _, j := range g {
		if j == i {
			continue
		}
		sum += euclidean(pts[i], pts[j])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// measure scores the final partition. The noise bucket is left out.
func measure(pts [][]float64, groups [][]int, centroids [][]float64) dc.Quality {
	q := dc.Quality{Silhouette: silhouette(pts, groups)}

	var cohesion float64
	var members int
	for gi, g := range groups {
		for _, i := range g {
			cohesion += euclidean(pts[i], centroids[gi])
			members++
		}
	}
	if members > 0 {
		q.Cohesion = cohesion / float64(members)
	}

	var sep float64
	var pairs int
	for i := range centroids {
		for j := i + 1; j < len(centroids); j++ {
			sep += euclidean(centroids[i], centroids[j])
			pairs++
		}
	}
	if pairs > 0 {
		q.Separation = sep / float64(pairs)
	}
	q.Overall = (q.Silhouette + 1) / 2
	return q
}
