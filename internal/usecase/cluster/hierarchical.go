package cluster

import (
	"math"
	"slices"

	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
)

type hierarchical struct{}

// partition merges the closest pair of clusters until k remain or the
// closest pair is farther apart than the distance threshold.
func (hierarchical) partition(in *input, o dc.Options, k int) partition {
	pts := in.f.combined
	n := len(pts)
	k = max(1, k)

	dist := pairwise(pts)
	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	for len(clusters) > k {
		bi, bj, bd := -1, -1, math.Inf(1)
		for i := range clusters {
			for j := i + 1; j < len(clusters); j++ {
				if d := linkage(o.Linkage, clusters[i], clusters[j], dist, pts); d < bd {
					bi, bj, bd = i, j, d
				}
			}
		}
		if o.DistanceThreshold > 0 && bd > o.DistanceThreshold {
			break
		}
		clusters[bi] = append(clusters[bi], clusters[bj]...)
		slices.Sort(clusters[bi])
		clusters = slices.Delete(clusters, bj, bj+1)
	}
	return partition{groups: clusters}
}

func pairwise(pts [][]float64) [][]float64 {
	d := make([][]float64, len(pts))
	for i := range pts {
		d[i] = make([]float64, len(pts))
	}
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			d[i][j] = euclidean(pts[i], pts[j])
			d[j][i] = d[i][j]
		}
	}
	return d
}

func linkage(l dc.Linkage, a, b []int, dist [][]float64, pts [][]float64) float64 {
	switch l {
	case dc.LinkageSingle:
		best := math.Inf(1)
		for _, i := range a {
			for _, j := range b {
				best = math.Min(best, dist[i][j])
			}
		}
		return best
	case dc.LinkageComplete:
		worst := 0.0
		for _, i := range a {
			for _, j := range b {
				worst = math.Max(worst, dist[i][j])
			}
		}
		return worst
	case dc.LinkageWard:
		na, nb := float64(len(a)), float64(len(b))
		return math.Sqrt(2*na*nb/(na+nb)) * euclidean(mean(pts, a), mean(pts, b))
	default:
		var sum float64
		for _, i := range a {
			for _, j := range b {
				sum += dist[i][j]
			}
		}
		return sum / float64(len(a)*len(b))
	}
}
